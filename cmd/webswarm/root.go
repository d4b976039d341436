package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for webswarm.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "webswarm",
		Short: "Site-discovering load generator that browses like real users",
		Long: `webswarm spawns simulated users against a website. Each user crawls the
site to build its own map of pages and assets, detects search endpoints, and
then browses with a weighted mix of page views, asset fetches, searches and
re-crawls. Request statistics are reported per label and stored locally so
that runs can be compared over time.

The target is taken from the first argument, the --target flag, or the
TARGET_HOST environment variable, in that order.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().Bool("log-json", false, "Write log lines as JSON")
	cmd.PersistentFlags().StringP("config", "c", "",
		"Configuration file path (default: .webswarm in current or home directory)")

	cmd.AddCommand(NewRunCmd())
	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/webswarm/internal/config"
	"github.com/nao1215/webswarm/internal/crawler"
	"github.com/nao1215/webswarm/internal/database"
	"github.com/nao1215/webswarm/internal/model"
	"github.com/nao1215/webswarm/internal/probe"
	"github.com/nao1215/webswarm/internal/search"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [target]",
		Short: "Crawl a website once and print what a simulated user would see",
		Long: `Crawl performs the discovery phase of a single simulated user without
generating load: it maps the pages and static assets of the target and
reports the search endpoints that would be used while browsing.

Use it to check ignore/follow patterns and crawl limits before a run.

Examples:
  # Print the site map of a target
  webswarm crawl https://shop.example.com

  # Print the site map as JSON and remember the paths for later crawls
  webswarm crawl https://shop.example.com --json --save`,
		Args: cobra.MaximumNArgs(1),
		RunE: runCrawlCmd,
	}

	addTargetFlags(cmd)
	addConnectionFlags(cmd)
	addCrawlFlags(cmd)
	addDBFlag(cmd)

	cmd.Flags().BoolP("json", "j", false, "Output the site map as JSON")
	cmd.Flags().Bool("save", false,
		"Store discovered paths in the history database and report new ones")

	return cmd
}

// crawlResult is the JSON form of the crawl command output.
type crawlResult struct {
	Target   string                `json:"target"`
	Fetches  int                   `json:"fetches"`
	Failures int                   `json:"failures"`
	Site     *model.DiscoveredSite `json:"site"`
	Search   model.SearchInfo      `json:"search"`
	NewPaths *int                  `json:"new_paths,omitempty"`
	Probe    *probe.Result         `json:"probe,omitempty"`
}

func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildBaseConfig(cmd, args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	site := cfg.Site()
	applyTargetConfig(cmd, cfg, site)

	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	save, err := cmd.Flags().GetBool("save")
	if err != nil {
		return err
	}

	logger := setupLogger(cmd.ErrOrStderr(), cfg)
	ctx := cmd.Context()

	setup, err := newClient(ctx, cmd.ErrOrStderr(), cfg, site, logger)
	if err != nil {
		return err
	}
	defer setup.close(logger)

	probed, err := preflight(ctx, setup, cfg, logger)
	if err != nil {
		return err
	}

	result, crawlErr := crawlOnce(ctx, cfg, site, setup, logger)
	result.Probe = probed

	if save {
		fresh, err := saveSiteMap(context.WithoutCancel(ctx), cfg.DBDir, result.Site)
		if err != nil {
			return err
		}
		result.NewPaths = &fresh
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(result); err != nil {
			return err
		}
	} else {
		printCrawlResult(out, result)
	}

	if crawlErr != nil {
		return fmt.Errorf("crawl stopped early: %w", crawlErr)
	}
	return nil
}

// crawlOnce runs the discovery phase of a single user. The partial site map
// is returned together with any crawl error.
func crawlOnce(ctx context.Context, cfg *config.Config, site config.TargetConfig, setup *clientSetup, logger *slog.Logger) (*crawlResult, error) {
	spider := crawler.NewSpider(setup.client.HTTPClient(),
		crawler.WithMaxPages(cfg.MaxPages),
		crawler.WithMaxQueue(cfg.MaxQueue),
		crawler.WithDelay(cfg.CrawlDelay),
		crawler.WithUserAgent(cfg.UserAgent),
		crawler.WithMaxBodySize(cfg.MaxBodySize),
		crawler.WithIgnorePatterns(site.IgnorePatterns),
		crawler.WithFollowPatterns(site.FollowPatterns),
		crawler.WithLogger(logger),
	)

	discovered, pages, err := spider.Crawl(ctx, cfg.Target)
	if discovered == nil || discovered.PageCount() == 0 {
		discovered = model.SeedOnlySite(cfg.Target)
	}

	result := &crawlResult{
		Target:  cfg.Target,
		Fetches: len(pages),
		Site:    discovered,
		Search:  search.Detect(discovered),
	}
	for _, p := range pages {
		if !p.OK() {
			result.Failures++
		}
	}
	return result, err
}

// saveSiteMap merges the site into the discoveries table and returns the
// number of paths never seen before.
func saveSiteMap(ctx context.Context, dbDir string, site *model.DiscoveredSite) (int, error) {
	db, err := database.Open(dbDir, database.DefaultOptions())
	if err != nil {
		return 0, fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	fresh, err := db.SaveSiteMap(ctx, site)
	if err != nil {
		return 0, fmt.Errorf("failed to save site map: %w", err)
	}
	return fresh, nil
}

// printCrawlResult writes the human-readable crawl summary.
func printCrawlResult(w io.Writer, r *crawlResult) {
	fmt.Fprintf(w, "Site map of %s\n", r.Target)
	fmt.Fprintln(w, strings.Repeat("=", 60))
	if p := r.Probe; p != nil {
		printProbe(w, p)
	}
	fmt.Fprintf(w, "Fetches: %d (failed: %d)\n", r.Fetches, r.Failures)
	if r.NewPaths != nil {
		fmt.Fprintf(w, "New paths since previous crawls: %d\n", *r.NewPaths)
	}

	fmt.Fprintf(w, "\nPages (%d):\n", r.Site.PageCount())
	for _, p := range r.Site.Pages() {
		fmt.Fprintf(w, "  %s\n", p)
	}
	fmt.Fprintf(w, "\nAssets (%d):\n", r.Site.AssetCount())
	for _, a := range r.Site.Assets() {
		fmt.Fprintf(w, "  %s\n", a)
	}

	fmt.Fprintln(w, "\nSearch:")
	if r.Search.HasSearch {
		fmt.Fprintln(w, "  detected: yes")
	} else {
		fmt.Fprintln(w, "  detected: no (well-known endpoints will be tried)")
	}
	fmt.Fprintf(w, "  paths:    %s\n", strings.Join(r.Search.SearchPaths, ", "))
	fmt.Fprintf(w, "  params:   %s\n", strings.Join(r.Search.CandidateParams, ", "))
	if r.Search.Catalog {
		fmt.Fprintln(w, "  catalog:  yes")
	}
}

// printProbe writes the preflight findings.
func printProbe(w io.Writer, p *probe.Result) {
	if !p.Reachable {
		fmt.Fprintf(w, "Server:  unreachable (%s)\n", p.Error)
		return
	}
	banner := p.Banner
	if banner == "" {
		banner = "(no Server header)"
	}
	fmt.Fprintf(w, "Server:  %s, status %d in %s\n", banner, p.StatusCode, p.Latency.Round(time.Millisecond))
	if p.TLSVersion != "" {
		fmt.Fprintf(w, "TLS:     %s", p.TLSVersion)
		if c := p.Certificate; c != nil {
			fmt.Fprintf(w, ", issued by %s, valid until %s", c.Issuer, c.NotAfter.Format(time.DateOnly))
		}
		fmt.Fprintln(w)
	}
	for _, warning := range p.Warnings(time.Now()) {
		fmt.Fprintf(w, "Warning: %s\n", warning)
	}
}

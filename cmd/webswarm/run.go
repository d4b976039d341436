package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/nao1215/webswarm/internal/behavior"
	"github.com/nao1215/webswarm/internal/config"
	"github.com/nao1215/webswarm/internal/database"
	"github.com/nao1215/webswarm/internal/model"
	"github.com/nao1215/webswarm/internal/pipeline"
	"github.com/nao1215/webswarm/internal/report"
	"github.com/nao1215/webswarm/internal/stats"
)

// NewRunCmd creates the run command.
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [target]",
		Short: "Run a load test against a website",
		Long: `Run spawns simulated users against the target origin.

Every user crawls the site on its own, detects search endpoints, and then
browses with a weighted mix of turns:

  visit_page       fetch a discovered page
  visit_asset      fetch a discovered static asset
  basic_search     query a search endpoint with a random term
  filtered_search  query a search endpoint with term and filters
  rediscover       re-fetch a page and count links not seen while crawling
  homepage         fetch the seed page

The run ends when every user has spent its turns, when --duration expires,
or on Ctrl-C. The report is printed in any of these cases.

Examples:
  # 50 users, 5 per second, for 10 minutes
  webswarm run https://shop.example.com -u 50 -r 5 -d 10m

  # Reproducible run of 20 turns per user
  webswarm run https://shop.example.com --turns 20 --seed 42

  # Favour search and never re-crawl
  webswarm run https://shop.example.com -w basic_search=6 -w rediscover=0

  # Markdown report to a file
  webswarm run https://shop.example.com -m -o reports/run.md`,
		Args: cobra.MaximumNArgs(1),
		RunE: runRunCmd,
	}

	addTargetFlags(cmd)
	addConnectionFlags(cmd)
	addCrawlFlags(cmd)
	addDBFlag(cmd)

	// Swarm flags
	cmd.Flags().IntP("users", "u", config.DefaultUsers,
		"Number of concurrent simulated users")
	cmd.Flags().Float64P("spawn-rate", "r", config.DefaultSpawnRate,
		"Users started per second (0 starts all at once)")
	cmd.Flags().DurationP("duration", "d", 0,
		"Stop the run after this time (0 runs until users finish or Ctrl-C)")
	cmd.Flags().Int("turns", 0,
		"Turns per user after the crawl (0 is unlimited)")
	cmd.Flags().Duration("min-wait", config.DefaultMinWait,
		"Minimum pause between turns")
	cmd.Flags().Duration("max-wait", config.DefaultMaxWait,
		"Maximum pause between turns")
	cmd.Flags().Float64("max-rps", 0,
		"Cap on turns per second across all users (0 is unlimited)")
	cmd.Flags().Uint64("seed", 0,
		"Seed of the per-user random sources (0 picks one)")
	cmd.Flags().StringToIntP("weight", "w", nil,
		"Override a turn weight, e.g. -w basic_search=5 (repeatable)")

	// Report flags
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")
	cmd.Flags().Bool("no-save", false,
		"Do not store the run in the history database")
	cmd.Flags().Bool("skip-probe", false,
		"Do not send the preflight request before spawning users")

	return cmd
}

// runOptions are the run settings that do not live in config.Config.
type runOptions struct {
	weights   map[string]int
	skipProbe bool
}

func runRunCmd(cmd *cobra.Command, args []string) error {
	cfg, opts, err := buildRunConfig(cmd, args)
	if err != nil {
		return err
	}

	logger := setupLogger(cmd.ErrOrStderr(), cfg)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Warn("received shutdown signal, stopping users...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return runSwarm(ctx, cmd.OutOrStdout(), cfg, opts, logger)
}

// buildRunConfig creates a validated Config from the run flags, the config
// file and the environment.
func buildRunConfig(cmd *cobra.Command, args []string) (*config.Config, runOptions, error) {
	var opts runOptions

	cfg, err := buildBaseConfig(cmd, args)
	if err != nil {
		return nil, opts, err
	}
	flags := cmd.Flags()

	if cfg.Users, err = flags.GetInt("users"); err != nil {
		return nil, opts, err
	}
	if cfg.SpawnRate, err = flags.GetFloat64("spawn-rate"); err != nil {
		return nil, opts, err
	}
	if cfg.Duration, err = flags.GetDuration("duration"); err != nil {
		return nil, opts, err
	}
	if cfg.Turns, err = flags.GetInt("turns"); err != nil {
		return nil, opts, err
	}
	if cfg.MinWait, err = flags.GetDuration("min-wait"); err != nil {
		return nil, opts, err
	}
	if cfg.MaxWait, err = flags.GetDuration("max-wait"); err != nil {
		return nil, opts, err
	}
	if cfg.MaxRPS, err = flags.GetFloat64("max-rps"); err != nil {
		return nil, opts, err
	}
	if cfg.Seed, err = flags.GetUint64("seed"); err != nil {
		return nil, opts, err
	}
	if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return nil, opts, err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return nil, opts, err
	}
	if cfg.ReportFile, err = flags.GetString("output"); err != nil {
		return nil, opts, err
	}
	noSave, err := flags.GetBool("no-save")
	if err != nil {
		return nil, opts, err
	}
	cfg.SaveToDB = !noSave
	if opts.skipProbe, err = flags.GetBool("skip-probe"); err != nil {
		return nil, opts, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, opts, fmt.Errorf("configuration error: %w", err)
	}

	site := cfg.Site()
	applyTargetConfig(cmd, cfg, site)

	cliWeights, err := flags.GetStringToInt("weight")
	if err != nil {
		return nil, opts, err
	}
	opts.weights = make(map[string]int, len(site.Weights)+len(cliWeights))
	maps.Copy(opts.weights, site.Weights)
	maps.Copy(opts.weights, cliWeights)

	return cfg, opts, nil
}

// runSwarm executes the load test and writes the report.
func runSwarm(ctx context.Context, out io.Writer, cfg *config.Config, opts runOptions, logger *slog.Logger) error {
	weights, err := behavior.ParseWeights(opts.weights)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	// Open the database first so a broken data directory fails fast.
	var db *database.HistoryDB
	if cfg.SaveToDB {
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		logger.Info("database opened", "path", db.Path())
	}

	site := cfg.Site()
	setup, err := newClient(ctx, out, cfg, site, logger)
	if err != nil {
		return err
	}
	defer setup.close(logger)

	if !opts.skipProbe {
		if _, err := preflight(ctx, setup, cfg, logger); err != nil {
			return err
		}
	}

	var limiter *rate.Limiter
	if cfg.MaxRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.MaxRPS), 1)
	}

	collector := stats.NewCollector(stats.WithLogger(logger))
	browseModel := behavior.New(behavior.WithWeights(weights))
	userCfg := pipeline.UserPipelineConfig{
		MaxPages:       cfg.MaxPages,
		MaxQueue:       cfg.MaxQueue,
		CrawlDelay:     cfg.CrawlDelay,
		IgnorePatterns: site.IgnorePatterns,
		FollowPatterns: site.FollowPatterns,
		Model:          browseModel,
		MinWait:        cfg.MinWait,
		MaxWait:        cfg.MaxWait,
		Turns:          cfg.Turns,
		Limiter:        limiter,
		UserAgent:      cfg.UserAgent,
		MaxBodySize:    cfg.MaxBodySize,
		Logger:         logger,
	}

	swarm := pipeline.NewSwarm(
		func() *pipeline.Pipeline {
			// Each user gets its own connection pool and cookie jar.
			return pipeline.UserPipeline(setup.client.HTTPClient(), collector, userCfg,
				pipeline.WithLogger(logger),
				pipeline.WithContinueOnError(true),
			)
		},
		collector,
		pipeline.WithUsers(cfg.Users),
		pipeline.WithSpawnRate(cfg.SpawnRate),
		pipeline.WithSeed(cfg.Seed),
		pipeline.WithDuration(cfg.Duration),
		pipeline.WithSwarmLogger(logger),
	)

	logger.Info("starting run",
		"target", cfg.Target,
		"users", cfg.Users,
		"spawnRate", cfg.SpawnRate,
		"duration", cfg.Duration,
		"turns", cfg.Turns,
		"seed", swarm.Seed(),
		"weights", weights.Names(),
	)

	startTime := time.Now()
	runReport, err := swarm.Run(ctx, cfg.Target)
	if err != nil {
		return err
	}
	logger.Info("run finished",
		"elapsed", time.Since(startTime).Round(time.Millisecond),
		"requests", runReport.Total.Requests,
		"interrupted", runReport.Interrupted,
	)

	if err := outputReport(cfg, out, runReport); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	// The run context may already be cancelled by Ctrl-C.
	return saveRunReport(context.WithoutCancel(ctx), db, runReport, logger)
}

// newReportWriter selects the report format of cfg.
func newReportWriter(cfg *config.Config, w io.Writer) report.Writer {
	switch {
	case cfg.JSONReport:
		return report.NewFullJSONWriter(w, getVersion(), report.WithPrettyPrint())
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(w)
	default:
		return report.NewSimpleWriter(w, report.WithVerbose(cfg.Verbose))
	}
}

// outputReport writes the run report in the requested format to the report
// file or out.
func outputReport(cfg *config.Config, out io.Writer, runReport *model.RunReport) error {
	w, closeFn, err := openOutput(cfg.ReportFile, out)
	if err != nil {
		return err
	}
	defer closeFn() //nolint:errcheck // write errors are reported by Write

	if _, err := newReportWriter(cfg, w).Write(runReport); err != nil {
		return err
	}
	if cfg.ReportFile != "" {
		fmt.Fprintf(out, "Report written to %s\n", cfg.ReportFile)
	}
	return nil
}

// saveRunReport stores the report if db is not nil.
func saveRunReport(ctx context.Context, db *database.HistoryDB, runReport *model.RunReport, logger *slog.Logger) error {
	if db == nil {
		return nil
	}
	id, err := db.SaveRunReport(ctx, runReport)
	if err != nil {
		return fmt.Errorf("failed to save run report: %w", err)
	}
	logger.Info("run report saved to database", "target", runReport.Target, "id", id)
	return nil
}

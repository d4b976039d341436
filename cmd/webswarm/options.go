package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/webswarm/internal/config"
	wslog "github.com/nao1215/webswarm/internal/log"
	"github.com/nao1215/webswarm/internal/probe"
	"github.com/nao1215/webswarm/internal/transport"
)

// addTargetFlags registers the target flag shared by run and crawl.
func addTargetFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("target", "t", "",
		"Target origin (default: $TARGET_HOST or "+config.DefaultTarget+")")
}

// addDBFlag registers the run-history database directory flag.
func addDBFlag(cmd *cobra.Command) {
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the run-history database")
}

// addConnectionFlags registers HTTP client flags.
func addConnectionFlags(cmd *cobra.Command) {
	cmd.Flags().Duration("connect-timeout", config.DefaultConnectTimeout,
		"Timeout for establishing a connection")
	cmd.Flags().Duration("read-timeout", config.DefaultReadTimeout,
		"Timeout for reading a response")
	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User-Agent header sent with every request")
	cmd.Flags().Int64("max-body-size", config.DefaultMaxBodySize,
		"Maximum response body size in bytes")
	cmd.Flags().Int("max-conns", config.DefaultMaxConnsPerHost,
		"Maximum concurrent connections per simulated user")
	cmd.Flags().StringP("proxy", "x", "",
		"Route traffic through a SOCKS5 proxy (e.g., 127.0.0.1:9050)")
	cmd.Flags().Bool("tor", false,
		"Start an embedded Tor daemon and route traffic through it")
	cmd.Flags().Duration("tor-timeout", config.DefaultTorStartupTimeout,
		"Timeout for embedded Tor startup")
	cmd.Flags().BoolP("insecure", "k", false,
		"Skip TLS certificate verification")
}

// addCrawlFlags registers crawler limits.
func addCrawlFlags(cmd *cobra.Command) {
	cmd.Flags().IntP("max-pages", "p", config.DefaultMaxPages,
		"Maximum number of crawl requests per user")
	cmd.Flags().Int("max-queue", config.DefaultMaxQueue,
		"Maximum number of URLs queued for crawling per user")
	cmd.Flags().Duration("crawl-delay", 0,
		"Pause between crawl requests")
}

// buildBaseConfig reads the flags shared by run and crawl into a new Config
// and loads the config file.
func buildBaseConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	targetFlag, err := flags.GetString("target")
	if err != nil {
		return nil, err
	}
	var arg string
	if len(args) > 0 {
		arg = args[0]
	}
	cfg.Target = config.ResolveTarget(arg, targetFlag)

	if cfg.ConnectTimeout, err = flags.GetDuration("connect-timeout"); err != nil {
		return nil, err
	}
	if cfg.ReadTimeout, err = flags.GetDuration("read-timeout"); err != nil {
		return nil, err
	}
	if cfg.UserAgent, err = flags.GetString("user-agent"); err != nil {
		return nil, err
	}
	if cfg.MaxBodySize, err = flags.GetInt64("max-body-size"); err != nil {
		return nil, err
	}
	if cfg.MaxConnsPerHost, err = flags.GetInt("max-conns"); err != nil {
		return nil, err
	}
	if cfg.ProxyAddress, err = flags.GetString("proxy"); err != nil {
		return nil, err
	}
	if cfg.UseTor, err = flags.GetBool("tor"); err != nil {
		return nil, err
	}
	if cfg.TorStartupTimeout, err = flags.GetDuration("tor-timeout"); err != nil {
		return nil, err
	}
	if cfg.InsecureSkipVerify, err = flags.GetBool("insecure"); err != nil {
		return nil, err
	}
	if cfg.MaxPages, err = flags.GetInt("max-pages"); err != nil {
		return nil, err
	}
	if cfg.MaxQueue, err = flags.GetInt("max-queue"); err != nil {
		return nil, err
	}
	if cfg.CrawlDelay, err = flags.GetDuration("crawl-delay"); err != nil {
		return nil, err
	}
	if cfg.DBDir, err = flags.GetString("db-dir"); err != nil {
		return nil, err
	}

	cfg.Verbose = getPersistentBool(cmd, "verbose")
	cfg.LogJSON = getPersistentBool(cmd, "log-json")
	cfg.ConfigFilePath = getPersistentString(cmd, "config")

	if err := loadConfigFile(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadConfigFile loads the config file into cfg.TargetConfigs.
// If the user explicitly specified a path, a missing file is an error.
// Otherwise an empty config is used when no file is found.
func loadConfigFile(cfg *config.Config) error {
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case configPath != "":
		file, err := config.LoadConfigFile(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		cfg.TargetConfigs = file
	case cfg.ConfigFilePath != "":
		return fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	default:
		cfg.TargetConfigs = &config.File{Targets: make(map[string]config.TargetConfig)}
	}
	return nil
}

// applyTargetConfig fills in crawl limits from the config file entry of the
// (already normalized) target. Flags set on the command line win.
func applyTargetConfig(cmd *cobra.Command, cfg *config.Config, site config.TargetConfig) {
	if site.MaxPages > 0 && !cmd.Flags().Changed("max-pages") {
		cfg.MaxPages = site.MaxPages
	}
	if site.MaxQueue > 0 && !cmd.Flags().Changed("max-queue") {
		cfg.MaxQueue = site.MaxQueue
	}
}

// getPersistentString retrieves a global flag from the command or its root.
func getPersistentString(cmd *cobra.Command, name string) string {
	v, err := cmd.Flags().GetString(name)
	if err != nil {
		v, err = cmd.Root().PersistentFlags().GetString(name)
		if err != nil {
			return ""
		}
	}
	return v
}

// getPersistentBool retrieves a global flag from the command or its root.
func getPersistentBool(cmd *cobra.Command, name string) bool {
	v, err := cmd.Flags().GetBool(name)
	if err != nil {
		v, err = cmd.Root().PersistentFlags().GetBool(name)
		if err != nil {
			return false
		}
	}
	return v
}

// setupLogger creates the secure structured logger. Info-level progress is
// shown only in verbose mode; warnings always are.
func setupLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	if cfg.LogJSON {
		return wslog.NewSecureJSONLogger(w, cfg.Verbose)
	}
	return wslog.NewSecureLogger(w, cfg.Verbose)
}

// clientSetup is the HTTP client of a run and the cleanup of any embedded
// Tor daemon backing it.
type clientSetup struct {
	client *transport.Client
	tor    *transport.EmbeddedTor
}

// close stops the embedded Tor daemon, if any.
func (c *clientSetup) close(logger *slog.Logger) {
	if c.tor == nil {
		return
	}
	logger.Info("stopping embedded Tor daemon")
	if err := c.tor.Stop(); err != nil {
		logger.Error("failed to stop embedded Tor", "error", err)
	}
}

// newClient creates the transport client for cfg and the target settings,
// starting an embedded Tor daemon or checking the SOCKS5 proxy as needed.
func newClient(ctx context.Context, out io.Writer, cfg *config.Config, site config.TargetConfig, logger *slog.Logger) (*clientSetup, error) {
	opts := []transport.Option{
		transport.WithConnectTimeout(cfg.ConnectTimeout),
		transport.WithReadTimeout(cfg.ReadTimeout),
		transport.WithInsecureSkipVerify(cfg.InsecureSkipVerify),
		transport.WithMaxConnsPerHost(cfg.MaxConnsPerHost),
	}
	if site.Cookie != "" {
		opts = append(opts, transport.WithCookie(site.Cookie))
	}
	if len(site.Headers) > 0 {
		opts = append(opts, transport.WithHeaders(site.Headers))
	}

	setup := &clientSetup{}
	switch {
	case cfg.UseTor:
		fmt.Fprintln(out, "Starting embedded Tor daemon...")
		fmt.Fprintf(out, "This may take 1-3 minutes while Tor bootstraps and connects to the network.\n\n")

		setup.tor = transport.NewEmbeddedTor(transport.WithStartupTimeout(cfg.TorStartupTimeout))
		if err := setup.tor.Start(ctx); err != nil {
			return nil, fmt.Errorf("failed to start embedded Tor: %w", err)
		}
		proxyOpt, err := setup.tor.ProxyOption()
		if err != nil {
			setup.close(logger)
			return nil, err
		}
		opts = append(opts, proxyOpt)
		logger.Info("embedded Tor daemon started",
			"socksAddr", setup.tor.SocksAddr(),
			"controlAddr", setup.tor.ControlAddr(),
		)
	case cfg.ProxyAddress != "":
		opts = append(opts, transport.WithProxy(cfg.ProxyAddress))
	}

	client, err := transport.NewClient(opts...)
	if err != nil {
		setup.close(logger)
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}
	if status := client.CheckProxy(ctx); status != transport.ProxyStatusOK {
		setup.close(logger)
		return nil, fmt.Errorf("proxy check failed: %s (make sure a SOCKS5 proxy is running at %s): %w",
			status, client.ProxyAddress(), status.Err())
	}
	setup.client = client
	return setup, nil
}

// openOutput returns the report destination: path, or fallback when path
// is empty. The returned close function is always safe to call.
func openOutput(path string, fallback io.Writer) (io.Writer, func() error, error) {
	if strings.TrimSpace(path) == "" {
		return fallback, func() error { return nil }, nil
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	// Reports may include target URLs and failure reasons.
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) //nolint:gosec // user-chosen output path
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, f.Close, nil
}

// preflight probes the target once and logs anything worth a warning.
func preflight(ctx context.Context, setup *clientSetup, cfg *config.Config, logger *slog.Logger) (*probe.Result, error) {
	result, err := probe.New(setup.client.HTTPClient(),
		probe.WithUserAgent(cfg.UserAgent),
		probe.WithMaxBodySize(cfg.MaxBodySize),
	).Probe(ctx, cfg.Target)
	if err != nil {
		return nil, err
	}

	logger.Info("target probed",
		"target", result.Target,
		"status", result.StatusCode,
		"latency", result.Latency.Round(time.Millisecond),
		"server", result.Banner,
		"tls", result.TLSVersion,
	)
	for _, w := range result.Warnings(time.Now()) {
		logger.Warn("preflight: "+w, "target", result.Target)
	}
	return result, nil
}

package pipeline

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/nao1215/webswarm/internal/behavior"
	"github.com/nao1215/webswarm/internal/classifier"
	"github.com/nao1215/webswarm/internal/model"
	"github.com/nao1215/webswarm/internal/stats"
)

// UserPipelineConfig holds the settings of the standard per-user pipeline.
type UserPipelineConfig struct {
	// Crawl settings.
	MaxPages       int
	MaxQueue       int
	CrawlDelay     time.Duration
	IgnorePatterns []string
	FollowPatterns []string

	// Browse settings. Turns of zero means unbounded.
	Model   *behavior.Model
	MinWait time.Duration
	MaxWait time.Duration
	Turns   int

	// Limiter caps the aggregate turn rate when non-nil. It is shared by
	// every user of a run.
	Limiter *rate.Limiter

	UserAgent   string
	MaxBodySize int64
	Logger      *slog.Logger
}

// UserPipeline creates the standard crawl, detect, browse pipeline.
func UserPipeline(client *http.Client, sink stats.Sink, cfg UserPipelineConfig, pipelineOpts ...Option) *Pipeline {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	crawlOpts := []CrawlStepOption{
		WithCrawlDelay(cfg.CrawlDelay),
		WithCrawlIgnorePatterns(cfg.IgnorePatterns),
		WithCrawlFollowPatterns(cfg.FollowPatterns),
		WithCrawlSink(sink),
		WithCrawlLogger(logger),
	}
	browseOpts := []BrowseStepOption{
		WithBrowseWait(cfg.MinWait, cfg.MaxWait),
		WithBrowseTurns(cfg.Turns),
		WithBrowseRateLimiter(cfg.Limiter),
		WithBrowseLogger(logger),
	}
	if cfg.MaxPages > 0 {
		crawlOpts = append(crawlOpts, WithCrawlMaxPages(cfg.MaxPages))
	}
	if cfg.MaxQueue > 0 {
		crawlOpts = append(crawlOpts, WithCrawlMaxQueue(cfg.MaxQueue))
	}
	if cfg.UserAgent != "" {
		crawlOpts = append(crawlOpts, WithCrawlUserAgent(cfg.UserAgent))
		browseOpts = append(browseOpts, WithBrowseUserAgent(cfg.UserAgent))
	}
	if cfg.MaxBodySize > 0 {
		crawlOpts = append(crawlOpts, WithCrawlMaxBodySize(cfg.MaxBodySize))
		browseOpts = append(browseOpts, WithBrowseMaxBodySize(cfg.MaxBodySize))
	}
	if cfg.Model != nil {
		browseOpts = append(browseOpts, WithBrowseModel(cfg.Model))
	}

	p := New(append([]Option{WithLogger(logger)}, pipelineOpts...)...)
	p.AddSteps(
		NewCrawlStep(client, crawlOpts...),
		NewDetectStep(logger),
		NewBrowseStep(client, sink, browseOpts...),
	)
	return p
}

// Swarm runs a number of simulated users against one origin.
type Swarm struct {
	newPipeline func() *Pipeline
	collector   *stats.Collector
	users       int
	spawnRate   float64
	seed        uint64
	duration    time.Duration
	logger      *slog.Logger
}

// SwarmOption configures a Swarm.
type SwarmOption func(*Swarm)

// WithUsers sets the number of simulated users.
func WithUsers(n int) SwarmOption {
	return func(s *Swarm) {
		s.users = n
	}
}

// WithSpawnRate sets how many users start per second. Zero or less
// starts all users at once.
func WithSpawnRate(perSecond float64) SwarmOption {
	return func(s *Swarm) {
		s.spawnRate = perSecond
	}
}

// WithSeed fixes the base seed of the per-user random sources.
// Zero picks a random seed.
func WithSeed(seed uint64) SwarmOption {
	return func(s *Swarm) {
		s.seed = seed
	}
}

// WithDuration stops the run after d. Zero runs until the users finish
// or the context is cancelled.
func WithDuration(d time.Duration) SwarmOption {
	return func(s *Swarm) {
		s.duration = d
	}
}

// WithSwarmLogger sets a custom logger for the swarm.
func WithSwarmLogger(logger *slog.Logger) SwarmOption {
	return func(s *Swarm) {
		s.logger = logger
	}
}

// NewSwarm creates a swarm. newPipeline is called once per user; the
// pipelines it returns must report to collector.
func NewSwarm(newPipeline func() *Pipeline, collector *stats.Collector, opts ...SwarmOption) *Swarm {
	s := &Swarm{
		newPipeline: newPipeline,
		collector:   collector,
		users:       1,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.seed == 0 {
		s.seed = rand.Uint64()
	}
	return s
}

// Seed returns the base seed used for the per-user random sources.
func (s *Swarm) Seed() uint64 {
	return s.seed
}

// Run spawns the users against origin and blocks until all of them have
// stopped. User i draws from a PCG source seeded with (seed, i), so a run
// with a fixed seed replays the same turn sequences against an unchanged
// site. The only error returned is an unparseable origin; cancellation of
// ctx ends the run early and is reported through RunReport.Interrupted.
func (s *Swarm) Run(ctx context.Context, origin string) (*model.RunReport, error) {
	origin, err := classifier.ParseOrigin(origin)
	if err != nil {
		return nil, err
	}

	runCtx := ctx
	if s.duration > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.duration)
		defer cancel()
	}

	var spawn *rate.Limiter
	if s.spawnRate > 0 {
		spawn = rate.NewLimiter(rate.Limit(s.spawnRate), 1)
	}

	report := model.NewRunReport(origin, s.users)
	report.Seed = s.seed

	s.logger.Info("swarm started",
		"target", origin,
		"users", s.users,
		"spawn_rate", s.spawnRate,
		"seed", s.seed,
	)

	sessions := make([]*model.UserSession, 0, s.users)
	g, gctx := errgroup.WithContext(runCtx)
	for i := range s.users {
		if spawn != nil {
			if err := spawn.Wait(runCtx); err != nil {
				break
			}
		}

		id := i + 1
		session := model.NewUserSession(id, origin, rand.New(rand.NewPCG(s.seed, uint64(id)))) //nolint:gosec // load-test traffic, not security sensitive
		sessions = append(sessions, session)
		p := s.newPipeline()

		s.logger.Debug("user spawned", "user", id)
		g.Go(func() error {
			if err := p.Execute(gctx, session); err != nil {
				s.logger.Debug("user stopped", "user", id, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	report.FinishedAt = time.Now()
	report.Interrupted = ctx.Err() != nil
	report.Labels, report.Total = s.collector.Summaries()
	for _, session := range sessions {
		report.Users = append(report.Users, session.Summary())
	}

	s.logger.Info("swarm finished",
		"target", origin,
		"users", len(sessions),
		"requests", report.Total.Requests,
		"failures", report.Total.Failures,
		"interrupted", report.Interrupted,
	)
	return report, nil
}

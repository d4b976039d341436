package pipeline

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/nao1215/webswarm/internal/behavior"
	"github.com/nao1215/webswarm/internal/classifier"
	"github.com/nao1215/webswarm/internal/config"
	"github.com/nao1215/webswarm/internal/crawler"
	"github.com/nao1215/webswarm/internal/model"
	"github.com/nao1215/webswarm/internal/search"
	"github.com/nao1215/webswarm/internal/stats"
	"github.com/nao1215/webswarm/internal/transport"
)

// reasonEndpointNotFound is reported for search turns answered with 404.
const reasonEndpointNotFound = "endpoint not found"

// CrawlStep discovers the target site for one user.
type CrawlStep struct {
	client         *http.Client
	maxPages       int
	maxQueue       int
	delay          time.Duration
	userAgent      string
	maxBodySize    int64
	ignorePatterns []string
	followPatterns []string
	sink           stats.Sink
	logger         *slog.Logger
}

// CrawlStepOption configures a CrawlStep.
type CrawlStepOption func(*CrawlStep)

// WithCrawlMaxPages sets the maximum number of crawl fetches.
func WithCrawlMaxPages(maxPages int) CrawlStepOption {
	return func(s *CrawlStep) {
		s.maxPages = maxPages
	}
}

// WithCrawlMaxQueue sets the frontier queue capacity.
func WithCrawlMaxQueue(maxQueue int) CrawlStepOption {
	return func(s *CrawlStep) {
		s.maxQueue = maxQueue
	}
}

// WithCrawlDelay sets the delay between crawl requests.
func WithCrawlDelay(d time.Duration) CrawlStepOption {
	return func(s *CrawlStep) {
		s.delay = d
	}
}

// WithCrawlUserAgent sets the User-Agent header for crawl requests.
func WithCrawlUserAgent(ua string) CrawlStepOption {
	return func(s *CrawlStep) {
		s.userAgent = ua
	}
}

// WithCrawlMaxBodySize sets the maximum response body size.
func WithCrawlMaxBodySize(size int64) CrawlStepOption {
	return func(s *CrawlStep) {
		s.maxBodySize = size
	}
}

// WithCrawlIgnorePatterns sets URL path patterns to skip during crawling.
func WithCrawlIgnorePatterns(patterns []string) CrawlStepOption {
	return func(s *CrawlStep) {
		s.ignorePatterns = patterns
	}
}

// WithCrawlFollowPatterns sets URL path patterns to follow during crawling.
func WithCrawlFollowPatterns(patterns []string) CrawlStepOption {
	return func(s *CrawlStep) {
		s.followPatterns = patterns
	}
}

// WithCrawlSink sets the stats sink crawl fetches are reported to.
func WithCrawlSink(sink stats.Sink) CrawlStepOption {
	return func(s *CrawlStep) {
		s.sink = sink
	}
}

// WithCrawlLogger sets a custom logger for the crawl step.
func WithCrawlLogger(logger *slog.Logger) CrawlStepOption {
	return func(s *CrawlStep) {
		s.logger = logger
	}
}

// NewCrawlStep creates a crawl step fetching through client.
func NewCrawlStep(client *http.Client, opts ...CrawlStepOption) *CrawlStep {
	s := &CrawlStep{
		client:      client,
		maxPages:    config.DefaultMaxPages,
		maxQueue:    config.DefaultMaxQueue,
		userAgent:   config.DefaultUserAgent,
		maxBodySize: config.DefaultMaxBodySize,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *CrawlStep) Name() string {
	return "crawl"
}

// Do crawls session.Origin and stores the site map and fetch records on
// the session. Body fingerprints of crawled pages seed the rediscover
// freshness check.
func (s *CrawlStep) Do(ctx context.Context, session *model.UserSession) error {
	spiderOpts := []crawler.SpiderOption{
		crawler.WithMaxPages(s.maxPages),
		crawler.WithMaxQueue(s.maxQueue),
		crawler.WithDelay(s.delay),
		crawler.WithUserAgent(s.userAgent),
		crawler.WithMaxBodySize(s.maxBodySize),
		crawler.WithUserID(session.ID),
		crawler.WithLogger(s.logger),
	}
	if len(s.ignorePatterns) > 0 {
		spiderOpts = append(spiderOpts, crawler.WithIgnorePatterns(s.ignorePatterns))
	}
	if len(s.followPatterns) > 0 {
		spiderOpts = append(spiderOpts, crawler.WithFollowPatterns(s.followPatterns))
	}
	if s.sink != nil {
		spiderOpts = append(spiderOpts, crawler.WithRecorder(s.sink))
	}

	site, pages, err := crawler.NewSpider(s.client, spiderOpts...).Crawl(ctx, session.Origin)
	if site == nil {
		return err
	}

	session.Site = site
	session.Crawled = pages
	for _, page := range pages {
		if page.OK() && page.Hash != "" {
			session.SetFingerprint(page.Path, page.Hash)
		}
	}
	if err != nil {
		return err
	}

	s.logger.Info("crawl completed",
		"user", session.ID,
		"fetches", len(pages),
		"pages", site.PageCount(),
		"assets", site.AssetCount(),
	)
	return nil
}

// DetectStep infers the search endpoint from the user's site map.
type DetectStep struct {
	logger *slog.Logger
}

// NewDetectStep creates a detect step.
func NewDetectStep(logger *slog.Logger) *DetectStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &DetectStep{logger: logger}
}

// Name returns the step name.
func (s *DetectStep) Name() string {
	return "detect"
}

// Do replaces an empty site map with the seed-only fallback and runs the
// search detector over it.
func (s *DetectStep) Do(_ context.Context, session *model.UserSession) error {
	if session.Site == nil || session.Site.PageCount() == 0 {
		s.logger.Warn("crawl discovered nothing, falling back to the seed page", "user", session.ID)
		session.Site = model.SeedOnlySite(session.Origin)
	}
	session.Search = search.Detect(session.Site)

	s.logger.Debug("search detection completed",
		"user", session.ID,
		"has_search", session.Search.HasSearch,
		"search_paths", session.Search.SearchPaths,
	)
	return nil
}

// BrowseStep issues the user's turns until the turn budget is spent or the
// context is cancelled.
type BrowseStep struct {
	client      *http.Client
	model       *behavior.Model
	sink        stats.Sink
	minWait     time.Duration
	maxWait     time.Duration
	turns       int
	limiter     *rate.Limiter
	userAgent   string
	maxBodySize int64
	logger      *slog.Logger
}

// BrowseStepOption configures a BrowseStep.
type BrowseStepOption func(*BrowseStep)

// WithBrowseModel sets the behavior model.
func WithBrowseModel(m *behavior.Model) BrowseStepOption {
	return func(s *BrowseStep) {
		s.model = m
	}
}

// WithBrowseWait sets the bounds of the uniform pause between turns.
func WithBrowseWait(minWait, maxWait time.Duration) BrowseStepOption {
	return func(s *BrowseStep) {
		s.minWait = minWait
		s.maxWait = maxWait
	}
}

// WithBrowseTurns limits the number of turns. Zero means unbounded.
func WithBrowseTurns(n int) BrowseStepOption {
	return func(s *BrowseStep) {
		s.turns = n
	}
}

// WithBrowseRateLimiter shares a request rate cap across users.
func WithBrowseRateLimiter(l *rate.Limiter) BrowseStepOption {
	return func(s *BrowseStep) {
		s.limiter = l
	}
}

// WithBrowseUserAgent sets the User-Agent header for turn requests.
func WithBrowseUserAgent(ua string) BrowseStepOption {
	return func(s *BrowseStep) {
		s.userAgent = ua
	}
}

// WithBrowseMaxBodySize sets the maximum response body size.
func WithBrowseMaxBodySize(size int64) BrowseStepOption {
	return func(s *BrowseStep) {
		s.maxBodySize = size
	}
}

// WithBrowseLogger sets a custom logger for the browse step.
func WithBrowseLogger(logger *slog.Logger) BrowseStepOption {
	return func(s *BrowseStep) {
		s.logger = logger
	}
}

// NewBrowseStep creates a browse step that reports every turn to sink.
func NewBrowseStep(client *http.Client, sink stats.Sink, opts ...BrowseStepOption) *BrowseStep {
	s := &BrowseStep{
		client:      client,
		model:       behavior.New(),
		sink:        sink,
		minWait:     config.DefaultMinWait,
		maxWait:     config.DefaultMaxWait,
		userAgent:   config.DefaultUserAgent,
		maxBodySize: config.DefaultMaxBodySize,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *BrowseStep) Name() string {
	return "browse"
}

// Do runs the turn loop. Cancellation ends the loop without error.
func (s *BrowseStep) Do(ctx context.Context, session *model.UserSession) error {
	site := session.Site
	if site == nil {
		site = model.SeedOnlySite(session.Origin)
	}

	for n := 0; s.turns == 0 || n < s.turns; n++ {
		if ctx.Err() != nil {
			return nil
		}

		turn := s.model.NextTurn(site, session.Search, session.Rand)
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return nil
			}
		}

		outcome, ok := s.execute(ctx, session, site, turn)
		if !ok {
			return nil
		}
		s.sink.Record(outcome)
		session.RecordTurn(outcome.Success)

		if s.turns != 0 && n == s.turns-1 {
			break
		}
		if !sleep(ctx, s.pause(session.Rand)) {
			return nil
		}
	}
	return nil
}

// pause draws the inter-turn delay uniformly from [minWait, maxWait].
func (s *BrowseStep) pause(rng *rand.Rand) time.Duration {
	if s.maxWait <= s.minWait {
		return s.minWait
	}
	return s.minWait + time.Duration(rng.Int64N(int64(s.maxWait-s.minWait)+1))
}

// execute issues the request a turn implies. It returns false when the
// request was aborted by cancellation and must not be reported.
func (s *BrowseStep) execute(ctx context.Context, session *model.UserSession, site *model.DiscoveredSite, turn model.Turn) (model.Outcome, bool) {
	outcome := model.Outcome{
		UserID:    session.ID,
		Label:     turn.Label,
		Method:    turn.Method,
		Target:    turn.Target(),
		Timestamp: time.Now(),
	}

	req, err := http.NewRequestWithContext(ctx, turn.Method, session.Origin+outcome.Target, nil)
	if err != nil {
		outcome.Reason = err.Error()
		return outcome, true
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return outcome, false
		}
		outcome.Duration = time.Since(outcome.Timestamp)
		outcome.Reason = err.Error()
		s.logger.Debug("turn failed", "user", session.ID, "target", outcome.Target, "error", err)
		return outcome, true
	}
	defer resp.Body.Close()

	var body []byte
	if turn.Kind == model.TurnRediscover {
		body, err = io.ReadAll(io.LimitReader(resp.Body, s.maxBodySize))
		outcome.Bytes = int64(len(body))
	} else {
		outcome.Bytes, err = io.Copy(io.Discard, io.LimitReader(resp.Body, s.maxBodySize))
	}
	outcome.Duration = time.Since(outcome.Timestamp)
	outcome.StatusCode = resp.StatusCode

	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		if ctx.Err() != nil {
			return outcome, false
		}
		outcome.Reason = err.Error()
		return outcome, true
	}

	if err := transport.CheckStatus(resp.StatusCode); err != nil {
		outcome.Reason = err.Error()
		if turn.IsSearch() && resp.StatusCode == http.StatusNotFound {
			outcome.Reason = reasonEndpointNotFound
		}
		return outcome, true
	}
	outcome.Success = true

	if turn.Kind == model.TurnRediscover {
		s.rediscover(session, site, turn.Path, resp.Header.Get("Content-Type"), body)
	}
	return outcome, true
}

// rediscover compares a re-fetched page with the last fingerprint seen
// for it and counts internal links missing from the site map.
func (s *BrowseStep) rediscover(session *model.UserSession, site *model.DiscoveredSite, path, contentType string, body []byte) {
	fp := model.Fingerprint(body)
	prev, seen := session.Fingerprint(path)
	session.SetFingerprint(path, fp)
	if seen && prev == fp {
		return
	}

	fresh := freshLinks(site, session.Origin+path, contentType, body)
	if fresh == 0 {
		return
	}
	session.AddFreshLinks(fresh)
	s.logger.Info("rediscover found new links",
		"user", session.ID,
		"path", path,
		"fresh_links", fresh,
	)
}

// freshLinks counts distinct internal links in an HTML body that the site
// map does not know.
func freshLinks(site *model.DiscoveredSite, pageURL, contentType string, body []byte) int {
	if !crawler.IsHTML(contentType) {
		return 0
	}
	parser, err := crawler.NewParser(pageURL)
	if err != nil {
		return 0
	}
	result, err := parser.Parse(bytes.NewReader(body))
	if err != nil {
		return 0
	}

	seen := make(map[string]struct{})
	for _, link := range result.Links {
		if !classifier.IsInternal(link.String(), site.Origin) {
			continue
		}
		path := classifier.RelativePath(link)
		if site.Knows(path) {
			continue
		}
		seen[path] = struct{}{}
	}
	return len(seen)
}

// sleep waits for d or until ctx is done. It returns false on cancellation.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

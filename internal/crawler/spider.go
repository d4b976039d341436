package crawler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/nao1215/webswarm/internal/classifier"
	"github.com/nao1215/webswarm/internal/model"
)

// Recorder receives one outcome per crawl fetch.
// stats.Collector satisfies it.
type Recorder interface {
	Record(model.Outcome)
}

// nopRecorder discards outcomes.
type nopRecorder struct{}

func (nopRecorder) Record(model.Outcome) {}

// Spider crawls a single site breadth-first and builds its DiscoveredSite.
// A Spider holds configuration only; all traversal state is local to a
// Crawl call, so one Spider may be reused for consecutive crawls.
type Spider struct {
	// client issues the GET requests. Timeouts, proxying and header
	// injection are configured on it by the transport package.
	client *http.Client

	// maxPages bounds the number of fetch attempts.
	maxPages int

	// maxQueue bounds the frontier queue length.
	maxQueue int

	// delay is the time to wait between requests.
	delay time.Duration

	// userAgent is the User-Agent header to use.
	userAgent string

	// maxBodySize limits the size of response bodies to read.
	maxBodySize int64

	// ignorePatterns are URL path patterns to skip during crawling.
	// Patterns use glob syntax (e.g., "/admin/*", "*.pdf").
	ignorePatterns []string

	// followPatterns are URL path patterns to follow during crawling.
	// If set, only URLs matching these patterns are recorded.
	followPatterns []string

	// userID tags recorded outcomes.
	userID int

	recorder Recorder
	logger   *slog.Logger
}

// SpiderOption configures a Spider.
type SpiderOption func(*Spider)

// WithMaxPages sets the maximum number of fetch attempts.
func WithMaxPages(maxPages int) SpiderOption {
	return func(s *Spider) {
		s.maxPages = maxPages
	}
}

// WithMaxQueue sets the frontier queue capacity.
func WithMaxQueue(maxQueue int) SpiderOption {
	return func(s *Spider) {
		s.maxQueue = maxQueue
	}
}

// WithDelay sets the delay between requests.
func WithDelay(d time.Duration) SpiderOption {
	return func(s *Spider) {
		s.delay = d
	}
}

// WithUserAgent sets the User-Agent header of crawl requests.
func WithUserAgent(ua string) SpiderOption {
	return func(s *Spider) {
		s.userAgent = ua
	}
}

// WithMaxBodySize sets the maximum response body size.
func WithMaxBodySize(size int64) SpiderOption {
	return func(s *Spider) {
		s.maxBodySize = size
	}
}

// WithIgnorePatterns sets URL path patterns to skip during crawling.
// Patterns use glob syntax (e.g., "/admin/*", "*.pdf", "/logout*").
// Matching pages are neither recorded nor traversed.
func WithIgnorePatterns(patterns []string) SpiderOption {
	return func(s *Spider) {
		s.ignorePatterns = patterns
	}
}

// WithFollowPatterns sets URL path patterns to follow during crawling.
// If set, only pages matching at least one pattern are recorded.
func WithFollowPatterns(patterns []string) SpiderOption {
	return func(s *Spider) {
		s.followPatterns = patterns
	}
}

// WithRecorder sets the sink that receives one outcome per fetch.
func WithRecorder(r Recorder) SpiderOption {
	return func(s *Spider) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithUserID sets the user ID stamped on recorded outcomes.
func WithUserID(id int) SpiderOption {
	return func(s *Spider) {
		s.userID = id
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) SpiderOption {
	return func(s *Spider) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSpider creates a new Spider that fetches through client.
func NewSpider(client *http.Client, opts ...SpiderOption) *Spider {
	s := &Spider{
		client:      client,
		maxPages:    50,
		maxQueue:    100,
		userAgent:   "webswarm/1.0",
		maxBodySize: 5 * 1024 * 1024,
		recorder:    nopRecorder{},
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Crawl walks the site at origin breadth-first from model.SeedPath.
//
// It returns the sealed site map and one Page record per fetch attempt.
// The seed path is always in the site's pages. Traversal stops when the
// queue drains or maxPages fetches were made. If ctx is cancelled between
// fetches, the partial site is returned together with ctx.Err().
func (s *Spider) Crawl(ctx context.Context, origin string) (*model.DiscoveredSite, []model.Page, error) {
	base, err := classifier.ParseOrigin(origin)
	if err != nil {
		return nil, nil, err
	}

	site := model.NewDiscoveredSite(base)
	defer site.Seal()

	frontier := NewFrontier(s.maxQueue)
	site.AddPage(model.SeedPath)
	frontier.Visit(model.SeedPath)
	frontier.Push(model.SeedPath)

	pages := make([]model.Page, 0)
	for frontier.Len() > 0 && len(pages) < s.maxPages {
		select {
		case <-ctx.Done():
			return site, pages, ctx.Err()
		default:
		}

		path, _ := frontier.Pop()
		page, body := s.fetch(ctx, base, path)
		if page.OK() {
			if body != nil {
				page.Links = s.expand(base+path, body, site, frontier)
			} else {
				s.logger.Debug("skipping link extraction for non-HTML response",
					"path", path, "content_type", page.ContentType)
			}
		}
		pages = append(pages, page)

		if s.delay > 0 && frontier.Len() > 0 && len(pages) < s.maxPages {
			select {
			case <-ctx.Done():
				return site, pages, ctx.Err()
			case <-time.After(s.delay):
			}
		}
	}

	s.logger.Debug("crawl finished",
		"origin", base,
		"fetches", len(pages),
		"pages", site.PageCount(),
		"assets", site.AssetCount(),
		"peak_queue", frontier.Peak(),
	)
	return site, pages, nil
}

// fetch issues one GET and reports it under the crawler label. The body is
// returned only for 2xx HTML responses.
func (s *Spider) fetch(ctx context.Context, base, path string) (model.Page, []byte) {
	page := model.Page{Path: path}
	outcome := model.Outcome{
		UserID:    s.userID,
		Label:     model.LabelCrawler,
		Method:    http.MethodGet,
		Target:    path,
		Timestamp: time.Now(),
	}
	defer func() {
		outcome.Duration = time.Since(outcome.Timestamp)
		s.recorder.Record(outcome)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+path, nil)
	if err != nil {
		page.Error = err.Error()
		outcome.Reason = page.Error
		return page, nil
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := s.client.Do(req)
	if err != nil {
		page.Error = err.Error()
		outcome.Reason = page.Error
		s.logger.Debug("crawl fetch failed", "path", path, "error", err)
		return page, nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBodySize))
	page.StatusCode = resp.StatusCode
	page.ContentType = resp.Header.Get("Content-Type")
	page.Size = int64(len(body))
	outcome.StatusCode = resp.StatusCode
	outcome.Bytes = page.Size
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		page.Error = err.Error()
		outcome.Reason = page.Error
		s.logger.Debug("crawl body read failed", "path", path, "error", err)
		return page, nil
	}
	page.Hash = model.Fingerprint(body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		page.Error = fmt.Sprintf("unexpected status code %d", resp.StatusCode)
		outcome.Reason = page.Error
		s.logger.Debug("crawl fetch returned non-2xx status", "path", path, "status", resp.StatusCode)
		return page, nil
	}

	outcome.Success = true
	if !IsHTML(page.ContentType) {
		return page, nil
	}
	return page, body
}

// expand parses an HTML body and records what it links to. It returns the
// number of internal links found.
func (s *Spider) expand(pageURL string, body []byte, site *model.DiscoveredSite, frontier *Frontier) int {
	parser, err := NewParser(pageURL)
	if err != nil {
		return 0
	}
	result, err := parser.Parse(bytes.NewReader(body))
	if err != nil {
		s.logger.Debug("skipping unparseable page", "url", pageURL, "error", err)
		return 0
	}

	internal := 0
	for _, ref := range result.Refs {
		switch ref.Kind {
		case RefLink:
			if !classifier.IsInternal(ref.URL.String(), site.Origin) {
				continue
			}
			internal++
			s.discover(classifier.RelativePath(ref.URL), site, frontier, true)

		case RefForm:
			if !ref.Form.IsSearchForm() || !classifier.IsInternal(ref.Form.Action.String(), site.Origin) {
				continue
			}
			internal++
			s.discover(searchFormPath(ref.Form), site, frontier, false)

		case RefResource:
			if !classifier.IsInternal(ref.URL.String(), site.Origin) {
				continue
			}
			internal++
			s.addAsset(classifier.RelativePath(ref.URL), site)
		}
	}
	return internal
}

// discover records a newly seen internal path. Static assets go to the
// asset set and are never traversed. Pages are marked visited, recorded,
// and enqueued when traverse is set and the queue has room.
func (s *Spider) discover(path string, site *model.DiscoveredSite, frontier *Frontier, traverse bool) {
	if classifier.ClassifyPath(path) == classifier.StaticAsset {
		site.AddAsset(path)
		return
	}
	if frontier.Visited(path) || site.HasAsset(path) {
		return
	}
	frontier.Visit(path)
	if !s.shouldCrawl(path) {
		return
	}
	site.AddPage(path)
	if traverse && !frontier.Push(path) {
		s.logger.Debug("frontier saturated, recording without traversal", "path", path)
	}
}

// addAsset records a subresource path as an asset unless it was already
// discovered as a page. discover skips known assets, so a later anchor to
// the same path is never fetched.
func (s *Spider) addAsset(path string, site *model.DiscoveredSite) {
	if site.HasPage(path) {
		return
	}
	if site.AddAsset(path) {
		s.logger.Debug("asset discovered", "path", path)
	}
}

// searchFormPath builds the request path a GET search form submits to,
// with its first free-text field left empty.
func searchFormPath(form FormInfo) string {
	u := *form.Action
	for _, field := range form.Fields {
		if field.Type == "search" || field.Type == "text" {
			u.RawQuery = url.Values{field.Name: {""}}.Encode()
			break
		}
	}
	return classifier.RelativePath(&u)
}

// IsHTML reports whether a Content-Type header names an HTML media type.
func IsHTML(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}

// shouldCrawl checks if a path passes the ignore/follow patterns.
//
// Logic:
//  1. If the path matches any ignorePattern, skip it (return false)
//  2. If followPatterns is set and the path matches none, skip it (return false)
//  3. Otherwise, crawl it (return true)
func (s *Spider) shouldCrawl(target string) bool {
	path := target
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		path = "/"
	}

	for _, pattern := range s.ignorePatterns {
		if matchPattern(pattern, path) {
			return false
		}
	}

	if len(s.followPatterns) > 0 {
		for _, pattern := range s.followPatterns {
			if matchPattern(pattern, path) {
				return true
			}
		}
		return false
	}

	return true
}

// matchPattern checks if a path matches a glob pattern.
// Patterns can use:
//   - * to match any sequence of non-separator characters
//   - ? to match any single character
//   - a trailing /* to match everything below a prefix
//   - a leading *. to match an extension anywhere
func matchPattern(pattern, path string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
		if strings.HasPrefix(path, prefix+"/") || path == prefix {
			return true
		}
	}

	if strings.HasPrefix(pattern, "*.") {
		if strings.HasSuffix(path, strings.TrimPrefix(pattern, "*")) {
			return true
		}
	}

	matched, err := filepath.Match(pattern, path)
	if err != nil {
		return false
	}
	if matched {
		return true
	}

	if strings.Contains(pattern, "*") && !strings.Contains(pattern, "/") {
		matched, err := filepath.Match(pattern, filepath.Base(path))
		if err == nil && matched {
			return true
		}
	}

	return false
}

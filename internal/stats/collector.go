package stats

import (
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/nao1215/webswarm/internal/model"
)

// Sink receives one outcome per request.
type Sink interface {
	Record(model.Outcome)
}

// Collector aggregates outcomes per label.
type Collector struct {
	mu     sync.Mutex
	labels map[string]*Stats
	logger *slog.Logger
	now    func() time.Time
	start  time.Time
}

// CollectorOption configures a Collector.
type CollectorOption func(*Collector)

// WithLogger sets the logger used for per-request debug output.
func WithLogger(logger *slog.Logger) CollectorOption {
	return func(c *Collector) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock overrides the time source used for throughput.
func WithClock(now func() time.Time) CollectorOption {
	return func(c *Collector) {
		c.now = now
	}
}

// NewCollector creates an empty collector. Its throughput clock starts now.
func NewCollector(opts ...CollectorOption) *Collector {
	c := &Collector{
		labels: make(map[string]*Stats),
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.start = c.now()
	return c
}

// Record implements Sink.
func (c *Collector) Record(o model.Outcome) {
	c.logger.Debug("request",
		"user", o.UserID,
		"label", o.Label,
		"url", o.Target,
		"status", o.StatusCode,
		"duration", o.Duration,
		"success", o.Success,
		"reason", o.Reason,
	)

	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.labels[o.Label]
	if !ok {
		s = NewStats()
		c.labels[o.Label] = s
	}
	s.AddResult(o.Duration.Milliseconds(), o.Bytes, o.Success, o.Reason)
}

// Requests returns the number of recorded outcomes across all labels.
func (c *Collector) Requests() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, s := range c.labels {
		n += s.Requests
	}
	return n
}

// Summaries returns one summary per label, sorted by label, plus the
// total over all labels. Throughput is measured since the collector was
// created.
func (c *Collector) Summaries() ([]model.LabelSummary, model.LabelSummary) {
	c.mu.Lock()
	snapshot := make(map[string]*Stats, len(c.labels))
	for label, s := range c.labels {
		snapshot[label] = s.clone()
	}
	elapsed := c.now().Sub(c.start)
	c.mu.Unlock()

	names := slices.Sorted(maps.Keys(snapshot))

	total := NewStats()
	out := make([]model.LabelSummary, 0, len(names))
	for _, label := range names {
		s := snapshot[label]
		total.Merge(s)
		out = append(out, summarize(label, s, elapsed))
	}
	return out, summarize("total", total, elapsed)
}

// summarize converts Stats into the report form.
func summarize(label string, s *Stats, elapsed time.Duration) model.LabelSummary {
	sorted := slices.Sorted(slices.Values(s.Durations))
	sum := model.LabelSummary{
		Label:    label,
		Requests: s.Requests,
		Failures: s.Failures,
		AvgMs:    s.Avg(),
		MinMs:    s.Min(),
		MaxMs:    s.Max(),
		P50Ms:    percentile(sorted, 50),
		P95Ms:    percentile(sorted, 95),
		P99Ms:    percentile(sorted, 99),
		Bytes:    s.Bytes,
	}
	if secs := elapsed.Seconds(); secs > 0 {
		sum.RPS = float64(s.Requests) / secs
	}
	if len(s.Reasons) > 0 {
		sum.FailureReasons = maps.Clone(s.Reasons)
	}
	return sum
}

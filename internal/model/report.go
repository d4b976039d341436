package model

import (
	"sort"
	"time"
)

// RunReport is the aggregated result of one load-test run.
type RunReport struct {
	// Target is the base origin that was load-tested.
	Target string `json:"target"`

	// StartedAt is when the first user was spawned.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt is when the last user stopped.
	FinishedAt time.Time `json:"finished_at"`

	// UserCount is the number of simulated users requested.
	UserCount int `json:"user_count"`

	// Seed is the base seed of the per-user random sources.
	Seed uint64 `json:"seed"`

	// Interrupted is true if the run was cancelled before users finished
	// their configured number of turns.
	Interrupted bool `json:"interrupted"`

	// Labels holds per-label statistics sorted by label.
	Labels []LabelSummary `json:"labels"`

	// Total aggregates every label.
	Total LabelSummary `json:"total"`

	// Users holds one summary per simulated user.
	Users []UserSummary `json:"users"`
}

// NewRunReport creates an empty report for target.
func NewRunReport(target string, users int) *RunReport {
	return &RunReport{
		Target:    target,
		StartedAt: time.Now(),
		UserCount: users,
		Labels:    make([]LabelSummary, 0),
		Users:     make([]UserSummary, 0),
	}
}

// Elapsed returns the wall-clock duration of the run.
func (r *RunReport) Elapsed() time.Duration {
	if r.FinishedAt.IsZero() {
		return time.Since(r.StartedAt)
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Label returns the summary for label and whether it exists.
func (r *RunReport) Label(label string) (LabelSummary, bool) {
	for _, l := range r.Labels {
		if l.Label == label {
			return l, true
		}
	}
	return LabelSummary{}, false
}

// LabelSummary holds request statistics for one metrics label.
type LabelSummary struct {
	Label          string         `json:"label"`
	Requests       int            `json:"requests"`
	Failures       int            `json:"failures"`
	RPS            float64        `json:"rps"`
	AvgMs          float64        `json:"avg_ms"`
	MinMs          int64          `json:"min_ms"`
	MaxMs          int64          `json:"max_ms"`
	P50Ms          int64          `json:"p50_ms"`
	P95Ms          int64          `json:"p95_ms"`
	P99Ms          int64          `json:"p99_ms"`
	Bytes          int64          `json:"bytes"`
	FailureReasons map[string]int `json:"failure_reasons,omitempty"`
}

// FailureRate returns the failure percentage.
func (l LabelSummary) FailureRate() float64 {
	if l.Requests == 0 {
		return 0
	}
	return float64(l.Failures) / float64(l.Requests) * 100
}

// SortedReasons returns the failure reasons ordered by count, then text.
func (l LabelSummary) SortedReasons() []ReasonCount {
	out := make([]ReasonCount, 0, len(l.FailureReasons))
	for reason, n := range l.FailureReasons {
		out = append(out, ReasonCount{Reason: reason, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Reason < out[j].Reason
	})
	return out
}

// ReasonCount pairs a failure reason with its number of occurrences.
type ReasonCount struct {
	Reason string
	Count  int
}

// UserSummary is the per-user part of a RunReport.
type UserSummary struct {
	ID          int      `json:"id"`
	Pages       int      `json:"pages"`
	Assets      int      `json:"assets"`
	CrawlFetch  int      `json:"crawl_fetches"`
	HasSearch   bool     `json:"has_search"`
	SearchPaths []string `json:"search_paths,omitempty"`
	Turns       int      `json:"turns"`
	Failures    int      `json:"failures"`
	FreshLinks  int      `json:"fresh_links"`
	Error       string   `json:"error,omitempty"`
}

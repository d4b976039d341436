package stats

import (
	"maps"
	"slices"
)

// Stats holds running statistics for one label.
type Stats struct {
	Requests      int
	Failures      int
	Bytes         int64
	Durations     []int64 // milliseconds, for percentile calculation
	TotalDuration int64
	MinDuration   int64
	MaxDuration   int64
	Reasons       map[string]int
}

// NewStats creates an empty Stats.
func NewStats() *Stats {
	return &Stats{
		Durations:   make([]int64, 0, 256),
		MinDuration: -1,
		MaxDuration: -1,
		Reasons:     make(map[string]int),
	}
}

// AddResult adds one request result. An empty reason on a failure is
// counted as "unknown".
func (s *Stats) AddResult(durationMs int64, bytes int64, success bool, reason string) {
	s.Requests++
	s.Bytes += bytes
	s.TotalDuration += durationMs
	s.Durations = append(s.Durations, durationMs)

	if !success {
		s.Failures++
		if reason == "" {
			reason = "unknown"
		}
		s.Reasons[reason]++
	}

	if s.MinDuration == -1 || durationMs < s.MinDuration {
		s.MinDuration = durationMs
	}
	if s.MaxDuration == -1 || durationMs > s.MaxDuration {
		s.MaxDuration = durationMs
	}
}

// Merge adds every result of other into s.
func (s *Stats) Merge(other *Stats) {
	if other.Requests == 0 {
		return
	}
	s.Requests += other.Requests
	s.Failures += other.Failures
	s.Bytes += other.Bytes
	s.TotalDuration += other.TotalDuration
	s.Durations = append(s.Durations, other.Durations...)
	for reason, n := range other.Reasons {
		s.Reasons[reason] += n
	}
	if s.MinDuration == -1 || other.MinDuration < s.MinDuration {
		s.MinDuration = other.MinDuration
	}
	if other.MaxDuration > s.MaxDuration {
		s.MaxDuration = other.MaxDuration
	}
}

// Avg returns the mean duration in milliseconds.
func (s *Stats) Avg() float64 {
	if s.Requests == 0 {
		return 0
	}
	return float64(s.TotalDuration) / float64(s.Requests)
}

// Min returns the minimum duration, or 0 if no results.
func (s *Stats) Min() int64 {
	if s.MinDuration == -1 {
		return 0
	}
	return s.MinDuration
}

// Max returns the maximum duration, or 0 if no results.
func (s *Stats) Max() int64 {
	if s.MaxDuration == -1 {
		return 0
	}
	return s.MaxDuration
}

// Percentile returns the p-th percentile (0..100) of the durations using
// linear interpolation between the closest ranks.
func (s *Stats) Percentile(p float64) int64 {
	return percentile(slices.Sorted(slices.Values(s.Durations)), p)
}

func percentile(sorted []int64, p float64) int64 {
	if len(sorted) == 0 {
		return 0
	}
	index := (p / 100.0) * float64(len(sorted)-1)
	lower := int(index)
	upper := lower + 1
	if upper >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	weight := index - float64(lower)
	return int64(float64(sorted[lower])*(1-weight) + float64(sorted[upper])*weight)
}

// FailureRate returns the failure percentage.
func (s *Stats) FailureRate() float64 {
	if s.Requests == 0 {
		return 0
	}
	return float64(s.Failures) / float64(s.Requests) * 100
}

// clone returns a deep copy.
func (s *Stats) clone() *Stats {
	c := *s
	c.Durations = slices.Clone(s.Durations)
	c.Reasons = maps.Clone(s.Reasons)
	return &c
}

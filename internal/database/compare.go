package database

import (
	"context"
	"fmt"
	"slices"

	"github.com/nao1215/webswarm/internal/model"
)

// LabelDelta compares one label between two runs.
// Missing labels count as zero requests on their side.
type LabelDelta struct {
	Label string

	PreviousRequests int
	CurrentRequests  int

	PreviousP95Ms int64
	CurrentP95Ms  int64

	PreviousFailureRate float64
	CurrentFailureRate  float64
}

// P95DeltaMs returns the change of the 95th percentile latency.
func (d LabelDelta) P95DeltaMs() int64 {
	return d.CurrentP95Ms - d.PreviousP95Ms
}

// FailureRateDelta returns the change of the failure percentage.
func (d LabelDelta) FailureRateDelta() float64 {
	return d.CurrentFailureRate - d.PreviousFailureRate
}

// Comparison holds the differences between two runs of a target.
type Comparison struct {
	Previous RunMetadata
	Current  RunMetadata
	Labels   []LabelDelta
}

// CompareLatest compares the two most recent runs of target.
func (hdb *HistoryDB) CompareLatest(ctx context.Context, target string) (*Comparison, error) {
	runs, err := hdb.GetRunHistory(ctx, target, 2)
	if err != nil {
		return nil, err
	}
	if len(runs) < 2 {
		return nil, fmt.Errorf("%w: %s has %d", ErrNotEnoughRuns, target, len(runs))
	}

	current, previous := runs[0], runs[1]
	curStats, err := hdb.GetLabelStats(ctx, current.ID)
	if err != nil {
		return nil, err
	}
	prevStats, err := hdb.GetLabelStats(ctx, previous.ID)
	if err != nil {
		return nil, err
	}

	return &Comparison{
		Previous: previous,
		Current:  current,
		Labels:   CompareLabels(prevStats, curStats),
	}, nil
}

// CompareLabels pairs the labels of two runs by name, sorted by label.
func CompareLabels(previous, current []model.LabelSummary) []LabelDelta {
	byLabel := make(map[string]*LabelDelta)
	get := func(label string) *LabelDelta {
		d, ok := byLabel[label]
		if !ok {
			d = &LabelDelta{Label: label}
			byLabel[label] = d
		}
		return d
	}

	for _, l := range previous {
		d := get(l.Label)
		d.PreviousRequests = l.Requests
		d.PreviousP95Ms = l.P95Ms
		d.PreviousFailureRate = l.FailureRate()
	}
	for _, l := range current {
		d := get(l.Label)
		d.CurrentRequests = l.Requests
		d.CurrentP95Ms = l.P95Ms
		d.CurrentFailureRate = l.FailureRate()
	}

	out := make([]LabelDelta, 0, len(byLabel))
	for _, d := range byLabel {
		out = append(out, *d)
	}
	slices.SortFunc(out, func(a, b LabelDelta) int {
		switch {
		case a.Label < b.Label:
			return -1
		case a.Label > b.Label:
			return 1
		}
		return 0
	})
	return out
}

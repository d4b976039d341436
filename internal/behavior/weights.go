package behavior

import (
	"errors"
	"fmt"
	"maps"

	"github.com/nao1215/webswarm/internal/model"
)

var (
	// ErrUnknownTurnKind is returned for a weight keyed by an unknown category name.
	ErrUnknownTurnKind = errors.New("unknown turn kind")

	// ErrNegativeWeight is returned for a weight below zero.
	ErrNegativeWeight = errors.New("turn weight must not be negative")
)

// Weights maps each turn category to its relative weight. A zero weight
// removes the category from every draw.
type Weights map[model.TurnKind]int

// DefaultWeights returns the standard category table.
func DefaultWeights() Weights {
	return Weights{
		model.TurnVisitPage:      3,
		model.TurnVisitAsset:     2,
		model.TurnBasicSearch:    2,
		model.TurnFilteredSearch: 1,
		model.TurnRediscover:     1,
		model.TurnHomepage:       1,
	}
}

// ParseWeights builds a weight table from category names, starting from
// DefaultWeights and overriding the named entries.
func ParseWeights(overrides map[string]int) (Weights, error) {
	w := DefaultWeights()
	for name, value := range overrides {
		kind, ok := kindByName(name)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownTurnKind, name)
		}
		if value < 0 {
			return nil, fmt.Errorf("%w: %s=%d", ErrNegativeWeight, name, value)
		}
		w[kind] = value
	}
	return w, nil
}

// Clone returns a copy of w.
func (w Weights) Clone() Weights {
	return maps.Clone(w)
}

// Names returns the table keyed by category name.
func (w Weights) Names() map[string]int {
	out := make(map[string]int, len(w))
	for kind, value := range w {
		out[kind.String()] = value
	}
	return out
}

func kindByName(name string) (model.TurnKind, bool) {
	for _, kind := range model.TurnKinds {
		if kind.String() == name {
			return kind, true
		}
	}
	return 0, false
}

package behavior

import (
	"net/url"

	"github.com/nao1215/webswarm/internal/model"
)

// Rand is the random source a Model draws from. *rand.Rand from
// math/rand/v2 satisfies it.
type Rand interface {
	IntN(n int) int
}

// DefaultRediscoverMinPages is the number of pages a site needs before
// rediscover turns become eligible.
const DefaultRediscoverMinPages = 10

// Model is the session behavior model. It holds only immutable
// configuration and is safe for concurrent use.
type Model struct {
	weights            Weights
	rediscoverMinPages int
}

// Option configures a Model.
type Option func(*Model)

// WithWeights replaces the category weight table. Categories missing from
// w get weight zero.
func WithWeights(w Weights) Option {
	return func(m *Model) {
		if w != nil {
			m.weights = w.Clone()
		}
	}
}

// WithRediscoverMinPages sets the page count that enables rediscover turns.
func WithRediscoverMinPages(n int) Option {
	return func(m *Model) {
		m.rediscoverMinPages = n
	}
}

// New creates a Model with DefaultWeights.
func New(opts ...Option) *Model {
	m := &Model{
		weights:            DefaultWeights(),
		rediscoverMinPages: DefaultRediscoverMinPages,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Weights returns a copy of the weight table.
func (m *Model) Weights() Weights {
	return m.weights.Clone()
}

// Eligible reports whether kind may be drawn for site.
func (m *Model) Eligible(kind model.TurnKind, site *model.DiscoveredSite) bool {
	if m.weights[kind] <= 0 {
		return false
	}
	switch kind {
	case model.TurnVisitPage:
		return site != nil && site.PageCount() > 0
	case model.TurnVisitAsset:
		return site != nil && site.AssetCount() > 0
	case model.TurnRediscover:
		return site != nil && site.PageCount() > 0 && site.PageCount() >= m.rediscoverMinPages
	default:
		return true
	}
}

// NextTurn draws the next turn for a user whose crawl produced site and
// info. When no category is eligible it returns a homepage turn.
func (m *Model) NextTurn(site *model.DiscoveredSite, info model.SearchInfo, rng Rand) model.Turn {
	return m.build(m.draw(site, rng), site, info, rng)
}

// draw draws a category by weighted choice over the eligible ones.
func (m *Model) draw(site *model.DiscoveredSite, rng Rand) model.TurnKind {
	total := 0
	for _, kind := range model.TurnKinds {
		if m.Eligible(kind, site) {
			total += m.weights[kind]
		}
	}
	if total == 0 {
		return model.TurnHomepage
	}

	r := rng.IntN(total)
	for _, kind := range model.TurnKinds {
		if !m.Eligible(kind, site) {
			continue
		}
		r -= m.weights[kind]
		if r < 0 {
			return kind
		}
	}
	return model.TurnHomepage
}

// build turns a category into a concrete request.
func (m *Model) build(kind model.TurnKind, site *model.DiscoveredSite, info model.SearchInfo, rng Rand) model.Turn {
	switch kind {
	case model.TurnVisitPage:
		return model.NewTurn(kind, site.PageAt(rng.IntN(site.PageCount())), nil, model.LabelPage)
	case model.TurnVisitAsset:
		return model.NewTurn(kind, site.AssetAt(rng.IntN(site.AssetCount())), nil, model.LabelStaticAsset)
	case model.TurnRediscover:
		return model.NewTurn(kind, site.PageAt(rng.IntN(site.PageCount())), nil, model.LabelCrawler)
	case model.TurnBasicSearch:
		return basicSearch(info, rng)
	case model.TurnFilteredSearch:
		return filteredSearch(info, rng)
	default:
		return model.NewTurn(model.TurnHomepage, model.SeedPath, nil, model.LabelHomepage)
	}
}

// basicSearch builds a single-term search against a detected endpoint, or
// a speculative probe when the site has none.
func basicSearch(info model.SearchInfo, rng Rand) model.Turn {
	if !info.HasSearch {
		tmpl := pick(rng, speculativeTemplates)
		query := url.Values{tmpl.Param: {pick(rng, genericTerms)}}
		return model.NewTurn(model.TurnBasicSearch, tmpl.Path, query, model.LabelGenericSearch)
	}

	path, param := endpoint(info, rng)
	terms := genericTerms
	if info.Catalog {
		terms = apparelTerms
	}
	query := url.Values{param: {pick(rng, terms)}}
	return model.NewTurn(model.TurnBasicSearch, path, query, model.LabelDetectedSearch)
}

// filteredSearch builds an apparel search with color and size filters.
func filteredSearch(info model.SearchInfo, rng Rand) model.Turn {
	var (
		path, param string
		label       string
	)
	if info.HasSearch {
		path, param = endpoint(info, rng)
		label = model.LabelFilteredSearch
	} else {
		tmpl := pick(rng, speculativeTemplates)
		path, param = tmpl.Path, tmpl.Param
		label = model.LabelEcommerceSearch
	}

	query := url.Values{
		param:      {pick(rng, apparelTerms)},
		colorParam: {pick(rng, colors)},
		sizeParam:  {pick(rng, sizes)},
	}
	return model.NewTurn(model.TurnFilteredSearch, path, query, label)
}

// endpoint draws a search path and parameter name from info. Empty lists
// fall back to the first speculative template.
func endpoint(info model.SearchInfo, rng Rand) (string, string) {
	path := speculativeTemplates[0].Path
	if len(info.SearchPaths) > 0 {
		path = pick(rng, info.SearchPaths)
	}
	param := speculativeTemplates[0].Param
	if len(info.CandidateParams) > 0 {
		param = pick(rng, info.CandidateParams)
	}
	return path, param
}

// pick returns a uniformly drawn element of a non-empty slice.
func pick[T any](rng Rand, items []T) T {
	return items[rng.IntN(len(items))]
}

package model

import (
	"net/http"
	"net/url"
)

// TurnKind is the category of a simulated-user action.
type TurnKind int

const (
	// TurnVisitPage fetches a random discovered page.
	TurnVisitPage TurnKind = iota
	// TurnVisitAsset fetches a random discovered static asset.
	TurnVisitAsset
	// TurnBasicSearch issues a single-term search query.
	TurnBasicSearch
	// TurnFilteredSearch issues a search query with color and size filters.
	TurnFilteredSearch
	// TurnRediscover re-fetches a page to look for freshly added links.
	TurnRediscover
	// TurnHomepage fetches the seed page.
	TurnHomepage
)

// TurnKinds lists every kind in table order.
var TurnKinds = []TurnKind{
	TurnVisitPage,
	TurnVisitAsset,
	TurnBasicSearch,
	TurnFilteredSearch,
	TurnRediscover,
	TurnHomepage,
}

// String returns the snake_case name of the kind.
func (k TurnKind) String() string {
	switch k {
	case TurnVisitPage:
		return "visit_page"
	case TurnVisitAsset:
		return "visit_asset"
	case TurnBasicSearch:
		return "basic_search"
	case TurnFilteredSearch:
		return "filtered_search"
	case TurnRediscover:
		return "rediscover"
	case TurnHomepage:
		return "homepage"
	default:
		return "unknown"
	}
}

// Metrics grouping labels. The harness aggregates statistics per label.
const (
	LabelCrawler         = "crawler"
	LabelPage            = "page"
	LabelStaticAsset     = "static_asset"
	LabelDetectedSearch  = "detected_search"
	LabelGenericSearch   = "generic_search"
	LabelFilteredSearch  = "filtered_search"
	LabelEcommerceSearch = "ecommerce_search"
	LabelHomepage        = "homepage"
)

// Turn is one scheduling decision of the behavior model together with the
// concrete request it implies. Turns are produced fresh per decision and
// never persisted.
type Turn struct {
	// Kind is the category that was drawn.
	Kind TurnKind

	// Method is always GET.
	Method string

	// Path is the origin-relative path to request, possibly carrying its
	// own query string (discovered pages keep theirs).
	Path string

	// Query holds the generated query parameters of search turns.
	Query url.Values

	// Label is the metrics grouping label.
	Label string
}

// NewTurn creates a GET turn.
func NewTurn(kind TurnKind, path string, query url.Values, label string) Turn {
	return Turn{
		Kind:   kind,
		Method: http.MethodGet,
		Path:   path,
		Query:  query,
		Label:  label,
	}
}

// Target returns the origin-relative request target: Path followed by the
// encoded Query, if any.
func (t Turn) Target() string {
	if len(t.Query) == 0 {
		return t.Path
	}
	u, err := url.Parse(t.Path)
	if err != nil {
		return t.Path + "?" + t.Query.Encode()
	}
	q := u.Query()
	for k, vs := range t.Query {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// IsSearch reports whether the turn is one of the search categories.
func (t Turn) IsSearch() bool {
	return t.Kind == TurnBasicSearch || t.Kind == TurnFilteredSearch
}

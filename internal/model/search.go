package model

// SearchInfo is what the search detector inferred from a DiscoveredSite.
// It is always present for a user; HasSearch is false when no search
// signature was found during the crawl.
type SearchInfo struct {
	// HasSearch is true if at least one crawled page looked like a search endpoint.
	HasSearch bool `json:"has_search"`

	// SearchPaths contains distinct query-free search paths in insertion
	// order: detected paths first, then the well-known fallback endpoints.
	SearchPaths []string `json:"search_paths"`

	// CandidateParams contains the query parameter names to try.
	CandidateParams []string `json:"candidate_params"`

	// Catalog is true if a detected search path looks like a shop catalog,
	// which switches search terms to the apparel vocabulary.
	Catalog bool `json:"catalog"`
}

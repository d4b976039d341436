package search

import (
	"net/url"
	"slices"
	"strings"

	"github.com/nao1215/webswarm/internal/model"
)

// signatureSegments are path segments that mark a search endpoint.
var signatureSegments = []string{"search", "catalogsearch", "find"}

// signatureParams are query keys that mark a search request.
var signatureParams = []string{"q", "s"}

// FallbackPaths are well-known search endpoints appended to every result so
// search turns stay exercisable when the real endpoint was never linked.
var FallbackPaths = []string{"/search", "/search/", "/catalogsearch/result/", "/find"}

// CandidateParams are the query parameter names search turns try.
var CandidateParams = []string{"q", "query", "s", "search"}

// catalogMarkers flag a shop-style search path.
var catalogMarkers = []string{"catalog", "shop", "product", "store"}

// Detect scans the pages of site for search signatures.
//
// Detected query-free paths come first in SearchPaths, in page order and
// without duplicates, followed by FallbackPaths not already present.
// CandidateParams is always the fixed, non-empty set.
func Detect(site *model.DiscoveredSite) model.SearchInfo {
	info := model.SearchInfo{
		SearchPaths:     make([]string, 0, len(FallbackPaths)),
		CandidateParams: slices.Clone(CandidateParams),
	}

	if site != nil {
		for _, page := range site.Pages() {
			prefix, ok := match(page)
			if !ok {
				continue
			}
			info.HasSearch = true
			if !slices.Contains(info.SearchPaths, prefix) {
				info.SearchPaths = append(info.SearchPaths, prefix)
			}
			if isCatalog(prefix) {
				info.Catalog = true
			}
		}
	}

	for _, fallback := range FallbackPaths {
		if !slices.Contains(info.SearchPaths, fallback) {
			info.SearchPaths = append(info.SearchPaths, fallback)
		}
	}
	return info
}

// match reports whether an origin-relative path looks like a search
// request and returns its query-free prefix.
func match(path string) (string, bool) {
	prefix, rawQuery, _ := strings.Cut(path, "?")
	if prefix == "" {
		prefix = "/"
	}

	lower := strings.ToLower(prefix)
	segments := strings.Split(lower, "/")
	for i, seg := range segments {
		if slices.Contains(signatureSegments, seg) {
			return prefix, true
		}
		// "/s/" only counts as a segment with something after it.
		if seg == "s" && i < len(segments)-1 {
			return prefix, true
		}
	}

	if rawQuery != "" {
		// ParseQuery keeps the well-formed pairs even when others fail.
		query, _ := url.ParseQuery(rawQuery) //nolint:errcheck
		for _, key := range signatureParams {
			if query.Has(key) {
				return prefix, true
			}
		}
	}
	return "", false
}

// isCatalog reports whether a search path belongs to a shop catalog.
func isCatalog(path string) bool {
	lower := strings.ToLower(path)
	for _, marker := range catalogMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

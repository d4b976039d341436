package search

import (
	"slices"
	"testing"

	"github.com/nao1215/webswarm/internal/model"
)

func siteWith(pages ...string) *model.DiscoveredSite {
	site := model.NewDiscoveredSite("https://example.com")
	for _, p := range pages {
		site.AddPage(p)
	}
	site.Seal()
	return site
}

// TestDetect tests search signature detection over discovered pages.
func TestDetect(t *testing.T) {
	t.Parallel()

	t.Run("query link to search endpoint", func(t *testing.T) {
		t.Parallel()

		info := Detect(siteWith("/", "/docs", "/search?q=foo"))
		if !info.HasSearch {
			t.Fatal("expected HasSearch")
		}
		if info.SearchPaths[0] != "/search" {
			t.Errorf("expected /search first, got %v", info.SearchPaths)
		}
		if n := countOf(info.SearchPaths, "/search"); n != 1 {
			t.Errorf("expected /search exactly once, got %d in %v", n, info.SearchPaths)
		}
	})

	t.Run("no signature keeps fallbacks", func(t *testing.T) {
		t.Parallel()

		info := Detect(siteWith("/", "/docs", "/about", "/research/papers"))
		if info.HasSearch {
			t.Error("expected HasSearch to be false")
		}
		if !slices.Equal(info.SearchPaths, FallbackPaths) {
			t.Errorf("SearchPaths = %v, want %v", info.SearchPaths, FallbackPaths)
		}
		if info.Catalog {
			t.Error("expected non-catalog site")
		}
	})

	t.Run("nil site", func(t *testing.T) {
		t.Parallel()

		info := Detect(nil)
		if info.HasSearch || len(info.SearchPaths) != len(FallbackPaths) {
			t.Errorf("unexpected result %+v", info)
		}
	})

	t.Run("candidate params are fixed and non-empty", func(t *testing.T) {
		t.Parallel()

		info := Detect(siteWith("/"))
		if !slices.Equal(info.CandidateParams, []string{"q", "query", "s", "search"}) {
			t.Errorf("CandidateParams = %v", info.CandidateParams)
		}
		info.CandidateParams[0] = "mutated"
		if CandidateParams[0] != "q" {
			t.Error("result must not alias the package table")
		}
	})

	t.Run("detected paths are distinct and ordered", func(t *testing.T) {
		t.Parallel()

		info := Detect(siteWith(
			"/",
			"/find/stores",
			"/?s=hello",
			"/search?q=a",
			"/search?q=b",
			"/blog/s/tag",
		))
		want := []string{"/find/stores", "/", "/search", "/blog/s/tag", "/search/", "/catalogsearch/result/", "/find"}
		if !slices.Equal(info.SearchPaths, want) {
			t.Errorf("SearchPaths = %v, want %v", info.SearchPaths, want)
		}
	})

	t.Run("catalog search switches vocabulary flag", func(t *testing.T) {
		t.Parallel()

		info := Detect(siteWith("/", "/catalogsearch/result/?q=shirt"))
		if !info.HasSearch || !info.Catalog {
			t.Errorf("expected catalog search, got %+v", info)
		}
		if n := countOf(info.SearchPaths, "/catalogsearch/result/"); n != 1 {
			t.Errorf("expected fallback deduplicated, got %v", info.SearchPaths)
		}
	})
}

// TestMatch tests single-path signature matching.
func TestMatch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path       string
		wantPrefix string
		wantOK     bool
	}{
		{"/search", "/search", true},
		{"/Search/results", "/Search/results", true},
		{"/catalogsearch/result/?q=x", "/catalogsearch/result/", true},
		{"/find", "/find", true},
		{"/s/shoes", "/s/shoes", true},
		{"/?q=term", "/", true},
		{"/blog?s=term", "/blog", true},
		{"/page?q=shoes&x=%zz", "/page", true},
		{"/page?x=%zz", "", false},
		{"/docs?query=x", "", false},
		{"/research", "", false},
		{"/findings", "", false},
		{"/s", "", false},
		{"/docs/intro", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()

			prefix, ok := match(tt.path)
			if ok != tt.wantOK || prefix != tt.wantPrefix {
				t.Errorf("match(%q) = %q, %v; want %q, %v", tt.path, prefix, ok, tt.wantPrefix, tt.wantOK)
			}
		})
	}
}

func countOf(list []string, s string) int {
	n := 0
	for _, v := range list {
		if v == s {
			n++
		}
	}
	return n
}

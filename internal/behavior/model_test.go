package behavior

import (
	"errors"
	"math"
	"math/rand/v2"
	"net/url"
	"slices"
	"strconv"
	"testing"

	"github.com/nao1215/webswarm/internal/model"
)

func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// richSite has enough pages for every category to be eligible.
func richSite() *model.DiscoveredSite {
	site := model.NewDiscoveredSite("https://example.com")
	site.AddPage("/")
	for i := range 12 {
		site.AddPage("/docs/" + strconv.Itoa(i))
	}
	site.AddAsset("/style.css")
	site.AddAsset("/app.js")
	site.Seal()
	return site
}

func detectedSearch() model.SearchInfo {
	return model.SearchInfo{
		HasSearch:       true,
		SearchPaths:     []string{"/search", "/search/"},
		CandidateParams: []string{"q", "query"},
	}
}

// TestNextTurnDistribution tests that draws follow the weight table.
func TestNextTurnDistribution(t *testing.T) {
	t.Parallel()

	const draws = 100_000
	m := New()
	site := richSite()
	rng := newRand(42)

	counts := make(map[model.TurnKind]int)
	for range draws {
		counts[m.NextTurn(site, detectedSearch(), rng).Kind]++
	}

	weights := DefaultWeights()
	total := 0
	for _, w := range weights {
		total += w
	}
	for _, kind := range model.TurnKinds {
		want := float64(weights[kind]) / float64(total)
		got := float64(counts[kind]) / draws
		if math.Abs(got-want) > 0.02 {
			t.Errorf("%s frequency %.4f, want %.4f +/- 0.02", kind, got, want)
		}
	}
}

// TestNextTurnEligibility tests renormalization over eligible categories.
func TestNextTurnEligibility(t *testing.T) {
	t.Parallel()

	t.Run("only homepage eligible", func(t *testing.T) {
		t.Parallel()

		w := DefaultWeights()
		w[model.TurnBasicSearch] = 0
		w[model.TurnFilteredSearch] = 0
		m := New(WithWeights(w))

		empty := model.NewDiscoveredSite("https://example.com")
		empty.Seal()
		rng := newRand(1)
		for range 1000 {
			turn := m.NextTurn(empty, model.SearchInfo{}, rng)
			if turn.Kind != model.TurnHomepage {
				t.Fatalf("expected homepage, got %s", turn.Kind)
			}
			if turn.Path != "/" || turn.Label != model.LabelHomepage {
				t.Fatalf("unexpected homepage turn %+v", turn)
			}
		}
	})

	t.Run("all weights zero falls back to homepage", func(t *testing.T) {
		t.Parallel()

		m := New(WithWeights(Weights{}))
		turn := m.NextTurn(richSite(), detectedSearch(), newRand(3))
		if turn.Kind != model.TurnHomepage {
			t.Errorf("expected homepage, got %s", turn.Kind)
		}
	})

	t.Run("small site never rediscovers", func(t *testing.T) {
		t.Parallel()

		site := model.NewDiscoveredSite("https://example.com")
		for i := range 9 {
			site.AddPage("/p" + strconv.Itoa(i))
		}
		site.Seal()

		m := New()
		rng := newRand(5)
		for range 5000 {
			kind := m.NextTurn(site, model.SearchInfo{}, rng).Kind
			if kind == model.TurnRediscover || kind == model.TurnVisitAsset {
				t.Fatalf("ineligible kind %s drawn", kind)
			}
		}
	})

	t.Run("nil site only yields always-eligible kinds", func(t *testing.T) {
		t.Parallel()

		m := New()
		rng := newRand(9)
		for range 2000 {
			switch kind := m.NextTurn(nil, model.SearchInfo{}, rng).Kind; kind {
			case model.TurnBasicSearch, model.TurnFilteredSearch, model.TurnHomepage:
			default:
				t.Fatalf("unexpected kind %s", kind)
			}
		}
	})
}

// TestNextTurnRequests tests the concrete requests each category builds.
func TestNextTurnRequests(t *testing.T) {
	t.Parallel()

	only := func(kind model.TurnKind) *Model {
		return New(WithWeights(Weights{kind: 1}))
	}

	t.Run("visit page draws from pages", func(t *testing.T) {
		t.Parallel()

		site := richSite()
		rng := newRand(11)
		for range 200 {
			turn := only(model.TurnVisitPage).NextTurn(site, model.SearchInfo{}, rng)
			if !site.HasPage(turn.Path) || turn.Label != model.LabelPage || turn.Method != "GET" {
				t.Fatalf("unexpected turn %+v", turn)
			}
		}
	})

	t.Run("visit asset draws from assets", func(t *testing.T) {
		t.Parallel()

		site := richSite()
		rng := newRand(12)
		for range 200 {
			turn := only(model.TurnVisitAsset).NextTurn(site, model.SearchInfo{}, rng)
			if !site.HasAsset(turn.Path) || turn.Label != model.LabelStaticAsset {
				t.Fatalf("unexpected turn %+v", turn)
			}
		}
	})

	t.Run("rediscover is labeled as crawler traffic", func(t *testing.T) {
		t.Parallel()

		site := richSite()
		turn := only(model.TurnRediscover).NextTurn(site, model.SearchInfo{}, newRand(13))
		if turn.Kind != model.TurnRediscover || !site.HasPage(turn.Path) || turn.Label != model.LabelCrawler {
			t.Errorf("unexpected turn %+v", turn)
		}
	})

	t.Run("basic search without detected search uses templates", func(t *testing.T) {
		t.Parallel()

		rng := newRand(14)
		for range 500 {
			turn := only(model.TurnBasicSearch).NextTurn(richSite(), model.SearchInfo{}, rng)
			if turn.Label != model.LabelGenericSearch {
				t.Fatalf("expected generic_search label, got %q", turn.Label)
			}
			tmpl, ok := templateFor(turn.Path)
			if !ok {
				t.Fatalf("path %q is not a speculative template", turn.Path)
			}
			if term := turn.Query.Get(tmpl.Param); !slices.Contains(genericTerms, term) {
				t.Fatalf("term %q not in generic vocabulary", term)
			}
		}
	})

	t.Run("filtered search without detected search probes ecommerce templates", func(t *testing.T) {
		t.Parallel()

		rng := newRand(15)
		for range 500 {
			turn := only(model.TurnFilteredSearch).NextTurn(richSite(), model.SearchInfo{}, rng)
			if turn.Label != model.LabelEcommerceSearch {
				t.Fatalf("expected ecommerce_search label, got %q", turn.Label)
			}
			if _, ok := templateFor(turn.Path); !ok {
				t.Fatalf("path %q is not a speculative template", turn.Path)
			}
			assertFilters(t, turn.Query)
		}
	})

	t.Run("basic search against detected endpoint", func(t *testing.T) {
		t.Parallel()

		info := detectedSearch()
		rng := newRand(16)
		for range 500 {
			turn := only(model.TurnBasicSearch).NextTurn(richSite(), info, rng)
			if turn.Label != model.LabelDetectedSearch {
				t.Fatalf("expected detected_search label, got %q", turn.Label)
			}
			if !slices.Contains(info.SearchPaths, turn.Path) {
				t.Fatalf("path %q not among search paths", turn.Path)
			}
			if len(turn.Query) != 1 {
				t.Fatalf("expected one query parameter, got %v", turn.Query)
			}
			for param, values := range turn.Query {
				if !slices.Contains(info.CandidateParams, param) {
					t.Fatalf("param %q not a candidate", param)
				}
				if !slices.Contains(genericTerms, values[0]) {
					t.Fatalf("term %q not in generic vocabulary", values[0])
				}
			}
		}
	})

	t.Run("catalog search uses apparel vocabulary", func(t *testing.T) {
		t.Parallel()

		info := detectedSearch()
		info.Catalog = true
		rng := newRand(17)
		for range 200 {
			turn := only(model.TurnBasicSearch).NextTurn(richSite(), info, rng)
			for _, values := range turn.Query {
				if !slices.Contains(apparelTerms, values[0]) {
					t.Fatalf("term %q not in apparel vocabulary", values[0])
				}
			}
		}
	})

	t.Run("filtered search against detected endpoint", func(t *testing.T) {
		t.Parallel()

		info := detectedSearch()
		rng := newRand(18)
		for range 200 {
			turn := only(model.TurnFilteredSearch).NextTurn(richSite(), info, rng)
			if turn.Label != model.LabelFilteredSearch {
				t.Fatalf("expected filtered_search label, got %q", turn.Label)
			}
			assertFilters(t, turn.Query)
			if !turn.IsSearch() {
				t.Fatal("expected search turn")
			}
		}
	})
}

// TestNextTurnDeterministic tests that equal seeds give equal sessions.
func TestNextTurnDeterministic(t *testing.T) {
	t.Parallel()

	m := New()
	site := richSite()
	a, b := newRand(2024), newRand(2024)
	for i := range 1000 {
		ta := m.NextTurn(site, detectedSearch(), a)
		tb := m.NextTurn(site, detectedSearch(), b)
		if ta.Kind != tb.Kind || ta.Target() != tb.Target() {
			t.Fatalf("draw %d diverged: %s %s vs %s %s", i, ta.Kind, ta.Target(), tb.Kind, tb.Target())
		}
	}
}

// TestParseWeights tests weight overrides by category name.
func TestParseWeights(t *testing.T) {
	t.Parallel()

	t.Run("overrides named entries", func(t *testing.T) {
		t.Parallel()

		w, err := ParseWeights(map[string]int{"visit_page": 10, "rediscover": 0})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if w[model.TurnVisitPage] != 10 || w[model.TurnRediscover] != 0 || w[model.TurnHomepage] != 1 {
			t.Errorf("unexpected weights %v", w.Names())
		}
	})

	t.Run("unknown name", func(t *testing.T) {
		t.Parallel()

		if _, err := ParseWeights(map[string]int{"checkout": 1}); !errors.Is(err, ErrUnknownTurnKind) {
			t.Errorf("expected ErrUnknownTurnKind, got %v", err)
		}
	})

	t.Run("negative weight", func(t *testing.T) {
		t.Parallel()

		if _, err := ParseWeights(map[string]int{"homepage": -1}); !errors.Is(err, ErrNegativeWeight) {
			t.Errorf("expected ErrNegativeWeight, got %v", err)
		}
	})
}

func templateFor(path string) (searchTemplate, bool) {
	for _, tmpl := range speculativeTemplates {
		if tmpl.Path == path {
			return tmpl, true
		}
	}
	return searchTemplate{}, false
}

func assertFilters(t *testing.T, q url.Values) {
	t.Helper()

	if !slices.Contains(colors, q.Get(colorParam)) {
		t.Fatalf("missing or unknown color in %v", q)
	}
	if !slices.Contains(sizes, q.Get(sizeParam)) {
		t.Fatalf("missing or unknown size in %v", q)
	}
	if len(q) != 3 {
		t.Fatalf("expected term, color and size, got %v", q)
	}
}

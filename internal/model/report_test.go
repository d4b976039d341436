package model

import (
	"errors"
	"math/rand/v2"
	"testing"
	"time"
)

func TestRunReport(t *testing.T) {
	t.Parallel()

	t.Run("elapsed uses finish time", func(t *testing.T) {
		t.Parallel()

		r := NewRunReport("https://shop.example", 3)
		r.FinishedAt = r.StartedAt.Add(90 * time.Second)
		if r.Elapsed() != 90*time.Second {
			t.Errorf("Elapsed() = %v, want 90s", r.Elapsed())
		}
		if r.UserCount != 3 || r.Labels == nil || r.Users == nil {
			t.Errorf("unexpected report: %+v", r)
		}
	})

	t.Run("label lookup", func(t *testing.T) {
		t.Parallel()

		r := NewRunReport("https://shop.example", 1)
		r.Labels = append(r.Labels, LabelSummary{Label: LabelPage, Requests: 4})
		if l, ok := r.Label(LabelPage); !ok || l.Requests != 4 {
			t.Errorf("Label(page) = %+v, %v", l, ok)
		}
		if _, ok := r.Label(LabelHomepage); ok {
			t.Error("expected missing homepage label")
		}
	})
}

func TestLabelSummary(t *testing.T) {
	t.Parallel()

	t.Run("failure rate", func(t *testing.T) {
		t.Parallel()

		if got := (LabelSummary{}).FailureRate(); got != 0 {
			t.Errorf("empty FailureRate() = %v, want 0", got)
		}
		if got := (LabelSummary{Requests: 8, Failures: 2}).FailureRate(); got != 25 {
			t.Errorf("FailureRate() = %v, want 25", got)
		}
	})

	t.Run("reasons sorted by count then text", func(t *testing.T) {
		t.Parallel()

		l := LabelSummary{FailureReasons: map[string]int{
			"unexpected status code 500": 2,
			"endpoint not found":         5,
			"connection refused":         2,
		}}
		got := l.SortedReasons()
		want := []string{"endpoint not found", "connection refused", "unexpected status code 500"}
		if len(got) != len(want) {
			t.Fatalf("SortedReasons() = %+v", got)
		}
		for i, reason := range want {
			if got[i].Reason != reason {
				t.Errorf("SortedReasons()[%d] = %q, want %q", i, got[i].Reason, reason)
			}
		}
	})
}

func TestUserSession(t *testing.T) {
	t.Parallel()

	s := NewUserSession(4, "https://shop.example", rand.New(rand.NewPCG(1, 4))) //nolint:gosec

	if _, ok := s.Fingerprint("/"); ok {
		t.Error("new session should have no fingerprints")
	}
	s.SetFingerprint("/", "abc")
	if fp, ok := s.Fingerprint("/"); !ok || fp != "abc" {
		t.Errorf("Fingerprint(/) = %q, %v", fp, ok)
	}

	site := NewDiscoveredSite("https://shop.example")
	site.AddPage("/")
	site.AddPage("/about")
	site.AddAsset("/app.css")
	site.Seal()
	s.Site = site
	s.Search = SearchInfo{HasSearch: true, SearchPaths: []string{"/search"}}
	s.Crawled = append(s.Crawled, Page{Path: "/"}, Page{Path: "/about"})

	s.RecordTurn(true)
	s.RecordTurn(false)
	s.RecordTurn(true)
	s.AddFreshLinks(2)
	s.AddFreshLinks(1)
	s.SetError(errors.New("boom"))

	sum := s.Summary()
	want := UserSummary{
		ID:         4,
		Pages:      2,
		Assets:     1,
		CrawlFetch: 2,
		HasSearch:  true,
		Turns:      3,
		Failures:   1,
		FreshLinks: 3,
		Error:      "boom",
	}
	if sum.ID != want.ID || sum.Pages != want.Pages || sum.Assets != want.Assets ||
		sum.CrawlFetch != want.CrawlFetch || sum.HasSearch != want.HasSearch ||
		sum.Turns != want.Turns || sum.Failures != want.Failures ||
		sum.FreshLinks != want.FreshLinks || sum.Error != want.Error {
		t.Errorf("Summary() = %+v, want %+v", sum, want)
	}
	if len(sum.SearchPaths) != 1 || sum.SearchPaths[0] != "/search" {
		t.Errorf("SearchPaths = %v", sum.SearchPaths)
	}
}

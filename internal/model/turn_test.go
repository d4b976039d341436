package model

import (
	"net/url"
	"testing"
)

// TestTurnTarget tests request target construction.
func TestTurnTarget(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		path  string
		query url.Values
		want  string
	}{
		{
			name: "path only",
			path: "/docs",
			want: "/docs",
		},
		{
			name:  "generated query",
			path:  "/search",
			query: url.Values{"q": {"shirt"}},
			want:  "/search?q=shirt",
		},
		{
			name:  "merges with existing query",
			path:  "/catalog?page=2",
			query: url.Values{"color": {"red"}},
			want:  "/catalog?color=red&page=2",
		},
		{
			name:  "escapes terms",
			path:  "/",
			query: url.Values{"s": {"getting started"}},
			want:  "/?s=getting+started",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			turn := NewTurn(TurnBasicSearch, tt.path, tt.query, LabelGenericSearch)
			if got := turn.Target(); got != tt.want {
				t.Errorf("Target() = %q, want %q", got, tt.want)
			}
			if turn.Method != "GET" {
				t.Errorf("expected GET, got %q", turn.Method)
			}
		})
	}
}

// TestTurnKindString tests kind names.
func TestTurnKindString(t *testing.T) {
	t.Parallel()

	seen := make(map[string]bool)
	for _, k := range TurnKinds {
		name := k.String()
		if name == "unknown" {
			t.Errorf("kind %d has no name", k)
		}
		if seen[name] {
			t.Errorf("duplicate kind name %q", name)
		}
		seen[name] = true
	}
	if TurnKind(99).String() != "unknown" {
		t.Error("expected unknown for out-of-range kind")
	}
}

// TestFingerprint tests body fingerprints.
func TestFingerprint(t *testing.T) {
	t.Parallel()

	a := Fingerprint([]byte("<html>a</html>"))
	b := Fingerprint([]byte("<html>b</html>"))
	if a == b {
		t.Error("expected different fingerprints for different bodies")
	}
	if len(a) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(a))
	}
	if a != Fingerprint([]byte("<html>a</html>")) {
		t.Error("expected stable fingerprint")
	}
}

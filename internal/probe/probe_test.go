package probe

import (
	"context"
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestProber_Probe(t *testing.T) {
	t.Parallel()

	t.Run("reports status and banner", func(t *testing.T) {
		t.Parallel()

		gotUA := make(chan string, 1)
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotUA <- r.UserAgent()
			w.Header().Set("Server", "nginx/1.25.3")
			_, _ = w.Write([]byte("<html></html>")) //nolint:errcheck
		}))
		defer srv.Close()

		result, err := New(srv.Client(), WithUserAgent("probe-test")).Probe(context.Background(), srv.URL)
		if err != nil {
			t.Fatalf("Probe() error = %v", err)
		}
		if !result.Reachable || result.StatusCode != http.StatusOK {
			t.Errorf("unexpected result: %+v", result)
		}
		if result.Banner != "nginx/1.25.3" {
			t.Errorf("Banner = %q", result.Banner)
		}
		if result.TLSVersion != "" || result.Certificate != nil {
			t.Error("plain HTTP should have no TLS info")
		}
		if ua := <-gotUA; ua != "probe-test" {
			t.Errorf("User-Agent = %q", ua)
		}
		if len(result.Warnings(time.Now())) != 0 {
			t.Errorf("unexpected warnings: %v", result.Warnings(time.Now()))
		}
	})

	t.Run("extracts TLS details", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		result, err := New(srv.Client()).Probe(context.Background(), srv.URL)
		if err != nil {
			t.Fatalf("Probe() error = %v", err)
		}
		if !strings.HasPrefix(result.TLSVersion, "TLS 1.") {
			t.Errorf("TLSVersion = %q", result.TLSVersion)
		}
		if result.Certificate == nil || result.Certificate.NotAfter.IsZero() {
			t.Fatalf("expected certificate, got %+v", result.Certificate)
		}

		warnings := result.Warnings(time.Now())
		if len(warnings) != 1 || !strings.Contains(warnings[0], "status 503") {
			t.Errorf("unexpected warnings: %v", warnings)
		}
		expired := result.Warnings(result.Certificate.NotAfter.Add(time.Hour))
		if !strings.Contains(strings.Join(expired, "\n"), "certificate expired") {
			t.Errorf("expected expiry warning, got %v", expired)
		}
	})

	t.Run("unreachable target is not an error", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		result, err := New(&http.Client{Timeout: 2 * time.Second}).Probe(context.Background(), url)
		if err != nil {
			t.Fatalf("Probe() error = %v", err)
		}
		if result.Reachable || result.Error == "" {
			t.Errorf("expected unreachable result, got %+v", result)
		}
		if w := result.Warnings(time.Now()); len(w) != 1 || !strings.HasPrefix(w[0], "target did not respond") {
			t.Errorf("unexpected warnings: %v", w)
		}
	})

	t.Run("invalid origin", func(t *testing.T) {
		t.Parallel()

		if _, err := New(http.DefaultClient).Probe(context.Background(), "ftp://example.com"); err == nil {
			t.Error("expected error for ftp origin")
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			<-r.Context().Done()
		}))
		defer srv.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, err := New(srv.Client()).Probe(ctx, srv.URL); err == nil {
			t.Error("expected error for cancelled context")
		}
	})
}

func TestTLSVersionName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		version uint16
		want    string
	}{
		{tls.VersionTLS10, "TLS 1.0"},
		{tls.VersionTLS12, "TLS 1.2"},
		{tls.VersionTLS13, "TLS 1.3"},
		{0x0200, "Unknown"},
	}
	for _, tt := range tests {
		if got := tlsVersionName(tt.version); got != tt.want {
			t.Errorf("tlsVersionName(%#x) = %q, want %q", tt.version, got, tt.want)
		}
	}
}

package transport

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// TestNewClient tests the Client constructor.
func TestNewClient(t *testing.T) {
	t.Parallel()

	t.Run("defaults to direct connections", func(t *testing.T) {
		t.Parallel()

		client, err := NewClient()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if client.ProxyAddress() != "" {
			t.Errorf("expected no proxy, got %q", client.ProxyAddress())
		}
		if client.ConnectTimeout() != DefaultConnectTimeout || client.ReadTimeout() != DefaultReadTimeout {
			t.Errorf("unexpected timeouts %v / %v", client.ConnectTimeout(), client.ReadTimeout())
		}
	})

	t.Run("valid proxy address", func(t *testing.T) {
		t.Parallel()

		client, err := NewClient(WithProxy("127.0.0.1:9050"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if client.ProxyAddress() != "127.0.0.1:9050" {
			t.Errorf("ProxyAddress() = %q", client.ProxyAddress())
		}
	})

	t.Run("connection limit applies to each http client", func(t *testing.T) {
		t.Parallel()

		client, err := NewClient(WithMaxConnsPerHost(16))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		tr, ok := client.HTTPClient().Transport.(*http.Transport)
		if !ok {
			t.Fatalf("expected *http.Transport, got %T", client.HTTPClient().Transport)
		}
		if tr.MaxConnsPerHost != 16 || tr.MaxIdleConnsPerHost != 16 {
			t.Errorf("unexpected limits %d / %d", tr.MaxConnsPerHost, tr.MaxIdleConnsPerHost)
		}
	})

	t.Run("invalid proxy address", func(t *testing.T) {
		t.Parallel()

		_, err := NewClient(WithProxy("127.0.0.1"))
		if !errors.Is(err, ErrInvalidProxyAddress) {
			t.Errorf("expected ErrInvalidProxyAddress, got %v", err)
		}
	})
}

// TestIsValidProxyAddress tests proxy address validation.
func TestIsValidProxyAddress(t *testing.T) {
	t.Parallel()

	tests := []struct {
		address string
		want    bool
	}{
		{"127.0.0.1:9050", true},
		{"localhost:1080", true},
		{"[::1]:9050", true},
		{"127.0.0.1:65535", true},
		{"127.0.0.1", false},
		{":9050", false},
		{"127.0.0.1:", false},
		{"127.0.0.1:0", false},
		{"127.0.0.1:65536", false},
		{"127.0.0.1:abc", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.address, func(t *testing.T) {
			t.Parallel()
			if got := isValidProxyAddress(tt.address); got != tt.want {
				t.Errorf("isValidProxyAddress(%q) = %v, want %v", tt.address, got, tt.want)
			}
		})
	}
}

// TestHTTPClient tests the per-user HTTP client configuration.
func TestHTTPClient(t *testing.T) {
	t.Parallel()

	t.Run("request deadline covers connect and read", func(t *testing.T) {
		t.Parallel()

		client, err := NewClient(WithConnectTimeout(2*time.Second), WithReadTimeout(5*time.Second))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		hc := client.HTTPClient()
		if hc.Timeout != 7*time.Second {
			t.Errorf("expected 7s timeout, got %v", hc.Timeout)
		}
		tr, ok := hc.Transport.(*http.Transport)
		if !ok {
			t.Fatalf("expected *http.Transport, got %T", hc.Transport)
		}
		if tr.ResponseHeaderTimeout != 5*time.Second {
			t.Errorf("expected 5s read timeout, got %v", tr.ResponseHeaderTimeout)
		}
		if hc.Jar == nil {
			t.Error("expected cookie jar")
		}
	})

	t.Run("each call returns an independent client", func(t *testing.T) {
		t.Parallel()

		client, err := NewClient()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		a, b := client.HTTPClient(), client.HTTPClient()
		if a == b || a.Jar == b.Jar || a.Transport == b.Transport {
			t.Error("expected separate clients, jars and transports")
		}
	})

	t.Run("slow response hits read timeout", func(t *testing.T) {
		t.Parallel()

		release := make(chan struct{})
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			<-release
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()
		defer close(release)

		client, err := NewClient(WithReadTimeout(100 * time.Millisecond))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, server.URL, nil)
		if err != nil {
			t.Fatalf("failed to create request: %v", err)
		}
		resp, err := client.HTTPClient().Do(req)
		if err == nil {
			resp.Body.Close()
			t.Fatal("expected timeout error")
		}
		if !strings.Contains(err.Error(), "timeout") {
			t.Errorf("expected timeout error, got %v", err)
		}
	})

	t.Run("injects headers and cookie", func(t *testing.T) {
		t.Parallel()

		received := make(chan http.Header, 1)
		server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			received <- r.Header.Clone()
		}))
		defer server.Close()

		client, err := NewClient(
			WithHeaders(map[string]string{"X-Load-Test": "webswarm"}),
			WithCookie("session=abc123"),
		)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, server.URL, nil)
		if err != nil {
			t.Fatalf("failed to create request: %v", err)
		}
		req.Header.Set("Cookie", "lang=en")
		resp, err := client.HTTPClient().Do(req)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()

		got := <-received
		gotHeader, gotCookie := got.Get("X-Load-Test"), got.Get("Cookie")
		if gotHeader != "webswarm" {
			t.Errorf("expected injected header, got %q", gotHeader)
		}
		if gotCookie != "lang=en; session=abc123" {
			t.Errorf("expected merged cookie, got %q", gotCookie)
		}
		if req.Header.Get("X-Load-Test") != "" {
			t.Error("original request must not be modified")
		}
	})
}

// TestCheckStatus tests status classification.
func TestCheckStatus(t *testing.T) {
	t.Parallel()

	for _, code := range []int{200, 204, 301, 304} {
		if err := CheckStatus(code); err != nil {
			t.Errorf("CheckStatus(%d) = %v, want nil", code, err)
		}
	}

	err := CheckStatus(503)
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.Code != 503 {
		t.Fatalf("expected StatusError 503, got %v", err)
	}
	if err.Error() != "unexpected status code 503" {
		t.Errorf("unexpected message %q", err.Error())
	}
}

// TestProxyStatus tests status names and errors.
func TestProxyStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status ProxyStatus
		name   string
		err    error
	}{
		{ProxyStatusOK, "OK", nil},
		{ProxyStatusWrongType, "wrong type (not SOCKS5)", ErrProxyNotSOCKS5},
		{ProxyStatusCannotConnect, "cannot connect", ErrProxyCannotConnect},
		{ProxyStatusTimeout, "timeout", ErrProxyTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if tt.status.String() != tt.name {
				t.Errorf("String() = %q, want %q", tt.status.String(), tt.name)
			}
			if !errors.Is(tt.status.Err(), tt.err) {
				t.Errorf("Err() = %v, want %v", tt.status.Err(), tt.err)
			}
		})
	}
}

// fakeProxy accepts one connection and runs handle on it.
func fakeProxy(t *testing.T, handle func(net.Conn)) string {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0") //nolint:noctx // test code
	if err != nil {
		t.Fatalf("failed to start mock server: %v", err)
	}
	t.Cleanup(func() { listener.Close() })

	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		handle(conn)
	}()
	return listener.Addr().String()
}

// TestCheckProxy tests the SOCKS5 handshake check.
func TestCheckProxy(t *testing.T) {
	t.Parallel()

	t.Run("direct client needs no proxy", func(t *testing.T) {
		t.Parallel()

		client, err := NewClient()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if status := client.CheckProxy(context.Background()); status != ProxyStatusOK {
			t.Errorf("expected OK, got %v", status)
		}
	})

	t.Run("nothing listening", func(t *testing.T) {
		t.Parallel()

		listener, err := net.Listen("tcp", "127.0.0.1:0") //nolint:noctx // test code
		if err != nil {
			t.Fatalf("listen: %v", err)
		}
		addr := listener.Addr().String()
		listener.Close()

		client, err := NewClient(WithProxy(addr))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if status := client.CheckProxy(context.Background()); status != ProxyStatusCannotConnect {
			t.Errorf("expected CannotConnect, got %v", status)
		}
	})

	t.Run("http server is wrong type", func(t *testing.T) {
		t.Parallel()

		addr := fakeProxy(t, func(conn net.Conn) {
			buf := make([]byte, 3)
			_, _ = conn.Read(buf)
			_, _ = conn.Write([]byte("HTTP/1.1 200 OK\r\n\r\n"))
		})
		client, err := NewClient(WithProxy(addr))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if status := client.CheckProxy(context.Background()); status != ProxyStatusWrongType {
			t.Errorf("expected WrongType, got %v", status)
		}
	})

	t.Run("proxy requiring auth is wrong type", func(t *testing.T) {
		t.Parallel()

		addr := fakeProxy(t, func(conn net.Conn) {
			buf := make([]byte, 3)
			_, _ = conn.Read(buf)
			_, _ = conn.Write([]byte{0x05, 0xFF})
		})
		client, err := NewClient(WithProxy(addr))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if status := client.CheckProxy(context.Background()); status != ProxyStatusWrongType {
			t.Errorf("expected WrongType, got %v", status)
		}
	})

	t.Run("socks5 proxy answering connect", func(t *testing.T) {
		t.Parallel()

		addr := fakeProxy(t, func(conn net.Conn) {
			buf := make([]byte, 3)
			_, _ = conn.Read(buf)
			_, _ = conn.Write([]byte{0x05, 0x00})
			req := make([]byte, 256)
			_, _ = conn.Read(req)
			// host unreachable is still a valid SOCKS5 reply
			_, _ = conn.Write([]byte{0x05, 0x04, 0x00, 0x01, 0, 0, 0, 0, 0, 0})
		})
		client, err := NewClient(WithProxy(addr))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if status := client.CheckProxy(context.Background()); status != ProxyStatusOK {
			t.Errorf("expected OK, got %v", status)
		}
	})
}

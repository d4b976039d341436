package probe

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nao1215/webswarm/internal/classifier"
	"github.com/nao1215/webswarm/internal/model"
)

// certExpiryWarning is how close to expiry a certificate is flagged.
const certExpiryWarning = 14 * 24 * time.Hour

// Result is what the preflight request found out about a target.
type Result struct {
	// Target is the probed origin.
	Target string `json:"target"`

	// Reachable is true if the target answered with any HTTP response.
	Reachable bool `json:"reachable"`

	// Error holds the transport error when the target did not answer.
	Error string `json:"error,omitempty"`

	// StatusCode of the seed page.
	StatusCode int `json:"status_code,omitempty"`

	// Latency of the request including the body read.
	Latency time.Duration `json:"latency"`

	// Banner is the Server response header.
	Banner string `json:"banner,omitempty"`

	// TLSVersion is set for HTTPS targets, e.g. "TLS 1.3".
	TLSVersion string `json:"tls_version,omitempty"`

	// Certificate describes the leaf certificate of HTTPS targets.
	Certificate *CertificateInfo `json:"certificate,omitempty"`
}

// CertificateInfo contains the fields of a TLS certificate worth showing
// before a run.
type CertificateInfo struct {
	Subject  string    `json:"subject"`
	Issuer   string    `json:"issuer"`
	NotAfter time.Time `json:"not_after"`
	DNSNames []string  `json:"dns_names,omitempty"`
}

// Warnings returns human-readable problems worth mentioning before a run.
func (r *Result) Warnings(now time.Time) []string {
	var warnings []string
	if !r.Reachable {
		return append(warnings, "target did not respond: "+r.Error)
	}
	if r.StatusCode >= http.StatusBadRequest {
		warnings = append(warnings, fmt.Sprintf("seed page answered with status %d", r.StatusCode))
	}
	if r.TLSVersion == "TLS 1.0" || r.TLSVersion == "TLS 1.1" {
		warnings = append(warnings, "target negotiated deprecated "+r.TLSVersion)
	}
	if c := r.Certificate; c != nil {
		switch left := c.NotAfter.Sub(now); {
		case left <= 0:
			warnings = append(warnings, "certificate expired on "+c.NotAfter.Format(time.DateOnly))
		case left < certExpiryWarning:
			warnings = append(warnings, "certificate expires on "+c.NotAfter.Format(time.DateOnly))
		}
	}
	return warnings
}

// Prober sends the preflight request.
type Prober struct {
	client      *http.Client
	userAgent   string
	maxBodySize int64
}

// Option configures a Prober.
type Option func(*Prober)

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(p *Prober) {
		if ua != "" {
			p.userAgent = ua
		}
	}
}

// WithMaxBodySize limits how much of the seed page is read.
func WithMaxBodySize(size int64) Option {
	return func(p *Prober) {
		if size > 0 {
			p.maxBodySize = size
		}
	}
}

// New creates a Prober using client.
func New(client *http.Client, opts ...Option) *Prober {
	p := &Prober{
		client:      client,
		userAgent:   "webswarm",
		maxBodySize: 1024 * 1024,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Probe fetches the seed page of origin once. Transport failures are
// reported in the Result; only an invalid origin or a cancelled ctx return
// an error.
func (p *Prober) Probe(ctx context.Context, origin string) (*Result, error) {
	base, err := classifier.ParseOrigin(origin)
	if err != nil {
		return nil, err
	}
	result := &Result{Target: base}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+model.SeedPath, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", p.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		result.Latency = time.Since(start)
		result.Error = err.Error()
		return result, nil
	}
	defer resp.Body.Close()

	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, p.maxBodySize)) //nolint:errcheck // latency only
	result.Latency = time.Since(start)
	result.Reachable = true
	result.StatusCode = resp.StatusCode
	result.Banner = resp.Header.Get("Server")
	if resp.TLS != nil {
		extractTLSInfo(result, resp.TLS)
	}
	return result, nil
}

// extractTLSInfo records the TLS version and leaf certificate.
func extractTLSInfo(result *Result, state *tls.ConnectionState) {
	result.TLSVersion = tlsVersionName(state.Version)
	if len(state.PeerCertificates) == 0 {
		return
	}
	cert := state.PeerCertificates[0]
	result.Certificate = &CertificateInfo{
		Subject:  cert.Subject.String(),
		Issuer:   strings.Join(cert.Issuer.Organization, ", "),
		NotAfter: cert.NotAfter,
		DNSNames: cert.DNSNames,
	}
	if result.Certificate.Issuer == "" {
		result.Certificate.Issuer = cert.Issuer.String()
	}
}

func tlsVersionName(v uint16) string {
	switch v {
	case tls.VersionTLS10:
		return "TLS 1.0"
	case tls.VersionTLS11:
		return "TLS 1.1"
	case tls.VersionTLS12:
		return "TLS 1.2"
	case tls.VersionTLS13:
		return "TLS 1.3"
	default:
		return "Unknown"
	}
}

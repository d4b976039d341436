package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"strconv"
	"time"

	"golang.org/x/net/proxy"
)

// Default timeouts applied when no option overrides them.
const (
	DefaultConnectTimeout = 10 * time.Second
	DefaultReadTimeout    = 30 * time.Second

	DefaultMaxConnsPerHost = 4
)

// checkProxyTimeout bounds the SOCKS5 handshake performed by CheckProxy.
const checkProxyTimeout = 2 * time.Second

// maxRedirects is the number of redirects followed before the last
// response is returned as is.
const maxRedirects = 10

// Client creates per-user HTTP clients that share one configuration.
type Client struct {
	connectTimeout time.Duration
	readTimeout    time.Duration

	// proxyAddress is the SOCKS5 proxy in "host:port" form, empty for direct.
	proxyAddress string
	dialer       proxy.Dialer

	headers            map[string]string
	cookie             string
	insecureSkipVerify bool
	maxConnsPerHost    int
}

// Option configures a Client.
type Option func(*Client)

// WithConnectTimeout sets the dial timeout.
func WithConnectTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.connectTimeout = d
	}
}

// WithReadTimeout sets how long to wait for response headers once the
// request was written.
func WithReadTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.readTimeout = d
	}
}

// WithProxy routes all connections through the SOCKS5 proxy at address.
// An empty address means direct connections.
func WithProxy(address string) Option {
	return func(c *Client) {
		c.proxyAddress = address
	}
}

// WithHeaders sets headers injected into every request.
func WithHeaders(headers map[string]string) Option {
	return func(c *Client) {
		c.headers = headers
	}
}

// WithCookie sets a raw cookie string (e.g. "session=abc") sent with every request.
func WithCookie(cookie string) Option {
	return func(c *Client) {
		c.cookie = cookie
	}
}

// WithInsecureSkipVerify disables TLS certificate verification, which is
// needed for staging targets and onion services with self-signed certs.
func WithInsecureSkipVerify(skip bool) Option {
	return func(c *Client) {
		c.insecureSkipVerify = skip
	}
}

// WithMaxConnsPerHost limits concurrent connections per user client.
// Non-positive values are ignored.
func WithMaxConnsPerHost(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxConnsPerHost = n
		}
	}
}

// NewClient creates a Client. It validates the proxy address, if any, but
// does not connect to it; call CheckProxy for that.
func NewClient(opts ...Option) (*Client, error) {
	c := &Client{
		connectTimeout:  DefaultConnectTimeout,
		readTimeout:     DefaultReadTimeout,
		maxConnsPerHost: DefaultMaxConnsPerHost,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.proxyAddress != "" {
		if !isValidProxyAddress(c.proxyAddress) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidProxyAddress, c.proxyAddress)
		}
		forward := &net.Dialer{Timeout: c.connectTimeout}
		dialer, err := proxy.SOCKS5("tcp", c.proxyAddress, nil, forward)
		if err != nil {
			return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
		}
		c.dialer = dialer
	}
	return c, nil
}

// isValidProxyAddress checks for "host:port" with a non-empty host and a
// port in 1..65535.
func isValidProxyAddress(address string) bool {
	host, port, err := net.SplitHostPort(address)
	if err != nil || host == "" {
		return false
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return false
	}
	return n >= 1 && n <= 65535
}

// ProxyAddress returns the configured proxy address, empty when direct.
func (c *Client) ProxyAddress() string {
	return c.proxyAddress
}

// ConnectTimeout returns the dial timeout.
func (c *Client) ConnectTimeout() time.Duration {
	return c.connectTimeout
}

// ReadTimeout returns the response header timeout.
func (c *Client) ReadTimeout() time.Duration {
	return c.readTimeout
}

// HTTPClient returns a new HTTP client. Each call gets its own connection
// pool and cookie jar, so simulated users never share state.
func (c *Client) HTTPClient() *http.Client {
	transport := &http.Transport{
		DialContext:           c.dialContext,
		TLSHandshakeTimeout:   c.connectTimeout,
		ResponseHeaderTimeout: c.readTimeout,
		MaxIdleConns:          c.maxConnsPerHost,
		MaxIdleConnsPerHost:   c.maxConnsPerHost,
		MaxConnsPerHost:       c.maxConnsPerHost,
		IdleConnTimeout:       30 * time.Second,
		ForceAttemptHTTP2:     c.dialer == nil,
	}
	if c.insecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: true, //nolint:gosec // opt-in for self-signed targets
		}
	}

	var rt http.RoundTripper = transport
	if c.cookie != "" || len(c.headers) > 0 {
		rt = &headerInjectingTransport{
			base:    transport,
			cookie:  c.cookie,
			headers: c.headers,
		}
	}

	jar, _ := cookiejar.New(nil) //nolint:errcheck // cookiejar.New only fails with invalid options

	return &http.Client{
		Transport: rt,
		Timeout:   c.connectTimeout + c.readTimeout,
		Jar:       jar,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}
}

// dialContext dials directly or through the SOCKS5 proxy.
func (c *Client) dialContext(ctx context.Context, network, address string) (net.Conn, error) {
	if c.dialer == nil {
		d := &net.Dialer{Timeout: c.connectTimeout, KeepAlive: 30 * time.Second}
		return d.DialContext(ctx, network, address)
	}
	if cd, ok := c.dialer.(proxy.ContextDialer); ok {
		return cd.DialContext(ctx, network, address)
	}

	type dialResult struct {
		conn net.Conn
		err  error
	}
	resultCh := make(chan dialResult, 1)
	go func() {
		conn, err := c.dialer.Dial(network, address)
		resultCh <- dialResult{conn, err}
	}()

	select {
	case result := <-resultCh:
		return result.conn, result.err
	case <-ctx.Done():
		go func() {
			if result := <-resultCh; result.conn != nil {
				result.conn.Close()
			}
		}()
		return nil, ctx.Err()
	}
}

// SOCKS5 protocol constants
const (
	socks5Version       = 0x05
	socks5AuthNone      = 0x00
	socks5AuthNoAccept  = 0xFF
	socks5CmdConnect    = 0x01
	socks5AddrTypeDomID = 0x03

	// socks5ProbeHost is a reserved name that never resolves; the proxy
	// only needs to answer the CONNECT request, not complete it.
	socks5ProbeHost = "webswarm-probe.invalid"
)

// CheckProxy performs a SOCKS5 handshake and a CONNECT request against the
// configured proxy. Without a proxy it returns ProxyStatusOK.
func (c *Client) CheckProxy(ctx context.Context) ProxyStatus {
	if c.proxyAddress == "" {
		return ProxyStatusOK
	}

	ctx, cancel := context.WithTimeout(ctx, checkProxyTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", c.proxyAddress)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ProxyStatusTimeout
		}
		return ProxyStatusCannotConnect
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(checkProxyTimeout)); err != nil {
		return ProxyStatusCannotConnect
	}

	// Greeting: version, one method, no authentication.
	if _, err := conn.Write([]byte{socks5Version, 0x01, socks5AuthNone}); err != nil {
		return ProxyStatusCannotConnect
	}
	authResp := make([]byte, 2)
	if _, err := io.ReadFull(conn, authResp); err != nil {
		return readFailure(err)
	}
	if authResp[0] != socks5Version || authResp[1] == socks5AuthNoAccept || authResp[1] != socks5AuthNone {
		return ProxyStatusWrongType
	}

	connectReq := []byte{
		socks5Version,
		socks5CmdConnect,
		0x00, // reserved
		socks5AddrTypeDomID,
		byte(len(socks5ProbeHost)),
	}
	connectReq = append(connectReq, socks5ProbeHost...)
	connectReq = append(connectReq, 0x00, 80)
	if _, err := conn.Write(connectReq); err != nil {
		return ProxyStatusCannotConnect
	}

	// Any reply code proves the proxy processed the request.
	connectResp := make([]byte, 4)
	if _, err := io.ReadFull(conn, connectResp); err != nil {
		return readFailure(err)
	}
	if connectResp[0] != socks5Version {
		return ProxyStatusWrongType
	}
	return ProxyStatusOK
}

// readFailure maps a handshake read error to a status.
func readFailure(err error) ProxyStatus {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ProxyStatusTimeout
	}
	return ProxyStatusWrongType
}

// headerInjectingTransport wraps an http.RoundTripper to inject
// custom headers and cookies into every request.
type headerInjectingTransport struct {
	base    http.RoundTripper
	cookie  string
	headers map[string]string
}

// RoundTrip implements http.RoundTripper.
func (t *headerInjectingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())

	if t.cookie != "" {
		if existing := clone.Header.Get("Cookie"); existing != "" {
			clone.Header.Set("Cookie", existing+"; "+t.cookie)
		} else {
			clone.Header.Set("Cookie", t.cookie)
		}
	}

	for key, value := range t.headers {
		clone.Header.Set(key, value)
	}

	return t.base.RoundTrip(clone)
}

package classifier

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
)

// ErrInvalidOrigin is returned when a base origin cannot be parsed into an
// http(s) scheme plus host.
var ErrInvalidOrigin = errors.New("invalid base origin: expected http(s)://host[:port]")

// Kind is the classification of a path.
type Kind int

const (
	// Page is anything that is not a known static asset.
	Page Kind = iota
	// StaticAsset is a file whose extension marks it as a non-HTML resource.
	StaticAsset
)

// String returns the kind name.
func (k Kind) String() string {
	if k == StaticAsset {
		return "static_asset"
	}
	return "page"
}

// staticExtensions is the fixed set of extensions treated as static assets.
var staticExtensions = map[string]struct{}{
	// stylesheets and scripts
	"css": {}, "js": {}, "mjs": {}, "map": {},
	// images
	"png": {}, "jpg": {}, "jpeg": {}, "gif": {}, "svg": {}, "ico": {},
	"webp": {}, "avif": {}, "bmp": {}, "tif": {}, "tiff": {},
	// fonts
	"woff": {}, "woff2": {}, "ttf": {}, "eot": {}, "otf": {},
	// documents and archives
	"pdf": {}, "zip": {}, "gz": {}, "tgz": {}, "tar": {}, "bz2": {}, "xz": {}, "rar": {}, "7z": {},
	// audio and video
	"mp4": {}, "webm": {}, "ogg": {}, "mp3": {}, "wav": {}, "mov": {}, "avi": {},
	// structured data
	"xml": {}, "json": {}, "txt": {}, "csv": {},
}

// defaultPorts maps schemes to their default port.
var defaultPorts = map[string]string{
	"http":  "80",
	"https": "443",
}

// skippedSchemes are href prefixes that never name a fetchable resource.
var skippedSchemes = []string{"mailto:", "tel:", "javascript:", "data:", "sms:", "ftp:"}

// ClassifyPath decides whether an origin-relative path is a static asset.
// The query string is ignored and the extension match is case-insensitive.
func ClassifyPath(p string) Kind {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(p)), ".")
	if ext == "" {
		return Page
	}
	if _, ok := staticExtensions[ext]; ok {
		return StaticAsset
	}
	return Page
}

// ParseOrigin validates raw and returns its canonical origin:
// lowercased scheme and host, default port removed, no path.
func ParseOrigin(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidOrigin, err)
	}
	scheme := strings.ToLower(u.Scheme)
	if (scheme != "http" && scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidOrigin, raw)
	}
	return originOf(u), nil
}

// originOf returns scheme://host[:port] with defaults stripped.
func originOf(u *url.URL) string {
	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if port := u.Port(); port != "" && defaultPorts[scheme] != port {
		host += ":" + port
	}
	return scheme + "://" + host
}

// IsInternal reports whether candidate resolves to baseOrigin.
// Both arguments may carry paths; only scheme, host and port are compared.
func IsInternal(candidate, baseOrigin string) bool {
	c, err := url.Parse(candidate)
	if err != nil || c.Host == "" {
		return false
	}
	b, err := url.Parse(baseOrigin)
	if err != nil || b.Host == "" {
		return false
	}
	return originOf(c) == originOf(b)
}

// Resolve resolves rawHref against currentPageURL and returns the absolute
// URL with its fragment removed. It returns false for empty hrefs, bare
// fragments and non-fetchable schemes.
func Resolve(rawHref, currentPageURL string) (*url.URL, bool) {
	href := strings.TrimSpace(rawHref)
	if i := strings.IndexByte(href, '#'); i >= 0 {
		href = href[:i]
	}
	if href == "" {
		return nil, false
	}

	lower := strings.ToLower(href)
	for _, scheme := range skippedSchemes {
		if strings.HasPrefix(lower, scheme) {
			return nil, false
		}
	}

	base, err := url.Parse(currentPageURL)
	if err != nil {
		return nil, false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return nil, false
	}

	abs := base.ResolveReference(ref)
	abs.Fragment = ""
	abs.RawFragment = ""
	switch strings.ToLower(abs.Scheme) {
	case "http", "https":
	default:
		return nil, false
	}
	if abs.Host == "" {
		return nil, false
	}
	return abs, true
}

// RelativePath returns the origin-relative form of an absolute URL:
// escaped path plus query, with repeated slashes collapsed and an empty
// path mapped to "/".
func RelativePath(u *url.URL) string {
	p := collapseSlashes(u.EscapedPath())
	if p == "" {
		p = "/"
	}
	if u.RawQuery != "" {
		return p + "?" + u.RawQuery
	}
	return p
}

// Normalize resolves rawHref against currentPageURL and returns its
// origin-relative path and query. The second result is false when the href
// should be skipped. Normalize is idempotent: normalizing its own output
// against any page of the same origin yields the same path.
func Normalize(rawHref, currentPageURL string) (string, bool) {
	abs, ok := Resolve(rawHref, currentPageURL)
	if !ok {
		return "", false
	}
	return RelativePath(abs), true
}

// collapseSlashes replaces every run of '/' with a single '/'.
func collapseSlashes(p string) string {
	if !strings.Contains(p, "//") {
		return p
	}
	var b strings.Builder
	b.Grow(len(p))
	prevSlash := false
	for i := 0; i < len(p); i++ {
		c := p[i]
		if c == '/' {
			if prevSlash {
				continue
			}
			prevSlash = true
		} else {
			prevSlash = false
		}
		b.WriteByte(c)
	}
	return b.String()
}

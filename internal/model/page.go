package model

import (
	"encoding/hex"

	"golang.org/x/crypto/sha3"
)

// Page is the record of one crawl fetch.
type Page struct {
	// Path is the origin-relative path that was fetched.
	Path string `json:"path"`

	// StatusCode is the HTTP response status code, 0 if the fetch failed.
	StatusCode int `json:"status_code"`

	// ContentType is the Content-Type header of the response.
	ContentType string `json:"content_type,omitempty"`

	// Size is the number of body bytes read.
	Size int64 `json:"size"`

	// Hash is the SHA3-256 fingerprint of the body, empty if no body was read.
	Hash string `json:"hash,omitempty"`

	// Links is the number of internal links extracted from the page.
	Links int `json:"links"`

	// Error is set when the fetch failed or the status was unexpected.
	Error string `json:"error,omitempty"`
}

// Fingerprint returns the hex-encoded SHA3-256 digest of body.
func Fingerprint(body []byte) string {
	sum := sha3.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// OK reports whether the fetch succeeded with a 2xx status.
func (p *Page) OK() bool {
	return p.Error == "" && p.StatusCode >= 200 && p.StatusCode < 300
}

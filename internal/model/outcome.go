package model

import "time"

// Outcome is the result of one request issued by a simulated user, either
// a crawl fetch or an executed Turn.
type Outcome struct {
	// UserID identifies the simulated user that issued the request.
	UserID int `json:"user_id"`

	// Label is the metrics grouping label.
	Label string `json:"label"`

	// Method is the HTTP method.
	Method string `json:"method"`

	// Target is the origin-relative request target.
	Target string `json:"target"`

	// StatusCode is the HTTP status, or 0 on network error.
	StatusCode int `json:"status_code"`

	// Duration is the request latency including body read.
	Duration time.Duration `json:"duration"`

	// Bytes is the response body size read.
	Bytes int64 `json:"bytes"`

	// Success is true if the request counts as successful.
	Success bool `json:"success"`

	// Reason explains a failure, e.g. "unexpected status code 500".
	Reason string `json:"reason,omitempty"`

	// Timestamp is when the request started.
	Timestamp time.Time `json:"timestamp"`
}

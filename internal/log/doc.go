// Package log provides an slog handler that masks credentials before they
// reach log output.
//
// Load tests are often pointed at staging systems with session cookies or
// API tokens configured per target. SecureHandler keeps those out of logs:
//   - header-like attribute keys (Cookie, Authorization, X-Api-Key) are masked
//   - values that look like secrets (JWTs, bearer tokens, AWS keys) are masked
//   - URL values keep their path but have credential query parameters masked
//
// Usage:
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	slog.SetDefault(logger)
//
//	logger.Debug("turn failed", "target", "/search?q=shirt&api_key=abc")
//	// target=/search?api_key=***REDACTED***&q=shirt
package log

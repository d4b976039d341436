package config

import "errors"

// Configuration validation errors returned by Config.Validate.
var (
	// ErrNoTarget is returned when the target origin is empty.
	ErrNoTarget = errors.New("no target specified: pass an origin, use --target or set TARGET_HOST")

	// ErrInvalidTarget is returned when the target cannot be parsed into an
	// http(s) origin. It wraps the parse error.
	ErrInvalidTarget = errors.New("invalid target")

	// ErrInvalidTimeout is returned when a connect or read timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidUsers is returned when the user count is not positive.
	ErrInvalidUsers = errors.New("invalid users: must be positive")

	// ErrInvalidSpawnRate is returned when the spawn rate is negative.
	ErrInvalidSpawnRate = errors.New("invalid spawn rate: must be non-negative")

	// ErrInvalidWait is returned when the wait bounds are negative or inverted.
	ErrInvalidWait = errors.New("invalid wait: min-wait must be non-negative and not exceed max-wait")

	// ErrInvalidDuration is returned when the run duration is negative.
	ErrInvalidDuration = errors.New("invalid duration: must be non-negative")

	// ErrInvalidTurns is returned when the turn limit is negative.
	ErrInvalidTurns = errors.New("invalid turns: must be non-negative")

	// ErrInvalidMaxRPS is returned when the request rate cap is negative.
	ErrInvalidMaxRPS = errors.New("invalid max rps: must be non-negative")

	// ErrInvalidMaxPages is returned when the crawl page cap is not positive.
	ErrInvalidMaxPages = errors.New("invalid max pages: must be positive")

	// ErrInvalidMaxQueue is returned when the crawl queue cap is not positive.
	ErrInvalidMaxQueue = errors.New("invalid max queue: must be positive")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrInvalidCrawlDelay is returned when the crawl delay is negative.
	ErrInvalidCrawlDelay = errors.New("invalid crawl delay: must be non-negative")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrInvalidMaxConns is returned when the per-user connection limit is not positive.
	ErrInvalidMaxConns = errors.New("invalid max conns: must be positive")

	// ErrConflictingProxy is returned when both --proxy and --tor are specified.
	ErrConflictingProxy = errors.New("conflicting proxy settings: --proxy and --tor cannot be used together")

	// ErrConfigNotFound is returned when the configuration file does not exist.
	ErrConfigNotFound = errors.New("configuration file not found")
)

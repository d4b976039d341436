package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"

	"github.com/nao1215/webswarm/internal/classifier"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "webswarm"

	// EnvTargetHost names the environment variable consulted for the target
	// origin when none is given on the command line.
	EnvTargetHost = "TARGET_HOST"

	// DefaultTarget is the origin exercised when nothing else is configured.
	// It is a public documentation site that tolerates light traffic.
	DefaultTarget = "https://docs.locust.io"

	// DefaultUsers is the number of concurrent simulated users.
	DefaultUsers = 10

	// DefaultSpawnRate is the number of users started per second.
	DefaultSpawnRate = 2.0

	// DefaultMinWait and DefaultMaxWait bound the pause between turns.
	DefaultMinWait = 1 * time.Second
	DefaultMaxWait = 5 * time.Second

	// DefaultConnectTimeout bounds TCP connection establishment.
	DefaultConnectTimeout = 10 * time.Second

	// DefaultReadTimeout bounds the wait for response headers.
	DefaultReadTimeout = 30 * time.Second

	// DefaultMaxPages caps crawl fetches per user. Each user crawls the
	// target once on start, so this multiplies by the user count.
	DefaultMaxPages = 50

	// DefaultMaxQueue caps the crawl frontier.
	DefaultMaxQueue = 100

	// DefaultUserAgent identifies webswarm traffic in server logs.
	DefaultUserAgent = "webswarm/1.0 (+https://github.com/nao1215/webswarm)"

	// DefaultMaxBodySize limits the response body read per request.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB

	// DefaultMaxConnsPerHost limits each simulated user's connections.
	DefaultMaxConnsPerHost = 4

	// DefaultTorStartupTimeout is the maximum time to wait for the embedded
	// Tor daemon to bootstrap.
	DefaultTorStartupTimeout = 3 * time.Minute
)

// Config holds all configuration options for a webswarm run.
// It is populated from CLI flags and the optional config file and passed
// down explicitly; nothing reads it from global state.
type Config struct {
	// Target is the base origin (scheme + host) under test.
	Target string

	// Users is the number of concurrent simulated users.
	Users int

	// SpawnRate is how many users are started per second.
	// Zero starts all users at once.
	SpawnRate float64

	// MinWait and MaxWait bound the uniform pause between turns.
	MinWait time.Duration
	MaxWait time.Duration

	// Duration stops the run after the given time. Zero runs until interrupted
	// or until every user has spent its turns.
	Duration time.Duration

	// Turns limits the turns each user performs. Zero means unbounded.
	Turns int

	// MaxRPS caps the aggregate turn rate across all users. Zero disables it.
	MaxRPS float64

	// Seed makes a run reproducible. Zero picks a random seed.
	Seed uint64

	// ConnectTimeout and ReadTimeout configure the HTTP client.
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration

	// MaxPages caps crawl fetches per user.
	MaxPages int

	// MaxQueue caps the crawl frontier per user.
	MaxQueue int

	// CrawlDelay is the pause between crawl requests.
	CrawlDelay time.Duration

	// UserAgent is sent with every request.
	UserAgent string

	// MaxBodySize is the maximum response body size in bytes to read.
	// Zero means the default.
	MaxBodySize int64

	// MaxConnsPerHost limits concurrent connections per simulated user.
	MaxConnsPerHost int

	// ProxyAddress routes traffic through a SOCKS5 proxy in "host:port" form.
	ProxyAddress string

	// UseTor starts an embedded Tor daemon and routes traffic through it.
	UseTor bool

	// TorStartupTimeout bounds the embedded Tor bootstrap.
	TorStartupTimeout time.Duration

	// InsecureSkipVerify disables TLS certificate verification.
	InsecureSkipVerify bool

	// Verbose enables debug logging. LogJSON switches to JSON log lines.
	Verbose bool
	LogJSON bool

	// ConfigFilePath is an explicit path to the YAML config file.
	ConfigFilePath string

	// TargetConfigs holds the loaded config file, if any.
	TargetConfigs *File

	// JSONReport and MarkdownReport select the report format.
	// They are mutually exclusive; neither means plain text.
	JSONReport     bool
	MarkdownReport bool

	// ReportFile writes the report to a file instead of stdout.
	ReportFile string

	// DBDir is the directory of the run-history database.
	DBDir string

	// SaveToDB stores the run in the history database.
	SaveToDB bool
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		Target:            DefaultTarget,
		Users:             DefaultUsers,
		SpawnRate:         DefaultSpawnRate,
		MinWait:           DefaultMinWait,
		MaxWait:           DefaultMaxWait,
		ConnectTimeout:    DefaultConnectTimeout,
		ReadTimeout:       DefaultReadTimeout,
		MaxPages:          DefaultMaxPages,
		MaxQueue:          DefaultMaxQueue,
		UserAgent:         DefaultUserAgent,
		MaxBodySize:       DefaultMaxBodySize,
		MaxConnsPerHost:   DefaultMaxConnsPerHost,
		TorStartupTimeout: DefaultTorStartupTimeout,
		DBDir:             XDGDataDir(),
		SaveToDB:          true,
	}
}

// ResolveTarget picks the target origin: the positional argument, then the
// --target flag, then $TARGET_HOST, then DefaultTarget.
func ResolveTarget(arg, flag string) string {
	for _, candidate := range []string{arg, flag, os.Getenv(EnvTargetHost)} {
		if candidate = strings.TrimSpace(candidate); candidate != "" {
			return candidate
		}
	}
	return DefaultTarget
}

// Site returns the config file settings for the current target merged over
// the file defaults. It is the zero value when no file was loaded.
func (c *Config) Site() TargetConfig {
	if c.TargetConfigs == nil {
		return TargetConfig{}
	}
	return c.TargetConfigs.GetTargetConfig(c.Target)
}

// XDGDataDir returns the XDG data directory for webswarm.
// On Linux: ~/.local/share/webswarm
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for webswarm.
// On Linux: ~/.config/webswarm
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid and returns the first
// problem found. On success Target holds the canonical origin.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Target) == "" {
		return ErrNoTarget
	}
	origin, err := classifier.ParseOrigin(c.Target)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTarget, err)
	}
	c.Target = origin

	if c.ConnectTimeout <= 0 || c.ReadTimeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.Users <= 0 {
		return ErrInvalidUsers
	}
	if c.SpawnRate < 0 {
		return ErrInvalidSpawnRate
	}
	if c.MinWait < 0 || c.MaxWait < c.MinWait {
		return ErrInvalidWait
	}
	if c.Duration < 0 {
		return ErrInvalidDuration
	}
	if c.Turns < 0 {
		return ErrInvalidTurns
	}
	if c.MaxRPS < 0 {
		return ErrInvalidMaxRPS
	}
	if c.MaxPages <= 0 {
		return ErrInvalidMaxPages
	}
	if c.MaxQueue <= 0 {
		return ErrInvalidMaxQueue
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	if c.UseTor && c.ProxyAddress != "" {
		return ErrConflictingProxy
	}
	if c.CrawlDelay < 0 {
		return ErrInvalidCrawlDelay
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	if c.MaxConnsPerHost <= 0 {
		return ErrInvalidMaxConns
	}
	return nil
}

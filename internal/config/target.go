package config

import (
	"maps"
	"net/url"
)

// TargetConfig holds per-target settings from the config file.
type TargetConfig struct {
	// Cookie is sent with every request. Format: "name=value; name2=value2".
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are added to every request.
	Headers map[string]string `yaml:"headers,omitempty"`

	// MaxPages overrides the crawl page cap when non-zero.
	MaxPages int `yaml:"maxPages,omitempty"`

	// MaxQueue overrides the crawl queue cap when non-zero.
	MaxQueue int `yaml:"maxQueue,omitempty"`

	// IgnorePatterns are glob patterns of paths the crawler skips.
	IgnorePatterns []string `yaml:"ignorePatterns,omitempty"`

	// FollowPatterns restrict crawling to matching paths when set.
	FollowPatterns []string `yaml:"followPatterns,omitempty"`

	// Weights override individual turn weights, keyed by turn kind name
	// (visit_page, visit_asset, basic_search, filtered_search, rediscover,
	// homepage).
	Weights map[string]int `yaml:"weights,omitempty"`
}

// File represents the structure of the .webswarm configuration file.
type File struct {
	// Targets maps an origin ("https://shop.example.com") or a bare host
	// ("shop.example.com") to its settings.
	Targets map[string]TargetConfig `yaml:"targets,omitempty"`

	// Defaults apply to every target unless overridden.
	Defaults TargetConfig `yaml:"defaults,omitempty"`
}

// GetTargetConfig returns the settings for origin merged over the defaults.
// An exact origin key wins over a host key.
func (cf *File) GetTargetConfig(origin string) TargetConfig {
	result := cf.Defaults
	result.Headers = maps.Clone(cf.Defaults.Headers)
	result.Weights = maps.Clone(cf.Defaults.Weights)

	tc, ok := cf.Targets[origin]
	if !ok {
		if u, err := url.Parse(origin); err == nil && u.Host != "" {
			tc, ok = cf.Targets[u.Host]
		}
	}
	if !ok {
		return result
	}

	if tc.Cookie != "" {
		result.Cookie = tc.Cookie
	}
	if tc.MaxPages != 0 {
		result.MaxPages = tc.MaxPages
	}
	if tc.MaxQueue != 0 {
		result.MaxQueue = tc.MaxQueue
	}
	if len(tc.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string, len(tc.Headers))
		}
		maps.Copy(result.Headers, tc.Headers)
	}
	if len(tc.Weights) > 0 {
		if result.Weights == nil {
			result.Weights = make(map[string]int, len(tc.Weights))
		}
		maps.Copy(result.Weights, tc.Weights)
	}
	if len(tc.IgnorePatterns) > 0 {
		result.IgnorePatterns = tc.IgnorePatterns
	}
	if len(tc.FollowPatterns) > 0 {
		result.FollowPatterns = tc.FollowPatterns
	}
	return result
}

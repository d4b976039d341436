// Package config provides the run configuration for webswarm: defaults,
// validation, target resolution and the optional per-target YAML file.
package config

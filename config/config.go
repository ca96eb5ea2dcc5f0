// Package config handles service settings and per-repository review
// configuration.
package config

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigPath is where repositories opt into or tune reviews.
	DefaultConfigPath = ".github/reviewloop.yml"

	// TriggerAuto reviews every opened or updated pull request.
	TriggerAuto = "auto"
	// TriggerOnRequest reviews only when a /review comment asks for it.
	TriggerOnRequest = "on-request"
)

// ConfigParseError indicates a configuration file exists but contains invalid
// content. This is distinct from "file not found", which falls back to the
// default config.
type ConfigParseError struct {
	Path string
	Err  error
}

func (e *ConfigParseError) Error() string {
	return fmt.Sprintf("invalid config at %s: %v", e.Path, e.Err)
}

func (e *ConfigParseError) Unwrap() error {
	return e.Err
}

// Config is the per-repository review configuration.
type Config struct {
	// Enabled determines whether the reviewer runs for this repository.
	Enabled bool `yaml:"enabled"`
	// Trigger determines when reviews happen: "auto" or "on-request".
	Trigger string `yaml:"trigger"`
	// Exclude lists glob patterns for files to skip during review.
	// Example: ["vendor/**", "*.gen.go", "docs/**"]
	Exclude []string `yaml:"exclude"`
	// Instructions provides repository-specific guidance for the reviewer.
	// Example: "Focus on security. We use sqlc for DB queries."
	Instructions string `yaml:"instructions"`
}

// DefaultConfig returns the configuration used when a repository carries no
// config file.
func DefaultConfig() *Config {
	return &Config{
		Enabled: true,
		Trigger: TriggerAuto,
	}
}

// ContentFetcher retrieves a file's decoded content from a repository's
// default branch, returning "" when the file does not exist.
type ContentFetcher interface {
	FetchFileContent(ctx context.Context, owner, repo, path string) (string, error)
}

// Loader loads review configuration from repositories.
type Loader struct {
	fetcher ContentFetcher
}

// NewLoader creates a config loader backed by the given content fetcher.
func NewLoader(fetcher ContentFetcher) *Loader {
	return &Loader{fetcher: fetcher}
}

// Load fetches and parses the config file from a repository. A missing file
// yields the default config; a present but invalid file yields a
// ConfigParseError.
func (l *Loader) Load(ctx context.Context, owner, repo string) (*Config, error) {
	content, err := l.fetcher.FetchFileContent(ctx, owner, repo, DefaultConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch config: %w", err)
	}

	if content == "" {
		return DefaultConfig(), nil
	}

	cfg, err := Parse([]byte(content))
	if err != nil {
		// Wrap parse errors so callers can distinguish them from fetch errors.
		return nil, &ConfigParseError{Path: DefaultConfigPath, Err: err}
	}
	return cfg, nil
}

// Parse parses a config from YAML content.
func Parse(content []byte) (*Config, error) {
	config := DefaultConfig()
	if err := yaml.Unmarshal(content, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks field values, normalizing an empty trigger to "auto".
func (c *Config) Validate() error {
	switch c.Trigger {
	case TriggerAuto, TriggerOnRequest:
	case "":
		c.Trigger = TriggerAuto
	default:
		return fmt.Errorf("invalid trigger value: %s (must be 'auto' or 'on-request')", c.Trigger)
	}

	return nil
}

// ShouldReviewOnEvent reports whether automatic pull request events should
// start a review.
func (c *Config) ShouldReviewOnEvent() bool {
	return c.Enabled && c.Trigger == TriggerAuto
}

// ShouldExcludeFile reports whether the file path matches any exclude pattern.
func (c *Config) ShouldExcludeFile(path string) bool {
	for _, pattern := range c.Exclude {
		// Handle ** patterns by checking the directory prefix, since
		// filepath.Match does not cross path separators.
		if strings.Contains(pattern, "**") {
			prefix := strings.Split(pattern, "**")[0]
			if prefix != "" && strings.HasPrefix(path, prefix) {
				suffix := strings.Split(pattern, "**")[1]
				if suffix == "" || strings.HasSuffix(path, strings.TrimPrefix(suffix, "/")) {
					return true
				}
			}
			if prefix != "" && strings.HasPrefix(path, strings.TrimSuffix(prefix, "/")) {
				return true
			}
		}

		if matched, _ := filepath.Match(pattern, path); matched {
			return true
		}

		// Also try the bare filename for patterns like "*.gen.go".
		if matched, _ := filepath.Match(pattern, filepath.Base(path)); matched {
			return true
		}
	}
	return false
}

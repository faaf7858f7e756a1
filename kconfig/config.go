package kconfig

import (
	"errors"
	"fmt"
	"os"
	"path"
	"slices"
	"strings"

	"golang.org/x/exp/maps"
	"gopkg.in/yaml.v3"
)

var (
	ErrInvalidConfig = errors.New("invalid config")
)

// TraceLevels are the accepted trace level overrides.
var TraceLevels = []string{"off", "error", "warn", "info", "debug", "trace"}

// Config is the submission-time configuration of a compilation.
type Config struct {
	// Name overrides the application name.
	Name string `yaml:"name"`

	// ParallelWidths overrides parallel region widths. Keys are region names
	// or logical operator names and may contain path.Match globs.
	ParallelWidths map[string]int `yaml:"parallel_widths"`

	TraceLevel       string            `yaml:"trace_level"`
	SubmissionValues map[string]string `yaml:"submission_values"`

	Publish PublishConf `yaml:"publish"`
}

// PublishConf selects where compiled topologies are published.
type PublishConf struct {
	Brokers    []string `yaml:"brokers"`
	Topic      string   `yaml:"topic"`
	Partitions int32    `yaml:"partitions"`
	Replicas   int16    `yaml:"replicas"`
}

// Enabled reports whether publishing is configured.
func (p PublishConf) Enabled() bool {
	return len(p.Brokers) > 0 && p.Topic != ""
}

// Load reads and validates the YAML config at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes and validates a YAML config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	cfg.defaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) defaults() {
	if c.Publish.Partitions == 0 {
		c.Publish.Partitions = 1
	}
	if c.Publish.Replicas == 0 {
		c.Publish.Replicas = 1
	}
}

// Validate checks width overrides, glob patterns and the trace level.
func (c *Config) Validate() error {
	for _, pattern := range c.patterns() {
		if _, err := path.Match(pattern, ""); err != nil {
			return fmt.Errorf("%w: parallel width pattern %q: %v", ErrInvalidConfig, pattern, err)
		}
		if w := c.ParallelWidths[pattern]; w < 1 {
			return fmt.Errorf("%w: parallel width %d for %q must be at least 1", ErrInvalidConfig, w, pattern)
		}
	}
	if c.TraceLevel != "" && !slices.Contains(TraceLevels, c.TraceLevel) {
		return fmt.Errorf("%w: unknown trace level %q", ErrInvalidConfig, c.TraceLevel)
	}
	return nil
}

// WidthFor returns the width override for the first name that matches. Exact
// keys win over globs; longer globs are tried first.
func (c *Config) WidthFor(names ...string) (int, bool) {
	if c == nil || len(c.ParallelWidths) == 0 {
		return 0, false
	}
	patterns := c.patterns()
	for _, name := range names {
		if w, ok := c.ParallelWidths[name]; ok {
			return w, true
		}
		for _, pattern := range patterns {
			if ok, _ := path.Match(pattern, name); ok {
				return c.ParallelWidths[pattern], true
			}
		}
	}
	return 0, false
}

func (c *Config) patterns() []string {
	keys := maps.Keys(c.ParallelWidths)
	slices.SortFunc(keys, func(a, b string) int {
		if len(a) != len(b) {
			return len(b) - len(a)
		}
		return strings.Compare(a, b)
	})
	return keys
}

// Package config provides configuration loading and management for domx.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete domx configuration
type Config struct {
	Observe ObserveConfig `yaml:"observe"`
	Frames  FramesConfig  `yaml:"frames"`
	Watch   WatchConfig   `yaml:"watch"`
	Output  OutputConfig  `yaml:"output"`
	Metrics MetricsConfig `yaml:"metrics"`
	NATS    NATSConfig    `yaml:"nats"`
}

// ObserveConfig configures insertion detection
type ObserveConfig struct {
	// AnimationName is the sentinel animation that marks an insertion
	AnimationName string `yaml:"animation_name"`
	// EventName is the animation start event raised by the document
	// (animationstart, MSAnimationStart or webkitAnimationStart)
	EventName string `yaml:"event_name"`
	// Selector picks the elements that receive the sentinel animation
	Selector string `yaml:"selector"`
}

// FramesConfig configures the frame scheduler
type FramesConfig struct {
	// Interval is the period between frames when watching
	Interval time.Duration `yaml:"interval"`
	// MaxFrames bounds a single document normalization
	MaxFrames int `yaml:"max_frames"`
}

// WatchConfig configures directory watching
type WatchConfig struct {
	// Dirs are the directories to watch
	Dirs []string `yaml:"dirs"`
	// Include are doublestar patterns of files to normalize
	Include []string `yaml:"include"`
	// ExcludeDirs are directory names never descended into
	ExcludeDirs []string `yaml:"exclude_dirs"`
	// Debounce is how long to collect changes before processing
	Debounce time.Duration `yaml:"debounce"`
}

// OutputConfig configures how normalized documents are written
type OutputConfig struct {
	// Format is html or markdown
	Format string `yaml:"format"`
	// InPlace rewrites source files instead of printing
	InPlace bool `yaml:"in_place"`
}

// MetricsConfig configures the Prometheus endpoint
type MetricsConfig struct {
	// Addr is the listen address (empty = disabled)
	Addr string `yaml:"addr"`
}

// NATSConfig configures report publishing
type NATSConfig struct {
	// URL is the NATS server URL (empty = reports are only logged)
	URL string `yaml:"url"`
	// Subject is the subject reports are published on
	Subject string `yaml:"subject"`
	// Bucket is the KV bucket holding the latest report per document
	// (empty = reports are not stored)
	Bucket string `yaml:"bucket"`
}

// Output formats.
const (
	FormatHTML     = "html"
	FormatMarkdown = "markdown"
)

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Observe: ObserveConfig{
			AnimationName: "observe-element",
			EventName:     "animationstart",
			Selector:      `[class*="domx-" i], [data-domx-child], [data-domx-children]`,
		},
		Frames: FramesConfig{
			Interval:  16 * time.Millisecond,
			MaxFrames: 1000,
		},
		Watch: WatchConfig{
			Dirs:        []string{"."},
			Include:     []string{"**/*.html", "**/*.htm"},
			ExcludeDirs: []string{".git", "node_modules", "vendor"},
			Debounce:    500 * time.Millisecond,
		},
		Output: OutputConfig{
			Format:  FormatHTML,
			InPlace: false,
		},
		NATS: NATSConfig{
			URL:     "",
			Subject: "domx.reports",
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Observe.AnimationName == "" {
		return fmt.Errorf("observe.animation_name is required")
	}
	switch c.Observe.EventName {
	case "animationstart", "MSAnimationStart", "webkitAnimationStart":
	default:
		return fmt.Errorf("observe.event_name %q is not an animation start event", c.Observe.EventName)
	}
	if c.Observe.Selector == "" {
		return fmt.Errorf("observe.selector is required")
	}
	if c.Frames.Interval <= 0 {
		return fmt.Errorf("frames.interval must be positive")
	}
	if c.Frames.MaxFrames <= 0 {
		return fmt.Errorf("frames.max_frames must be positive")
	}
	if c.Output.Format != FormatHTML && c.Output.Format != FormatMarkdown {
		return fmt.Errorf("output.format must be %q or %q", FormatHTML, FormatMarkdown)
	}
	if c.Output.InPlace && c.Output.Format != FormatHTML {
		return fmt.Errorf("output.in_place requires html format")
	}
	if c.NATS.URL != "" && c.NATS.Subject == "" {
		return fmt.Errorf("nats.subject is required when nats.url is set")
	}
	if c.NATS.Bucket != "" && c.NATS.URL == "" {
		return fmt.Errorf("nats.bucket requires nats.url")
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for non-zero values)
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// Observe
	if other.Observe.AnimationName != "" {
		c.Observe.AnimationName = other.Observe.AnimationName
	}
	if other.Observe.EventName != "" {
		c.Observe.EventName = other.Observe.EventName
	}
	if other.Observe.Selector != "" {
		c.Observe.Selector = other.Observe.Selector
	}

	// Frames
	if other.Frames.Interval != 0 {
		c.Frames.Interval = other.Frames.Interval
	}
	if other.Frames.MaxFrames != 0 {
		c.Frames.MaxFrames = other.Frames.MaxFrames
	}

	// Watch
	if len(other.Watch.Dirs) > 0 {
		c.Watch.Dirs = other.Watch.Dirs
	}
	if len(other.Watch.Include) > 0 {
		c.Watch.Include = other.Watch.Include
	}
	if len(other.Watch.ExcludeDirs) > 0 {
		c.Watch.ExcludeDirs = other.Watch.ExcludeDirs
	}
	if other.Watch.Debounce != 0 {
		c.Watch.Debounce = other.Watch.Debounce
	}

	// Output
	if other.Output.Format != "" {
		c.Output.Format = other.Output.Format
	}
	if other.Output.InPlace {
		c.Output.InPlace = true
	}

	// Metrics
	if other.Metrics.Addr != "" {
		c.Metrics.Addr = other.Metrics.Addr
	}

	// NATS
	if other.NATS.URL != "" {
		c.NATS.URL = other.NATS.URL
	}
	if other.NATS.Subject != "" {
		c.NATS.Subject = other.NATS.Subject
	}
	if other.NATS.Bucket != "" {
		c.NATS.Bucket = other.NATS.Bucket
	}
}

// Package config loads the YAML settings shared by the CLI and NewPage.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Store drivers.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreSQLite = "sqlite"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("config: invalid")

// Duration is a time.Duration read from a Go duration string ("300ms").
type Duration time.Duration

// D returns the value as a time.Duration.
func (d Duration) D() time.Duration { return time.Duration(d) }

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return fmt.Errorf("config: duration: %w", err)
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		*d = 0
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("config: duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Config holds every tunable of a page.
type Config struct {
	SaveURL         string   `yaml:"save_url"`
	PreviewURL      string   `yaml:"preview_url"`
	CSRFToken       string   `yaml:"csrf_token"`
	CSRFHeader      string   `yaml:"csrf_header"`
	Accept          string   `yaml:"accept"`
	Debounce        Duration `yaml:"debounce"`
	PreviewDebounce Duration `yaml:"preview_debounce"`
	SavedRevert     Duration `yaml:"saved_revert"`
	AutoAdvance     Duration `yaml:"auto_advance"`
	ProgressTTL     Duration `yaml:"progress_ttl"`
	ReducedMotion   bool     `yaml:"reduced_motion"`

	Store Store `yaml:"store"`
	Probe Probe `yaml:"probe"`
	Log   Log   `yaml:"log"`
	Theme Theme `yaml:"theme"`
}

// Store selects the local storage backend.
type Store struct {
	Driver string `yaml:"driver"`
	// Path is a directory for the file driver and a database file for sqlite.
	Path string `yaml:"path"`
}

// Probe configures the connectivity check.
type Probe struct {
	URL      string   `yaml:"url"`
	Interval Duration `yaml:"interval"`
}

// Log configures zap.
type Log struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Theme selects status indicator classes.
type Theme struct {
	Name    string            `yaml:"name"`
	Variant string            `yaml:"variant"`
	Tokens  map[string]string `yaml:"tokens"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		CSRFHeader:      "X-CSRF-Token",
		Accept:          "application/json",
		Debounce:        Duration(300 * time.Millisecond),
		PreviewDebounce: Duration(500 * time.Millisecond),
		SavedRevert:     Duration(2 * time.Second),
		AutoAdvance:     Duration(400 * time.Millisecond),
		ProgressTTL:     Duration(24 * time.Hour),
		Store:           Store{Driver: StoreMemory},
		Probe:           Probe{Interval: Duration(30 * time.Second)},
		Log:             Log{Level: "info"},
	}
}

// Load reads path over Default. A missing file is an error.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over Default and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(string(data)) != "" {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse: %w", err)
		}
	}
	cfg.Store.Driver = strings.ToLower(strings.TrimSpace(cfg.Store.Driver))
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = StoreMemory
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	for name, raw := range map[string]string{
		"save_url":    c.SaveURL,
		"preview_url": c.PreviewURL,
		"probe.url":   c.Probe.URL,
	} {
		if raw == "" {
			continue
		}
		if _, err := url.Parse(raw); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalid, name, err)
		}
	}

	for name, d := range map[string]Duration{
		"debounce":         c.Debounce,
		"preview_debounce": c.PreviewDebounce,
		"saved_revert":     c.SavedRevert,
		"auto_advance":     c.AutoAdvance,
		"progress_ttl":     c.ProgressTTL,
		"probe.interval":   c.Probe.Interval,
	} {
		if d < 0 {
			return fmt.Errorf("%w: %s must not be negative", ErrInvalid, name)
		}
	}

	switch c.Store.Driver {
	case StoreMemory:
	case StoreFile, StoreSQLite:
		if strings.TrimSpace(c.Store.Path) == "" {
			return fmt.Errorf("%w: store.path is required for the %s driver", ErrInvalid, c.Store.Driver)
		}
	default:
		return fmt.Errorf("%w: unknown store driver %q", ErrInvalid, c.Store.Driver)
	}

	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: unknown log level %q", ErrInvalid, c.Log.Level)
	}
	return nil
}

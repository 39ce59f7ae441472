package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultAddr              = "127.0.0.1"
	defaultPort              = ":8880"
	defaultSessionTTLSeconds = 1800
	defaultSlideInterval     = 6
	defaultMinLength         = 2
	defaultToggleRules       = "code"
)

// ErrValidation reports a config value outside its allowed range.
var ErrValidation = errors.New("invalid config")

// ServerConfig configures the HTTP listener used by seasoningd.
type ServerConfig struct {
	Addr string `json:"addr"`
	Port string `json:"port"`
}

// SessionsConfig controls how long an idle page session is kept.
type SessionsConfig struct {
	TTLSeconds int `json:"ttl_seconds"`
}

// FixturesConfig points at an ingredient fixture file on disk. When empty the
// embedded fixture is used.
type FixturesConfig struct {
	Ingredients string `json:"ingredients"`
}

// FormsetConfig configures the add control of every formset.
type FormsetConfig struct {
	AddLabel string `json:"add_label"`
}

// TypeToggleConfig selects the rule set of the ingredient type toggle.
type TypeToggleConfig struct {
	Rules string `json:"rules"`
}

// SlideshowConfig configures homepage autoplay. An explicit zero disables
// it; leaving the field out uses the default interval.
type SlideshowConfig struct {
	IntervalSeconds *int `json:"interval_seconds,omitempty"`
}

// Interval returns the autoplay interval, zero when autoplay is off.
func (s SlideshowConfig) Interval() time.Duration {
	seconds := defaultSlideInterval
	if s.IntervalSeconds != nil {
		seconds = *s.IntervalSeconds
	}
	return time.Duration(seconds) * time.Second
}

// AutocompleteConfig configures ingredient lookups.
type AutocompleteConfig struct {
	Source    string `json:"source"`
	PageURL   string `json:"page_url"`
	MinLength int    `json:"min_length"`
	// BaseURL is the server the page widgets call back into. Empty means the
	// dev server itself.
	BaseURL string `json:"base_url"`
}

// MarkupConfig configures the recipe editor toolbar.
type MarkupConfig struct {
	PreviewPath string `json:"preview_path"`
}

// WidgetsConfig groups the per-widget settings.
type WidgetsConfig struct {
	Formset      FormsetConfig      `json:"formset"`
	TypeToggle   TypeToggleConfig   `json:"type_toggle"`
	Slideshow    SlideshowConfig    `json:"slideshow"`
	Autocomplete AutocompleteConfig `json:"autocomplete"`
	Markup       MarkupConfig       `json:"markup"`
}

// Config represents the combined runtime settings parsed from config.json.
type Config struct {
	Server   ServerConfig   `json:"server"`
	Sessions SessionsConfig `json:"sessions"`
	Fixtures FixturesConfig `json:"fixtures"`
	Widgets  WidgetsConfig  `json:"widgets"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	var cfg Config
	cfg.applyDefaults()
	return cfg
}

// Load reads the JSON config at path, fills in defaults and applies
// SEASONING_* environment overrides.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.applyDefaults()
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadOrDefault behaves like Load but falls back to Default when path does
// not exist.
func LoadOrDefault(path string) (Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		cfg = Default()
		cfg.applyEnv()
		return cfg, cfg.Validate()
	}
	return cfg, err
}

// Validate checks the values defaults cannot repair.
func (c Config) Validate() error {
	if c.Sessions.TTLSeconds <= 0 {
		return fmt.Errorf("%w: sessions.ttl_seconds must be positive", ErrValidation)
	}
	if s := c.Widgets.Slideshow.IntervalSeconds; s != nil && *s < 0 {
		return fmt.Errorf("%w: widgets.slideshow.interval_seconds must not be negative", ErrValidation)
	}
	if c.Widgets.Autocomplete.MinLength < 1 {
		return fmt.Errorf("%w: widgets.autocomplete.min_length must be at least 1", ErrValidation)
	}
	switch c.Widgets.TypeToggle.Rules {
	case "code", "numeric":
	default:
		return fmt.Errorf("%w: widgets.type_toggle.rules %q", ErrValidation, c.Widgets.TypeToggle.Rules)
	}
	return nil
}

// ListenAddr joins the server address and port.
func (c Config) ListenAddr() string {
	return c.Server.Addr + c.Server.Port
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = defaultAddr
	}
	if c.Server.Port == "" {
		c.Server.Port = defaultPort
	}
	if c.Sessions.TTLSeconds == 0 {
		c.Sessions.TTLSeconds = defaultSessionTTLSeconds
	}
	if c.Widgets.TypeToggle.Rules == "" {
		c.Widgets.TypeToggle.Rules = defaultToggleRules
	}
	if c.Widgets.Slideshow.IntervalSeconds == nil {
		seconds := defaultSlideInterval
		c.Widgets.Slideshow.IntervalSeconds = &seconds
	}
	if c.Widgets.Autocomplete.MinLength == 0 {
		c.Widgets.Autocomplete.MinLength = defaultMinLength
	}
}

func (c *Config) applyEnv() {
	c.Server.Addr = envOr("SEASONING_ADDR", c.Server.Addr)
	c.Server.Port = envOr("SEASONING_PORT", c.Server.Port)
	if c.Server.Port != "" && !strings.HasPrefix(c.Server.Port, ":") {
		c.Server.Port = ":" + c.Server.Port
	}
	c.Sessions.TTLSeconds = envIntOr("SEASONING_SESSION_TTL_SECONDS", c.Sessions.TTLSeconds)
	c.Fixtures.Ingredients = envOr("SEASONING_INGREDIENTS", c.Fixtures.Ingredients)
	c.Widgets.TypeToggle.Rules = envOr("SEASONING_TYPE_RULES", c.Widgets.TypeToggle.Rules)
	if val := strings.TrimSpace(os.Getenv("SEASONING_SLIDE_INTERVAL_SECONDS")); val != "" {
		if seconds, err := strconv.Atoi(val); err == nil && seconds >= 0 {
			c.Widgets.Slideshow.IntervalSeconds = &seconds
		}
	}
	c.Widgets.Autocomplete.BaseURL = envOr("SEASONING_AUTOCOMPLETE_BASE_URL", c.Widgets.Autocomplete.BaseURL)
}

func envOr(key, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil && parsed > 0 {
			return parsed
		}
	}
	return fallback
}

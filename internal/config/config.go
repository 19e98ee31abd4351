package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Source kinds supported by the events pipeline.
const (
	SourceAPI = "api"
	SourceICS = "ics"
)

// SourceConfig describes where today's events come from.
type SourceConfig struct {
	// Kind is either "api" (venue events API) or "ics" (calendar feed).
	Kind string `yaml:"kind" json:"kind"`
	// APIURL is the base URL of the venue events API, e.g. "https://api.example.com/v1".
	APIURL string `yaml:"api_url" json:"api_url"`
	// APIKey, if set, is sent as a bearer token.
	APIKey string `yaml:"api_key,omitempty" json:"-"`
	// ICSURL is the calendar feed used when Kind is "ics".
	ICSURL string `yaml:"ics_url" json:"ics_url"`
	// TimeoutSeconds bounds a single upstream request.
	TimeoutSeconds int `yaml:"timeout_seconds" json:"timeout_seconds"`
}

// CacheConfig controls how fetched events are reused between requests.
type CacheConfig struct {
	// TTLSeconds is how long a successful fetch is served from cache.
	TTLSeconds int `yaml:"ttl_seconds" json:"ttl_seconds"`
	// Dir holds the conditional-GET body cache for upstream responses.
	Dir string `yaml:"dir" json:"dir"`
	// RedisURL, if set, stores fetched events in Redis instead of process memory.
	RedisURL string `yaml:"redis_url,omitempty" json:"redis_url,omitempty"`
}

// DisplayConfig holds presentation knobs for the card grid.
type DisplayConfig struct {
	// LimitedThreshold is the remaining-capacity level at or below which an
	// event is flagged as having limited availability.
	LimitedThreshold int `yaml:"limited_threshold" json:"limited_threshold"`
	// Currency is the ISO code assumed when an offer omits one.
	Currency string `yaml:"currency" json:"currency"`
	// WhatsOnLink is the "view all upcoming events" target.
	WhatsOnLink string `yaml:"whats_on_link" json:"whats_on_link"`
}

// FallbackEntry is a static schedule line shown when the source has nothing for today.
type FallbackEntry struct {
	ID          string `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	Time        string `yaml:"time" json:"time"`
	Description string `yaml:"description" json:"description"`
	Link        string `yaml:"link" json:"link"`
}

// FallbackConfig overrides the built-in weekday schedule. Keys are lowercase
// English weekday names ("sunday" ... "saturday"). Days that are absent keep
// the built-in entries; a present key with an empty list means "nothing on".
type FallbackConfig struct {
	Days map[string][]FallbackEntry `yaml:"days,omitempty" json:"days,omitempty"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the Web UI/API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the venue's IANA timezone; "today" and the weekday
	// fallback are computed in this zone.
	Timezone string `yaml:"timezone" json:"timezone"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// RefreshCron is a cron-style schedule used to warm the events cache
	// and refresh the preview screenshot.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	Source   SourceConfig   `yaml:"source" json:"source"`
	Cache    CacheConfig    `yaml:"cache" json:"cache"`
	Display  DisplayConfig  `yaml:"display" json:"display"`
	Fallback FallbackConfig `yaml:"fallback,omitempty" json:"fallback,omitempty"`

	// CORSOrigins lists origins allowed to call /api/* from a browser.
	// An empty list allows any origin.
	CORSOrigins []string `yaml:"cors_origins" json:"cors_origins"`

	// PreviewPath is where the rendered page screenshot is written and served from.
	PreviewPath string `yaml:"preview_path" json:"preview_path"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:      "127.0.0.1:8080",
		Timezone:    "Europe/London",
		LogLevel:    "info",
		RefreshCron: "*/10 * * * *",
		Source: SourceConfig{
			Kind:           SourceAPI,
			APIURL:         "",
			TimeoutSeconds: 10,
		},
		Cache: CacheConfig{
			TTLSeconds: 300,
			Dir:        "/var/lib/eventstoday/cache",
		},
		Display: DisplayConfig{
			LimitedThreshold: 10,
			Currency:         "GBP",
			WhatsOnLink:      "/whats-on",
		},
		CORSOrigins: []string{},
		PreviewPath: "/var/lib/eventstoday/preview.png",
		BasicAuth:   nil,
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	def := DefaultConfig()

	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.Timezone == "" {
		c.Timezone = def.Timezone
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.RefreshCron == "" {
		c.RefreshCron = def.RefreshCron
	}

	c.Source.Kind = strings.ToLower(strings.TrimSpace(c.Source.Kind))
	switch c.Source.Kind {
	case SourceAPI, SourceICS:
		// ok
	default:
		// Unknown or empty; an ICS URL on its own is a strong enough hint.
		if c.Source.APIURL == "" && c.Source.ICSURL != "" {
			c.Source.Kind = SourceICS
		} else {
			c.Source.Kind = SourceAPI
		}
	}
	c.Source.APIURL = strings.TrimRight(c.Source.APIURL, "/")
	if c.Source.TimeoutSeconds <= 0 {
		c.Source.TimeoutSeconds = def.Source.TimeoutSeconds
	}

	if c.Cache.TTLSeconds <= 0 {
		c.Cache.TTLSeconds = def.Cache.TTLSeconds
	}
	if c.Cache.Dir == "" {
		c.Cache.Dir = def.Cache.Dir
	}

	if c.Display.LimitedThreshold <= 0 {
		c.Display.LimitedThreshold = def.Display.LimitedThreshold
	}
	if c.Display.Currency == "" {
		c.Display.Currency = def.Display.Currency
	}
	c.Display.Currency = strings.ToUpper(c.Display.Currency)
	if c.Display.WhatsOnLink == "" {
		c.Display.WhatsOnLink = def.Display.WhatsOnLink
	}

	if c.CORSOrigins == nil {
		c.CORSOrigins = []string{}
	}
	if c.PreviewPath == "" {
		c.PreviewPath = def.PreviewPath
	}
}

// SourceTimeout returns the upstream request timeout as a duration.
func (c *Config) SourceTimeout() time.Duration {
	return time.Duration(c.Source.TimeoutSeconds) * time.Second
}

// CacheTTL returns the events cache TTL as a duration.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLSeconds) * time.Second
}

// Location resolves Timezone, falling back to time.Local when it is unknown.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the given configuration to the specified path atomically
// (temp file in the same directory, then rename) with 0600 permissions.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".eventstoday-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}

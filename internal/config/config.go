// Package config provides configuration loading and defaults for badgecord.
//
// Configuration is loaded from a TOML file in the user's data directory.
// The package covers the presence poller, page discovery, the terminal badge,
// and logging, with defaults that work without any file on disk.
package config

//go:generate go run ../../cmd/genconfig

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/bmatcuk/doublestar/v4"
	"tools.zach/dev/badgecord/internal/atomicfile"
	"tools.zach/dev/badgecord/internal/migrate"
	"tools.zach/dev/badgecord/internal/paths"
)

// ///////////////////////////////////////////////
// Configuration Types
// ///////////////////////////////////////////////

// Config represents the top-level application configuration.
type Config struct {
	// Version is the config schema version, maintained by the loader.
	Version int `toml:"version"`
	// Presence holds the Lanyard polling and badge text settings.
	Presence PresenceConfig `toml:"presence"`
	// Pages holds static HTML page discovery settings for `badgecord render`.
	Pages PagesConfig `toml:"pages"`
	// UI holds terminal badge settings.
	UI UIConfig `toml:"ui"`
	// Log holds logging settings.
	Log LogConfig `toml:"log"`
}

// PresenceConfig holds the Lanyard polling and badge text settings.
type PresenceConfig struct {
	// UserID is the Discord user whose presence is shown.
	UserID string `toml:"user_id"`
	// APIBase is the Lanyard API origin.
	APIBase string `toml:"api_base"`
	// ProfileBase is the origin of the profile link copied on double-click.
	ProfileBase string `toml:"profile_base"`
	// PollIntervalSeconds is the delay between presence fetches.
	PollIntervalSeconds int `toml:"poll_interval_seconds"`
	// FetchTimeoutSeconds bounds a single fetch. Must be below the poll interval.
	FetchTimeoutSeconds int `toml:"fetch_timeout_seconds"`
	// HideDelayMS is how long the detail card lingers after the pointer leaves.
	HideDelayMS int `toml:"hide_delay_ms"`
	// AvatarSize is the requested avatar edge in pixels (a power of two).
	AvatarSize int `toml:"avatar_size"`
	// IdleText is the activity line shown when the user is doing nothing.
	IdleText string `toml:"idle_text"`
}

// PagesConfig holds static HTML page discovery settings.
type PagesConfig struct {
	// Root is the directory the include and exclude globs are matched in.
	Root string `toml:"root"`
	// Include lists doublestar globs of pages to render.
	Include []string `toml:"include"`
	// Exclude lists doublestar globs of pages to skip.
	Exclude []string `toml:"exclude"`
	// UserID overrides presence.user_id for pages that name no user themselves.
	UserID string `toml:"user_id,omitempty"`
}

// UIConfig holds terminal badge settings.
type UIConfig struct {
	// Theme selects the badge palette: "dark" or "light".
	Theme string `toml:"theme"`
	// DoubleClickMS is the longest gap between two clicks that counts as a double-click.
	DoubleClickMS int `toml:"double_click_ms"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level is the minimum log level (trace, debug, info, warn, error).
	Level string `toml:"level"`
	// MaxSizeMB is the maximum log file size in megabytes before rotation.
	MaxSizeMB int `toml:"max_size_mb"`
}

// ///////////////////////////////////////////////
// Default Configuration
// ///////////////////////////////////////////////

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Version: migrate.Config.CurrentVersion,
		Presence: PresenceConfig{
			UserID:              "",
			APIBase:             "https://api.lanyard.rest",
			ProfileBase:         "https://discord.com",
			PollIntervalSeconds: 30,
			FetchTimeoutSeconds: 7,
			HideDelayMS:         100,
			AvatarSize:          128,
			IdleText:            "currently doing nothing",
		},
		Pages: PagesConfig{
			Root:    ".",
			Include: []string{"**/*.html"},
			Exclude: []string{"**/node_modules/**", "**/.git/**"},
		},
		UI: UIConfig{
			Theme:         "dark",
			DoubleClickMS: 400,
		},
		Log: LogConfig{
			Level:     "info",
			MaxSizeMB: 10,
		},
	}
}

// ///////////////////////////////////////////////
// Example Configuration
// ///////////////////////////////////////////////

// ExampleConfig returns a Config suitable for generating config.default.toml.
// It differs from the defaults only by carrying the template placeholder as
// the user id, which the poller treats as unconfigured.
func ExampleConfig() *Config {
	cfg := DefaultConfig()
	cfg.Presence.UserID = "YOUR_DISCORD_USER_ID"
	return cfg
}

// ///////////////////////////////////////////////
// Loading and Saving
// ///////////////////////////////////////////////

// Load reads and parses the configuration file from dataDir/config.toml.
// If the file doesn't exist, returns DefaultConfig.
func Load(dataDir string) (*Config, error) {
	return LoadFile(filepath.Join(dataDir, paths.ConfigFile))
}

// LoadFile reads and validates the configuration at path. Keys missing from
// the file keep their default values. A file from an older schema is backed
// up to path+".bak", upgraded, and written back.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if _, err := toml.Decode(string(data), &struct{}{}); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	version := PeekVersion(data)
	shouldMigrate := migrate.Config.NeedsMigration(version, false)
	if shouldMigrate {
		if err := atomicfile.Write(path+".bak", data, 0o644); err != nil {
			slog.Warn("failed to write config backup", "error", err)
		}
		data, _, err = migrate.Config.Run(data, version)
		if err != nil {
			return nil, fmt.Errorf("migrate config: %w", err)
		}
	}
	if migrate.Config.HasDev() {
		data, err = migrate.Config.RunDev(data)
		if err != nil {
			return nil, fmt.Errorf("dev transform config: %w", err)
		}
	}

	cfg := DefaultConfig()
	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	for _, key := range md.Undecoded() {
		slog.Warn("unknown config key", "key", key.String())
	}
	cfg.Version = migrate.Config.CurrentVersion

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	if shouldMigrate {
		slog.Info("config migrated", "from", version, "to", cfg.Version)
		if err := atomicfile.Write(path, data, 0o644); err != nil {
			slog.Warn("failed to save migrated config", "error", err)
		}
	}
	return cfg, nil
}

// EnsureFile writes seed to path when no file exists there yet and reports
// whether it did.
func EnsureFile(path string, seed []byte) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("stat config: %w", err)
	}
	if err := atomicfile.Write(path, seed, 0o644); err != nil {
		return false, fmt.Errorf("write default config: %w", err)
	}
	return true, nil
}

// Save writes the config to disk as TOML using atomic file write.
func (c *Config) Save(path string) error {
	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return atomicfile.Write(path, buf.Bytes(), 0o644)
}

// ///////////////////////////////////////////////
// Validation
// ///////////////////////////////////////////////

// validLogLevels is the set of accepted log level strings.
var validLogLevels = map[string]bool{
	"trace": true, "debug": true, "info": true, "warn": true, "error": true,
}

// Validate checks that all configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	p := c.Presence

	if p.PollIntervalSeconds <= 0 {
		return fmt.Errorf("poll_interval_seconds must be > 0, got %d", p.PollIntervalSeconds)
	}
	if p.FetchTimeoutSeconds <= 0 {
		return fmt.Errorf("fetch_timeout_seconds must be > 0, got %d", p.FetchTimeoutSeconds)
	}
	if p.FetchTimeoutSeconds >= p.PollIntervalSeconds {
		return fmt.Errorf("fetch_timeout_seconds (%d) must be below poll_interval_seconds (%d)",
			p.FetchTimeoutSeconds, p.PollIntervalSeconds)
	}
	if p.HideDelayMS < 0 {
		return fmt.Errorf("hide_delay_ms must be >= 0, got %d", p.HideDelayMS)
	}
	if p.AvatarSize < 16 || p.AvatarSize > 4096 || p.AvatarSize&(p.AvatarSize-1) != 0 {
		return fmt.Errorf("avatar_size must be a power of two between 16 and 4096, got %d", p.AvatarSize)
	}
	if err := validateOrigin("api_base", p.APIBase); err != nil {
		return err
	}
	if err := validateOrigin("profile_base", p.ProfileBase); err != nil {
		return err
	}

	for _, pattern := range append(append([]string{}, c.Pages.Include...), c.Pages.Exclude...) {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("invalid pages glob %q", pattern)
		}
	}

	switch c.UI.Theme {
	case "dark", "light":
	default:
		return fmt.Errorf("invalid ui.theme %q: must be dark or light", c.UI.Theme)
	}
	if c.UI.DoubleClickMS <= 0 {
		return fmt.Errorf("double_click_ms must be > 0, got %d", c.UI.DoubleClickMS)
	}

	if !validLogLevels[strings.ToLower(c.Log.Level)] {
		return fmt.Errorf("invalid log.level %q: must be trace, debug, info, warn, or error", c.Log.Level)
	}
	if c.Log.MaxSizeMB <= 0 {
		return fmt.Errorf("max_size_mb must be > 0, got %d", c.Log.MaxSizeMB)
	}

	return nil
}

// validateOrigin accepts an http(s) URL, or a bare host that will be
// prefixed with https.
func validateOrigin(field, raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("%s must not be empty", field)
	}
	s := raw
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", field, raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid %s %q: scheme must be http or https", field, raw)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid %s %q: missing host", field, raw)
	}
	return nil
}

// ///////////////////////////////////////////////
// Durations
// ///////////////////////////////////////////////

// PollInterval returns presence.poll_interval_seconds as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Presence.PollIntervalSeconds) * time.Second
}

// FetchTimeout returns presence.fetch_timeout_seconds as a duration.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Presence.FetchTimeoutSeconds) * time.Second
}

// HideDelay returns presence.hide_delay_ms as a duration.
func (c *Config) HideDelay() time.Duration {
	return time.Duration(c.Presence.HideDelayMS) * time.Millisecond
}

// DoubleClick returns ui.double_click_ms as a duration.
func (c *Config) DoubleClick() time.Duration {
	return time.Duration(c.UI.DoubleClickMS) * time.Millisecond
}

// ///////////////////////////////////////////////
// Page Helpers
// ///////////////////////////////////////////////

// PageUserID returns the identity used for pages that carry none:
// pages.user_id when set, else presence.user_id.
func (c *Config) PageUserID() string {
	if c.Pages.UserID != "" {
		return c.Pages.UserID
	}
	return c.Presence.UserID
}

// IsExcluded reports whether the slash-separated page path rel matches any of
// the configured exclude patterns.
func (c *Config) IsExcluded(rel string) bool {
	for _, pattern := range c.Pages.Exclude {
		matched, err := doublestar.Match(pattern, rel)
		if err != nil {
			slog.Warn("invalid glob pattern", "pattern", pattern, "error", err)
			continue
		}
		if matched {
			return true
		}
	}
	return false
}

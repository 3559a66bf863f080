// Package config loads ocmon configuration and assembles the effective
// pricing table.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"ocmon/internal/pricing"
	"ocmon/internal/source"
)

// Config holds all ocmon configuration.
type Config struct {
	Paths     PathsConfig     `toml:"paths"`
	UI        UIConfig        `toml:"ui"`
	Models    ModelsConfig    `toml:"models"`
	Analytics AnalyticsConfig `toml:"analytics"`
}

// PathsConfig holds session store locations.
type PathsConfig struct {
	DatabaseFile string `toml:"database_file,omitempty"`
	MessagesDir  string `toml:"messages_dir,omitempty"`
	AgentsDir    string `toml:"agents_dir,omitempty"`
}

// UIConfig holds display preferences.
type UIConfig struct {
	LiveRefreshSeconds int `toml:"live_refresh_seconds"`
}

// ModelsConfig holds pricing source settings.
type ModelsConfig struct {
	ConfigFile            string `toml:"config_file,omitempty"`
	UserFile              string `toml:"user_file,omitempty"`
	RemoteFallback        bool   `toml:"remote_fallback"`
	RemoteURL             string `toml:"remote_url"`
	RemoteTimeoutSeconds  int    `toml:"remote_timeout_seconds"`
	RemoteCacheTTLHours   int    `toml:"remote_cache_ttl_hours"`
	RemoteCachePath       string `toml:"remote_cache_path,omitempty"`
	AllowStaleCacheOnErr  bool   `toml:"allow_stale_cache_on_error"`
}

// AnalyticsConfig holds reporting preferences.
type AnalyticsConfig struct {
	RecentSessionsLimit int `toml:"recent_sessions_limit"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Paths: PathsConfig{
			DatabaseFile: source.DefaultDatabasePath(),
			MessagesDir:  source.DefaultMessagesPath(),
			AgentsDir:    defaultAgentsDir(),
		},
		UI: UIConfig{
			LiveRefreshSeconds: 5,
		},
		Models: ModelsConfig{
			UserFile:             filepath.Join(ConfigDir(), "models.json"),
			RemoteFallback:       false,
			RemoteURL:            "https://models.dev/api.json",
			RemoteTimeoutSeconds: 8,
			RemoteCacheTTLHours:  24,
			RemoteCachePath:      defaultCachePath(),
			AllowStaleCacheOnErr: true,
		},
		Analytics: AnalyticsConfig{
			RecentSessionsLimit: 50,
		},
	}
}

// ConfigDir returns the XDG-compliant config directory.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "ocmon")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "ocmon")
}

// ConfigPath returns the full path to the config file.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

func defaultCachePath() string {
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return filepath.Join(xdg, "ocmon", "models_dev_api.json")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".cache", "ocmon", "models_dev_api.json")
}

func defaultAgentsDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "opencode", "agent")
}

// Load reads the config file at path (ConfigPath() when empty), returning
// defaults if it doesn't exist. A file that exists but fails to parse is a
// hard error: a broken config is a user mistake, not a data-quality issue.
func Load(path string) (Config, error) {
	if path == "" {
		path = ConfigPath()
	}
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the config to its standard location.
func Save(cfg Config) error {
	dir := ConfigDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	f, err := os.OpenFile(ConfigPath(), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("creating config file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return toml.NewEncoder(f).Encode(cfg)
}

// Exists reports whether a config file exists on disk.
func Exists() bool {
	_, err := os.Stat(ConfigPath())
	return err == nil
}

// RefreshInterval is the live poll interval from config.
func (c Config) RefreshInterval() time.Duration {
	secs := c.UI.LiveRefreshSeconds
	if secs <= 0 {
		secs = 5
	}
	return time.Duration(secs) * time.Second
}

// LoadPricing assembles the effective pricing table: the bundled defaults
// (or the project models file when one exists) as the local layer, the user
// override file on top, and the remote catalog underneath when enabled.
// noRemote disables the remote path regardless of config.
func (c Config) LoadPricing(noRemote bool) pricing.Table {
	local := pricing.Builtin()
	if c.Models.ConfigFile != "" {
		if fromFile, err := pricing.LoadOverlayFile(c.Models.ConfigFile); err == nil && len(fromFile) > 0 {
			local = fromFile
		}
	}

	user := pricing.RawTable{}
	if c.Models.UserFile != "" {
		if fromFile, err := pricing.LoadOverlayFile(c.Models.UserFile); err == nil {
			user = fromFile
		}
	}

	remote := pricing.RawTable{}
	if !noRemote && c.Models.RemoteFallback {
		payload := pricing.GetRemotePayload(pricing.RemoteOptions{
			URL:        c.Models.RemoteURL,
			Timeout:    time.Duration(c.Models.RemoteTimeoutSeconds) * time.Second,
			CachePath:  c.Models.RemoteCachePath,
			TTL:        time.Duration(c.Models.RemoteCacheTTLHours) * time.Hour,
			AllowStale: c.Models.AllowStaleCacheOnErr,
		})
		if payload != nil {
			remote = pricing.MapModelsDev(payload)
		}
	}

	return pricing.Validate(pricing.Merge(local, user, remote))
}

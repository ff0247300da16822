package model

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// envPrefix is the prefix for environment overrides, e.g.
// PORTAL_INBOX_SERVER_BASE_URL.
const envPrefix = "PORTAL_INBOX"

// ServerConfig describes where the portal broker lives.
type ServerConfig struct {
	// BaseURL is the root URL of the portal API (e.g., https://portal.example.edu).
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// WSPath is the path of the realtime endpoint relative to BaseURL.
	WSPath string `mapstructure:"ws_path" yaml:"ws_path"`

	// RequestTimeoutSec bounds each REST call.
	RequestTimeoutSec int `mapstructure:"request_timeout_sec" yaml:"request_timeout_sec"`
}

// ReconnectConfig controls the reconnection supervisor's backoff.
type ReconnectConfig struct {
	InitialIntervalMS int `mapstructure:"initial_interval_ms" yaml:"initial_interval_ms"`
	MaxIntervalSec    int `mapstructure:"max_interval_sec" yaml:"max_interval_sec"`
	MaxAttempts       int `mapstructure:"max_attempts" yaml:"max_attempts"`
}

// ChannelConfig holds transport-level settings.
type ChannelConfig struct {
	PingIntervalSec int `mapstructure:"ping_interval_sec" yaml:"ping_interval_sec"`
}

// InboxConfig holds inbox paging preferences.
type InboxConfig struct {
	PageSize int `mapstructure:"page_size" yaml:"page_size"`
}

// CacheConfig locates the local notification cache.
type CacheConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// DisplayConfig holds UI/rendering preferences.
type DisplayConfig struct {
	Theme        string `mapstructure:"theme" yaml:"theme"`
	AlertSeconds int    `mapstructure:"alert_seconds" yaml:"alert_seconds"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Reconnect ReconnectConfig `mapstructure:"reconnect" yaml:"reconnect"`
	Channel   ChannelConfig   `mapstructure:"channel" yaml:"channel"`
	Inbox     InboxConfig     `mapstructure:"inbox" yaml:"inbox"`
	Cache     CacheConfig     `mapstructure:"cache" yaml:"cache"`
	Display   DisplayConfig   `mapstructure:"display" yaml:"display"`
}

// WebsocketURL derives the realtime endpoint from the base URL, switching
// http(s) to ws(s).
func (c ServerConfig) WebsocketURL() string {
	base := strings.TrimRight(c.BaseURL, "/")
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}

	path := c.WSPath
	if path == "" {
		path = "/ws"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path
}

// RequestTimeout returns the REST timeout as a duration.
func (c ServerConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSec) * time.Second
}

// InitialInterval returns the first retry delay.
func (c ReconnectConfig) InitialInterval() time.Duration {
	return time.Duration(c.InitialIntervalMS) * time.Millisecond
}

// MaxInterval returns the backoff cap.
func (c ReconnectConfig) MaxInterval() time.Duration {
	return time.Duration(c.MaxIntervalSec) * time.Second
}

// PingInterval returns the keepalive period.
func (c ChannelConfig) PingInterval() time.Duration {
	return time.Duration(c.PingIntervalSec) * time.Second
}

// AlertDuration returns how long a toast stays on screen.
func (c DisplayConfig) AlertDuration() time.Duration {
	return time.Duration(c.AlertSeconds) * time.Second
}

// configDir returns ~/.config/portal-inbox, or "." when the home directory
// cannot be resolved.
func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "portal-inbox")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/portal-inbox/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

// DefaultCachePath returns the default location of the SQLite cache.
func DefaultCachePath() string {
	return filepath.Join(configDir(), "cache.db")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			BaseURL:           "http://localhost:8080",
			WSPath:            "/ws",
			RequestTimeoutSec: 30,
		},
		Reconnect: ReconnectConfig{
			InitialIntervalMS: 5000,
			MaxIntervalSec:    60,
			MaxAttempts:       10,
		},
		Channel: ChannelConfig{
			PingIntervalSec: 25,
		},
		Inbox: InboxConfig{
			PageSize: 20,
		},
		Cache: CacheConfig{
			Path: DefaultCachePath(),
		},
		Display: DisplayConfig{
			Theme:        "default",
			AlertSeconds: 4,
		},
	}
}

// setDefaults registers every default with v so that environment
// overrides resolve even when the key is absent from the file.
func setDefaults(v *viper.Viper) {
	d := defaultAppConfig()
	v.SetDefault("server.base_url", d.Server.BaseURL)
	v.SetDefault("server.ws_path", d.Server.WSPath)
	v.SetDefault("server.request_timeout_sec", d.Server.RequestTimeoutSec)
	v.SetDefault("reconnect.initial_interval_ms", d.Reconnect.InitialIntervalMS)
	v.SetDefault("reconnect.max_interval_sec", d.Reconnect.MaxIntervalSec)
	v.SetDefault("reconnect.max_attempts", d.Reconnect.MaxAttempts)
	v.SetDefault("channel.ping_interval_sec", d.Channel.PingIntervalSec)
	v.SetDefault("inbox.page_size", d.Inbox.PageSize)
	v.SetDefault("cache.path", d.Cache.Path)
	v.SetDefault("display.theme", d.Display.Theme)
	v.SetDefault("display.alert_seconds", d.Display.AlertSeconds)
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// A .env file in the working directory is loaded first when present, and
// PORTAL_INBOX_* environment variables override file values. If the file
// does not exist, defaults (plus environment overrides) are returned.
func LoadConfig(path string) (*AppConfig, error) {
	// A missing .env is the normal case.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); !ok {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		}
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	normalize(cfg)
	return cfg, nil
}

// normalize replaces out-of-range values with defaults.
func normalize(cfg *AppConfig) {
	d := defaultAppConfig()
	if cfg.Server.RequestTimeoutSec <= 0 {
		cfg.Server.RequestTimeoutSec = d.Server.RequestTimeoutSec
	}
	if cfg.Reconnect.InitialIntervalMS <= 0 {
		cfg.Reconnect.InitialIntervalMS = d.Reconnect.InitialIntervalMS
	}
	if cfg.Reconnect.MaxIntervalSec <= 0 {
		cfg.Reconnect.MaxIntervalSec = d.Reconnect.MaxIntervalSec
	}
	if cfg.Reconnect.MaxAttempts <= 0 {
		cfg.Reconnect.MaxAttempts = d.Reconnect.MaxAttempts
	}
	if cfg.Channel.PingIntervalSec <= 0 {
		cfg.Channel.PingIntervalSec = d.Channel.PingIntervalSec
	}
	if cfg.Inbox.PageSize <= 0 {
		cfg.Inbox.PageSize = d.Inbox.PageSize
	}
	if cfg.Inbox.PageSize > 100 {
		cfg.Inbox.PageSize = 100
	}
	if cfg.Cache.Path == "" {
		cfg.Cache.Path = d.Cache.Path
	}
	if cfg.Display.AlertSeconds <= 0 {
		cfg.Display.AlertSeconds = d.Display.AlertSeconds
	}
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("server", cfg.Server)
	v.Set("reconnect", cfg.Reconnect)
	v.Set("channel", cfg.Channel)
	v.Set("inbox", cfg.Inbox)
	v.Set("cache", cfg.Cache)
	v.Set("display", cfg.Display)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}

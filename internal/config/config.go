package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration, loaded from a JSON file
// (hot-reloaded on change) with credentials optionally supplied via
// environment variables / a .env file instead of being written to disk.
type Config struct {
	QBittorrent QBittorrentConfig `mapstructure:"qbittorrent"`
	RateControl RateControlConfig `mapstructure:"rate_control"`
	Persistence PersistenceConfig `mapstructure:"persistence"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Notify      NotifyConfig      `mapstructure:"notify"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Report      ReportConfig      `mapstructure:"report"`
	Proxy       ProxyConfig       `mapstructure:"proxy"`
}

// QBittorrentConfig holds qBittorrent WebUI connection settings.
type QBittorrentConfig struct {
	URL            string        `mapstructure:"url"`
	Username       string        `mapstructure:"username"`
	Password       string        `mapstructure:"password"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	APIRateLimit   int           `mapstructure:"api_rate_limit"`
}

// RateControlConfig holds the tuning for the upload/download rate
// control pipeline — the Go-side equivalent of the original daemon's
// top-level Config dataclass.
type RateControlConfig struct {
	TargetSpeedKiB          int64   `mapstructure:"target_speed_kib"`
	SafetyMargin            float64 `mapstructure:"safety_margin"`
	MaxPhysicalSpeedKiB     int64   `mapstructure:"max_physical_speed_kib"`
	TargetTrackerKeyword    string  `mapstructure:"target_tracker_keyword"`
	ExcludeTrackerKeyword   string  `mapstructure:"exclude_tracker_keyword"`
	PeerListEnabled         bool    `mapstructure:"peer_list_enabled"`
	EnableDownloadLimit     bool    `mapstructure:"enable_dl_limit"`
	EnableReannounceOptim   bool    `mapstructure:"enable_reannounce_opt"`
	TickInterval            time.Duration `mapstructure:"tick_interval"`
}

// TargetBytes returns the effective per-torrent upload target in
// bytes/s, after applying the safety margin.
func (r RateControlConfig) TargetBytes() int64 {
	b := int64(float64(r.TargetSpeedKiB) * 1024 * r.SafetyMargin)
	if b < 1 {
		return 1
	}
	return b
}

// MaxPhysicalBytes returns the absolute upload ceiling in bytes/s, or 0
// if unset (no ceiling beyond whatever the controller computes).
func (r RateControlConfig) MaxPhysicalBytes() int64 {
	return r.MaxPhysicalSpeedKiB * 1024
}

// PersistenceConfig configures the bbolt-backed state store.
type PersistenceConfig struct {
	Path          string        `mapstructure:"path"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
}

// CacheConfig holds caching configuration for transient qBittorrent API
// reads (auth session, torrent properties).
type CacheConfig struct {
	AuthSessionTTL  time.Duration `mapstructure:"auth_session_ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	MaxItems        int           `mapstructure:"max_items"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
	ToStdout   bool   `mapstructure:"to_stdout"`
	JSON       bool   `mapstructure:"json"`
}

// NotifyConfig configures the Discord alert channel for
// persistent precision-tracker clamps and reannounce events.
type NotifyConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	DiscordToken   string `mapstructure:"discord_token"`
	DiscordChannel string `mapstructure:"discord_channel"`
}

// MetricsConfig configures the optional Prometheus /metrics endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// ReportConfig configures the per-cycle PDF/PNG usage report. It
// mirrors the original daemon's report_sent bookkeeping: at most one
// report is written per torrent per announce cycle.
type ReportConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	OutputDir string `mapstructure:"output_dir"`
}

// ProxyConfig holds proxy configuration (optional), applied to the
// qBittorrent HTTP client.
type ProxyConfig struct {
	URL     string `mapstructure:"url"`
	Enabled bool   `mapstructure:"enabled"`
}

// Manager owns the live Config, keeping it in sync with the backing
// file via viper + fsnotify. An invalid reload is discarded without
// being logged — the previous good config keeps running, matching the original
// daemon's Config.load returning (None, err) without tearing down the
// process.
type Manager struct {
	mu       sync.RWMutex
	v        *viper.Viper
	current  *Config
	onChange []func(*Config)
}

// NewManager loads configuration from path and starts watching it for
// changes. Secrets may additionally come from a .env file / the
// process environment (QBITTORRENT_USERNAME, QBITTORRENT_PASSWORD,
// DISCORD_TOKEN), read once at startup and layered over the file.
func NewManager(path string) (*Manager, error) {
	if err := godotenv.Load(); err != nil {
		// No .env file is a normal deployment, not an error.
		_ = err
	}

	v := viper.New()
	v.SetConfigFile(path)
	applyDefaults(v)
	_ = v.BindEnv("qbittorrent.username", "QBITTORRENT_USERNAME")
	_ = v.BindEnv("qbittorrent.password", "QBITTORRENT_PASSWORD")
	_ = v.BindEnv("notify.discord_token", "DISCORD_TOKEN")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %q: %w", path, err)
	}

	m := &Manager{v: v}

	cfg, err := m.decode()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	m.current = cfg

	v.OnConfigChange(func(e fsnotify.Event) {
		m.reload()
	})
	v.WatchConfig()

	return m, nil
}

func applyDefaults(v *viper.Viper) {
	v.SetDefault("qbittorrent.request_timeout", 30*time.Second)
	v.SetDefault("qbittorrent.api_rate_limit", 20)
	v.SetDefault("rate_control.safety_margin", 0.98)
	v.SetDefault("rate_control.peer_list_enabled", true)
	v.SetDefault("rate_control.enable_dl_limit", true)
	v.SetDefault("rate_control.enable_reannounce_opt", true)
	v.SetDefault("rate_control.tick_interval", time.Second)
	v.SetDefault("persistence.path", "ratemind.db")
	v.SetDefault("persistence.flush_interval", 180*time.Second)
	v.SetDefault("cache.auth_session_ttl", time.Hour)
	v.SetDefault("cache.cleanup_interval", 10*time.Minute)
	v.SetDefault("cache.max_items", 1000)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file", "ratemind.log")
	v.SetDefault("logging.max_size", 100)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age", 30)
	v.SetDefault("logging.compress", true)
	v.SetDefault("logging.to_stdout", true)
	v.SetDefault("metrics.addr", ":9090")
}

func (m *Manager) decode() (*Config, error) {
	cfg := &Config{}
	if err := m.v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (m *Manager) reload() {
	if err := m.v.ReadInConfig(); err != nil {
		return
	}
	cfg, err := m.decode()
	if err != nil {
		// Keep serving the last-good config. The error is dropped: this
		// package does not import the logging package, and no callback
		// is invoked for an invalid reload.
		return
	}
	m.mu.Lock()
	m.current = cfg
	m.mu.Unlock()

	for _, fn := range m.onChange {
		fn(cfg)
	}
}

// Current returns the most recently loaded, validated configuration.
func (m *Manager) Current() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// OnChange registers a callback invoked after every successful reload.
func (m *Manager) OnChange(fn func(*Config)) {
	m.onChange = append(m.onChange, fn)
}

// Validate checks that all required configuration is present and
// internally consistent.
func (c *Config) Validate() error {
	if c.QBittorrent.URL == "" {
		return fmt.Errorf("qbittorrent.url is required")
	}
	if c.QBittorrent.Username == "" {
		return fmt.Errorf("qbittorrent.username is required")
	}
	if c.RateControl.TargetSpeedKiB <= 0 {
		return fmt.Errorf("rate_control.target_speed_kib must be > 0")
	}
	if c.RateControl.SafetyMargin <= 0 || c.RateControl.SafetyMargin > 1 {
		return fmt.Errorf("rate_control.safety_margin must be in (0, 1], got %v", c.RateControl.SafetyMargin)
	}

	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	return nil
}

// MatchesTracker reports whether tracker (a tracker announce URL)
// passes this config's include/exclude keyword filters.
func (c *Config) MatchesTracker(tracker string) bool {
	if c.RateControl.ExcludeTrackerKeyword != "" && strings.Contains(tracker, c.RateControl.ExcludeTrackerKeyword) {
		return false
	}
	if c.RateControl.TargetTrackerKeyword != "" {
		return strings.Contains(tracker, c.RateControl.TargetTrackerKeyword)
	}
	return true
}

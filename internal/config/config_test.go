package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTestConfig(t *testing.T, dir string, body string) string {
	t.Helper()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

const validConfigJSON = `{
  "qbittorrent": {
    "url": "http://localhost:8080",
    "username": "admin",
    "password": "adminadmin"
  },
  "rate_control": {
    "target_speed_kib": 500,
    "safety_margin": 0.95
  },
  "logging": {
    "level": "info"
  }
}`

func TestNewManagerLoadsAndValidatesConfig(t *testing.T) {
	dir := t.TempDir()
	path := writeTestConfig(t, dir, validConfigJSON)

	m, err := NewManager(path)
	if err != nil {
		t.Fatalf("NewManager returned error: %v", err)
	}

	cfg := m.Current()
	if cfg == nil {
		t.Fatal("Current() returned nil config")
	}
	if cfg.QBittorrent.URL != "http://localhost:8080" {
		t.Errorf("expected qbittorrent.url to be loaded, got %q", cfg.QBittorrent.URL)
	}
	if cfg.RateControl.TargetSpeedKiB != 500 {
		t.Errorf("expected target_speed_kib=500, got %d", cfg.RateControl.TargetSpeedKiB)
	}

	// Defaults should be applied for unset fields.
	if cfg.QBittorrent.RequestTimeout != 30*time.Second {
		t.Errorf("expected default request_timeout=30s, got %v", cfg.QBittorrent.RequestTimeout)
	}
	if cfg.Cache.MaxItems != 1000 {
		t.Errorf("expected default cache.max_items=1000, got %d", cfg.Cache.MaxItems)
	}
}

func TestNewManagerRejectsMissingFile(t *testing.T) {
	dir := t.TempDir()
	if _, err := NewManager(filepath.Join(dir, "does-not-exist.json")); err == nil {
		t.Fatal("expected error for missing config file, got nil")
	}
}

func TestNewManagerRejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	path := writeTestConfig(t, dir, `{"qbittorrent": {"url": "http://localhost:8080"}}`)

	if _, err := NewManager(path); err == nil {
		t.Fatal("expected validation error for missing username/target speed, got nil")
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			QBittorrent: QBittorrentConfig{URL: "http://localhost:8080", Username: "admin"},
			RateControl: RateControlConfig{TargetSpeedKiB: 500, SafetyMargin: 0.9},
			Logging:     LoggingConfig{Level: "info"},
		}
	}

	if err := base().Validate(); err != nil {
		t.Fatalf("expected valid config to pass, got %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing url", func(c *Config) { c.QBittorrent.URL = "" }},
		{"missing username", func(c *Config) { c.QBittorrent.Username = "" }},
		{"zero target speed", func(c *Config) { c.RateControl.TargetSpeedKiB = 0 }},
		{"safety margin too high", func(c *Config) { c.RateControl.SafetyMargin = 1.5 }},
		{"safety margin zero", func(c *Config) { c.RateControl.SafetyMargin = 0 }},
		{"invalid log level", func(c *Config) { c.Logging.Level = "verbose" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error for case %q, got nil", tc.name)
			}
		})
	}
}

func TestTargetBytes(t *testing.T) {
	r := RateControlConfig{TargetSpeedKiB: 1000, SafetyMargin: 0.9}
	got := r.TargetBytes()
	want := int64(1000 * 1024 * 0.9)
	if got != want {
		t.Errorf("TargetBytes() = %d, want %d", got, want)
	}

	// Never returns zero or negative even for tiny inputs.
	tiny := RateControlConfig{TargetSpeedKiB: 0, SafetyMargin: 0.01}
	if got := tiny.TargetBytes(); got < 1 {
		t.Errorf("TargetBytes() = %d, want >= 1", got)
	}
}

func TestMaxPhysicalBytes(t *testing.T) {
	r := RateControlConfig{MaxPhysicalSpeedKiB: 2048}
	if got, want := r.MaxPhysicalBytes(), int64(2048*1024); got != want {
		t.Errorf("MaxPhysicalBytes() = %d, want %d", got, want)
	}

	unset := RateControlConfig{}
	if got := unset.MaxPhysicalBytes(); got != 0 {
		t.Errorf("MaxPhysicalBytes() with unset ceiling = %d, want 0", got)
	}
}

func TestMatchesTracker(t *testing.T) {
	cases := []struct {
		name    string
		cfg     Config
		tracker string
		want    bool
	}{
		{
			name:    "no filters matches everything",
			cfg:     Config{},
			tracker: "https://tracker.example.com/announce",
			want:    true,
		},
		{
			name:    "include filter matches",
			cfg:     Config{RateControl: RateControlConfig{TargetTrackerKeyword: "example"}},
			tracker: "https://tracker.example.com/announce",
			want:    true,
		},
		{
			name:    "include filter excludes non-matching",
			cfg:     Config{RateControl: RateControlConfig{TargetTrackerKeyword: "example"}},
			tracker: "https://tracker.other.org/announce",
			want:    false,
		},
		{
			name:    "exclude filter wins over include",
			cfg:     Config{RateControl: RateControlConfig{TargetTrackerKeyword: "tracker", ExcludeTrackerKeyword: "example"}},
			tracker: "https://tracker.example.com/announce",
			want:    false,
		},
		{
			name:    "exclude filter alone",
			cfg:     Config{RateControl: RateControlConfig{ExcludeTrackerKeyword: "blocked"}},
			tracker: "https://blocked.tracker.org/announce",
			want:    false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.cfg.MatchesTracker(tc.tracker); got != tc.want {
				t.Errorf("MatchesTracker(%q) = %v, want %v", tc.tracker, got, tc.want)
			}
		})
	}
}

func TestOnChangeCallback(t *testing.T) {
	dir := t.TempDir()
	path := writeTestConfig(t, dir, validConfigJSON)

	m, err := NewManager(path)
	if err != nil {
		t.Fatalf("NewManager returned error: %v", err)
	}

	called := false
	m.OnChange(func(cfg *Config) {
		called = true
	})

	// reload() is exercised indirectly via the fsnotify watch in
	// production; here we call the unexported path directly since
	// writing a file and waiting for fsnotify is flaky in CI sandboxes.
	writeTestConfig(t, dir, validConfigJSON)
	m.reload()

	if !called {
		t.Error("expected OnChange callback to fire after reload")
	}
}

func TestReloadKeepsLastGoodConfigOnInvalidChange(t *testing.T) {
	dir := t.TempDir()
	path := writeTestConfig(t, dir, validConfigJSON)

	m, err := NewManager(path)
	if err != nil {
		t.Fatalf("NewManager returned error: %v", err)
	}
	original := m.Current()

	writeTestConfig(t, dir, `{"qbittorrent": {"url": ""}}`)
	m.reload()

	if m.Current() != original {
		t.Error("expected Current() to keep serving the last-good config after an invalid reload")
	}
}

package daemon

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	t.Setenv("VITALS_HOME", "/tmp/vitals-home")
	cfg := DefaultConfig()

	if cfg.API.Host != "127.0.0.1" {
		t.Errorf("API.Host = %q, want %q", cfg.API.Host, "127.0.0.1")
	}
	if cfg.API.Port != 8477 {
		t.Errorf("API.Port = %d, want %d", cfg.API.Port, 8477)
	}
	if cfg.Store.Backend != StoreSQLite || cfg.Store.Dir != "/tmp/vitals-home" {
		t.Errorf("Store = %+v", cfg.Store)
	}
	if cfg.Scheduler.HealingThreshold != 0.8 || cfg.Scheduler.MaxRetries != 3 {
		t.Errorf("Scheduler = %+v", cfg.Scheduler)
	}
	if cfg.Logging.File != filepath.Join("/tmp/vitals-home", "vitals.log") {
		t.Errorf("Logging.File = %q", cfg.Logging.File)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"backend", func(c *Config) { c.Store.Backend = "postgres" }, "unknown store backend"},
		{"port", func(c *Config) { c.API.Port = 0 }, "invalid api port"},
		{"threshold", func(c *Config) { c.Scheduler.HealingThreshold = 2 }, "healing_threshold"},
		{"duration", func(c *Config) { c.Scheduler.CheckInterval = "often" }, "scheduler.check_interval"},
		{"timeout", func(c *Config) { c.Platform.Timeout = "10" }, "platform.timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.want)
			}
		})
	}
}

func TestLoadConfig_Missing(t *testing.T) {
	t.Setenv("VITALS_HOME", t.TempDir())
	t.Setenv("VITALS_PLATFORM_PASSWORD", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if cfg.API.Port != DefaultConfig().API.Port {
		t.Errorf("Port = %d, want default", cfg.API.Port)
	}
}

func TestLoadConfig_File(t *testing.T) {
	home := t.TempDir()
	t.Setenv("VITALS_HOME", home)
	t.Setenv("VITALS_PLATFORM_PASSWORD", "from-env")

	body := `
[node]
system_name = "payments"

[api]
port = 9000

[scheduler]
check_interval = "1m"
autostart = true

[platform]
base_url = "https://acme.example.com"
username = "svc"
password = "from-file"

[store]
backend = "memory"
`
	if err := os.WriteFile(filepath.Join(home, "config.toml"), []byte(body), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if cfg.Node.SystemName != "payments" || cfg.API.Port != 9000 {
		t.Errorf("node/api = %q/%d", cfg.Node.SystemName, cfg.API.Port)
	}
	if !cfg.Scheduler.Autostart || cfg.Scheduler.CheckInterval != "1m" {
		t.Errorf("scheduler = %+v", cfg.Scheduler)
	}
	if cfg.Scheduler.MaxRetries != 3 {
		t.Errorf("unset field lost its default: MaxRetries = %d", cfg.Scheduler.MaxRetries)
	}
	if cfg.Platform.Password != "from-env" {
		t.Errorf("Password = %q, want env override", cfg.Platform.Password)
	}
	if cfg.Store.Backend != StoreMemory {
		t.Errorf("Backend = %q", cfg.Store.Backend)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	home := t.TempDir()
	t.Setenv("VITALS_HOME", home)

	os.WriteFile(filepath.Join(home, "config.toml"), []byte("[store]\nbackend = \"tape\"\n"), 0600)
	if _, err := LoadConfig(); err == nil || !strings.Contains(err.Error(), "invalid config") {
		t.Errorf("LoadConfig() = %v, want invalid config", err)
	}

	os.WriteFile(filepath.Join(home, "config.toml"), []byte("[store\n"), 0600)
	if _, err := LoadConfig(); err == nil || !strings.Contains(err.Error(), "parse config") {
		t.Errorf("LoadConfig() = %v, want parse error", err)
	}
}

func TestSaveConfig_RoundTripWithoutPassword(t *testing.T) {
	t.Setenv("VITALS_HOME", t.TempDir())
	t.Setenv("VITALS_PLATFORM_PASSWORD", "")

	cfg := DefaultConfig()
	cfg.Node.SystemName = "billing"
	cfg.Platform.Password = "secret"
	if err := SaveConfig(cfg); err != nil {
		t.Fatalf("SaveConfig() error: %v", err)
	}

	raw, err := os.ReadFile(ConfigPath())
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(raw), "secret") {
		t.Error("platform password written to disk")
	}

	got, err := LoadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if got.Node.SystemName != "billing" {
		t.Errorf("SystemName = %q", got.Node.SystemName)
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		input string
		want  time.Duration
	}{
		{"5m", 5 * time.Minute},
		{"30s", 30 * time.Second},
		{"", time.Hour},
		{"garbage", time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseDuration(tt.input, time.Hour); got != tt.want {
				t.Errorf("parseDuration(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

// Package daemon manages the Vitals daemon lifecycle and configuration.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds all daemon configuration.
type Config struct {
	Node      NodeConfig      `toml:"node"`
	API       APIConfig       `toml:"api"`
	Engine    EngineConfig    `toml:"engine"`
	Scheduler SchedulerConfig `toml:"scheduler"`
	Platform  PlatformConfig  `toml:"platform"`
	Store     StoreConfig     `toml:"store"`
	Logging   LoggingConfig   `toml:"logging"`
	Telemetry TelemetryConfig `toml:"telemetry"`
}

// NodeConfig identifies the monitored system.
type NodeConfig struct {
	SystemName string `toml:"system_name"`
}

// APIConfig controls the HTTP API server.
type APIConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// EngineConfig sets health-check defaults for requests that omit them.
type EngineConfig struct {
	AutoHeal   bool `toml:"auto_heal"`
	Predictive bool `toml:"predictive"`
	Learning   bool `toml:"learning"`
}

// SchedulerConfig controls autonomous healing.
type SchedulerConfig struct {
	Autostart        bool    `toml:"autostart"`
	CheckInterval    string  `toml:"check_interval"`
	MonitorInterval  string  `toml:"monitor_interval"`
	RetryInterval    string  `toml:"retry_interval"`
	GracePeriod      string  `toml:"grace_period"`
	HealingThreshold float64 `toml:"healing_threshold"`
	MaxRetries       int     `toml:"max_retries"`
	Preventive       bool    `toml:"preventive"`
}

// PlatformConfig points at the monitored platform's record API. An empty
// base URL runs Vitals against the local host only.
type PlatformConfig struct {
	BaseURL   string  `toml:"base_url"`
	Username  string  `toml:"username"`
	Password  string  `toml:"password"` // VITALS_PLATFORM_PASSWORD overrides
	RateLimit float64 `toml:"rate_limit"`
	Burst     int     `toml:"burst"`
	Timeout   string  `toml:"timeout"`
	DryRun    bool    `toml:"dry_run"` // log remediation steps instead of filing them
}

// StoreConfig selects the memory store backend.
type StoreConfig struct {
	Backend       string `toml:"backend"` // sqlite, redis, badger, memory
	Dir           string `toml:"dir"`     // sqlite directory
	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`
	BadgerDir     string `toml:"badger_dir"`
	PurgeInterval string `toml:"purge_interval"`
	GCInterval    string `toml:"gc_interval"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level      string `toml:"level"`
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxFiles   int    `toml:"max_files"`
	MaxAgeDays int    `toml:"max_age_days"`
	Compress   bool   `toml:"compress"`
}

// TelemetryConfig controls metrics export.
type TelemetryConfig struct {
	Prometheus bool `toml:"prometheus"`
}

// Store backends.
const (
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
	StoreBadger = "badger"
	StoreMemory = "memory"
)

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() Config {
	homeDir := vitalsHome()
	return Config{
		Node: NodeConfig{
			SystemName: "platform",
		},
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8477,
		},
		Engine: EngineConfig{
			AutoHeal:   false,
			Predictive: true,
			Learning:   true,
		},
		Scheduler: SchedulerConfig{
			CheckInterval:    "5m",
			MonitorInterval:  "1m",
			RetryInterval:    "30s",
			GracePeriod:      "30s",
			HealingThreshold: 0.8,
			MaxRetries:       3,
			Preventive:       true,
		},
		Platform: PlatformConfig{
			RateLimit: 10,
			Burst:     20,
			Timeout:   "30s",
		},
		Store: StoreConfig{
			Backend:       StoreSQLite,
			Dir:           homeDir,
			RedisAddr:     "127.0.0.1:6379",
			BadgerDir:     filepath.Join(homeDir, "badger"),
			PurgeInterval: "1h",
			GCInterval:    "10m",
		},
		Logging: LoggingConfig{
			Level:      "info",
			File:       filepath.Join(homeDir, "vitals.log"),
			MaxSizeMB:  50,
			MaxFiles:   5,
			MaxAgeDays: 30,
			Compress:   true,
		},
		Telemetry: TelemetryConfig{
			Prometheus: true,
		},
	}
}

// Validate rejects configurations the daemon cannot start with.
func (c Config) Validate() error {
	switch c.Store.Backend {
	case StoreSQLite, StoreRedis, StoreBadger, StoreMemory:
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.API.Port <= 0 || c.API.Port > 65535 {
		return fmt.Errorf("invalid api port %d", c.API.Port)
	}
	if c.Scheduler.HealingThreshold < 0 || c.Scheduler.HealingThreshold > 1 {
		return fmt.Errorf("healing_threshold %v outside [0, 1]", c.Scheduler.HealingThreshold)
	}
	for name, v := range map[string]string{
		"scheduler.check_interval":   c.Scheduler.CheckInterval,
		"scheduler.monitor_interval": c.Scheduler.MonitorInterval,
		"scheduler.retry_interval":   c.Scheduler.RetryInterval,
		"scheduler.grace_period":     c.Scheduler.GracePeriod,
		"platform.timeout":           c.Platform.Timeout,
		"store.purge_interval":       c.Store.PurgeInterval,
		"store.gc_interval":          c.Store.GCInterval,
	} {
		if v == "" {
			continue
		}
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// LoadConfig reads config from $VITALS_HOME/config.toml, falling back to
// defaults. VITALS_PLATFORM_PASSWORD overrides the platform password.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	path := ConfigPath()

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return cfg, fmt.Errorf("stat config: %w", err)
	}

	if pw := os.Getenv("VITALS_PLATFORM_PASSWORD"); pw != "" {
		cfg.Platform.Password = pw
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SaveConfig writes the config to $VITALS_HOME/config.toml. The platform
// password is never written.
func SaveConfig(cfg Config) error {
	path := ConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	cfg.Platform.Password = ""
	encoder := toml.NewEncoder(f)
	return encoder.Encode(cfg)
}

// ConfigPath returns the config file location.
func ConfigPath() string {
	return filepath.Join(vitalsHome(), "config.toml")
}

// vitalsHome returns the Vitals data directory.
func vitalsHome() string {
	if env := os.Getenv("VITALS_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".vitals")
}

// VitalsHome is exported for use by other packages.
func VitalsHome() string {
	return vitalsHome()
}

// parseDuration parses a duration string, returning a fallback on error.
func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

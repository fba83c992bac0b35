// Traffic-Slice - Data-Loss Detection for Intercepted Traffic
// Copyright 2025 kuomat
// SPDX-License-Identifier: MIT
// https://github.com/kuomat/Traffic-Slice

// Package config loads and validates Traffic-Slice configuration.
//
// Configuration is layered via koanf (highest priority wins):
//
//  1. Built-in defaults
//  2. Config file (config.yaml, or CONFIG_PATH)
//  3. Environment variables (TS_ prefix, e.g. TS_SERVER_PORT)
//
// Every detection constant the screeners depend on (secret values, regex
// patterns, thresholds, windows, TTLs) is a config field so deployments can
// tune them without rebuilding. Validation failures are fatal at startup,
// before any traffic is processed.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found is used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/traffic-slice/config.yaml",
	"/etc/traffic-slice/config.yml",
}

// ConfigPathEnvVar overrides the config file path when set.
const ConfigPathEnvVar = "CONFIG_PATH"

// envPrefix is the prefix for environment variable overrides.
const envPrefix = "TS_"

// Config is the root configuration for the screening engine.
type Config struct {
	Logging   LoggingConfig   `koanf:"logging"`
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Secrets   SecretsConfig   `koanf:"secrets"`
	Patterns  PatternsConfig  `koanf:"patterns"`
	Location  LocationConfig  `koanf:"location"`
	Timestamp TimestampConfig `koanf:"timestamp"`
	Clipboard ClipboardConfig `koanf:"clipboard"`
	Geolocate GeolocateConfig `koanf:"geolocate"`
}

// LoggingConfig controls zerolog output.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error fatal disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// ServerConfig controls the alert query API server.
type ServerConfig struct {
	Host            string        `koanf:"host" validate:"required"`
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	Timeout         time.Duration `koanf:"timeout" validate:"min=1s"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"min=1s"`
}

// DatabaseConfig controls the DuckDB alert store.
type DatabaseConfig struct {
	Path      string `koanf:"path" validate:"required"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads" validate:"min=0"`
}

// SecretsConfig holds the known secret values the SecretKeyScreener matches.
// The values themselves never appear in alert messages.
type SecretsConfig struct {
	SystemLevelKey string `koanf:"system_level_key" validate:"required,min=16"`
	UserLevelKey   string `koanf:"user_level_key" validate:"required,min=16"`
}

// PatternsConfig holds the regex families used by the pattern screeners.
type PatternsConfig struct {
	MACAddress string `koanf:"mac_address" validate:"required"`
	Filename   string `koanf:"filename" validate:"required"`
}

// LocationConfig tunes the location screener and its alert throttling.
type LocationConfig struct {
	// Keywords is the location-related key vocabulary searched in JSON
	// payloads, URLs and headers.
	Keywords []string `koanf:"keywords" validate:"required,min=1"`

	// KnownHosts is the allowlist of location-service hostnames that are
	// flagged regardless of coordinate presence.
	KnownHosts []string `koanf:"known_hosts" validate:"required,min=1"`

	// ProximityThresholdKm is the Haversine distance below which a leaked
	// coordinate counts as "near the device".
	ProximityThresholdKm float64 `koanf:"proximity_threshold_km" validate:"gt=0"`

	// AlertResetWindow is how often per-application location alert counters
	// are reset.
	AlertResetWindow time.Duration `koanf:"alert_reset_window" validate:"min=1s"`
}

// TimestampConfig tunes the timestamp burst screener.
type TimestampConfig struct {
	// Window is the sliding window over timestamp-bearing requests.
	Window time.Duration `koanf:"window" validate:"min=1s"`

	// Threshold is the request count that must be exceeded within Window
	// before an alert fires.
	Threshold int `koanf:"threshold" validate:"min=1"`
}

// ClipboardConfig controls the clipboard provider.
type ClipboardConfig struct {
	// Enabled toggles the clipboard screener entirely.
	Enabled bool `koanf:"enabled"`

	// ReadTimeout bounds a single clipboard read.
	ReadTimeout time.Duration `koanf:"read_timeout" validate:"min=100ms"`
}

// GeolocateConfig controls the device geolocation provider and cache.
type GeolocateConfig struct {
	// ProviderURL is the IP-geolocation endpoint queried for the device's
	// own location.
	ProviderURL string `koanf:"provider_url" validate:"required,url"`

	// Timeout bounds a single provider lookup.
	Timeout time.Duration `koanf:"timeout" validate:"min=100ms"`

	// CacheTTL is how long a fetched device location stays fresh. The
	// provider is queried at most once per TTL regardless of call volume.
	CacheTTL time.Duration `koanf:"cache_ttl" validate:"min=1s"`
}

// defaultConfig returns a Config with the built-in defaults. These mirror
// the constants the screeners shipped with before they became tunable.
func defaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            8690,
			Timeout:         30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Path:      "traffic-slice.duckdb",
			MaxMemory: "1GB",
			Threads:   0, // 0 = runtime.NumCPU()
		},
		Secrets: SecretsConfig{
			SystemLevelKey: "CqyTJns6LOXtDRxmlkuNAFfV91UjgreE",
			UserLevelKey:   "TqyTJns6LOXtDRxmlkuNAFfV91UjgreEq",
		},
		Patterns: PatternsConfig{
			MACAddress: `(?:[0-9A-Fa-f]{2}[:-]){5}[0-9A-Fa-f]{2}`,
			Filename:   `\b[\w\-.]+\.(?:pdf|doc|docx|txt|rtf|csv|xls|xlsx|exe|dll|bat|sh|py|js|html|htm|php|jpg|jpeg|png|gif|mp3|mp4|avi|mkv|zip|rar|7z|tar|gz)\b`,
		},
		Location: LocationConfig{
			Keywords: []string{
				"latitude", "longitude", "lat", "lng", "loc",
				"gps", "geo", "location", "coordinates",
				"position", "tracking",
			},
			KnownHosts: []string{
				"maps.googleapis.com",
				"location.services.mozilla.com",
				"api.openstreetmap.org",
				"nominatim.openstreetmap.org",
			},
			ProximityThresholdKm: 10,
			AlertResetWindow:     600 * time.Second,
		},
		Timestamp: TimestampConfig{
			Window:    60 * time.Second,
			Threshold: 5,
		},
		Clipboard: ClipboardConfig{
			Enabled:     true,
			ReadTimeout: 2 * time.Second,
		},
		Geolocate: GeolocateConfig{
			ProviderURL: "http://ip-api.com/json",
			Timeout:     10 * time.Second,
			CacheTTL:    900 * time.Second,
		},
	}
}

// Load reads configuration from defaults, an optional config file, and
// environment variables, then validates the result.
func Load() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: defaults.
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: config file, if one exists.
	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	// Layer 3: environment. TS_LOCATION_PROXIMITY_THRESHOLD_KM maps to
	// location.proximity_threshold_km via the section names.
	if err := k.Load(env.Provider(envPrefix, ".", envToKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// findConfigFile returns the path of the first config file found, or "".
func findConfigFile() string {
	if path := os.Getenv(ConfigPathEnvVar); path != "" {
		return path
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sections are the top-level config keys used to split env var names into
// a koanf path. TS_SERVER_SHUTDOWN_TIMEOUT -> server.shutdown_timeout.
var sections = []string{
	"logging", "server", "database", "secrets", "patterns",
	"location", "timestamp", "clipboard", "geolocate",
}

// envToKey converts an environment variable name to a koanf key path.
func envToKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
	for _, section := range sections {
		if strings.HasPrefix(s, section+"_") {
			return section + "." + strings.TrimPrefix(s, section+"_")
		}
	}
	return s
}

// Validate checks the configuration for fatal errors. Both struct-level
// constraints and regex compilation are checked here so that a broken
// pattern is rejected before any traffic is processed.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if _, err := regexp.Compile(c.Patterns.MACAddress); err != nil {
		return fmt.Errorf("invalid MAC address pattern: %w", err)
	}
	if _, err := regexp.Compile(c.Patterns.Filename); err != nil {
		return fmt.Errorf("invalid filename pattern: %w", err)
	}

	return nil
}

// Addr returns the host:port string for the API server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

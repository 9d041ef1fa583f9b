// Relay - Local Contact and Server Directory Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

package config

import "time"

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Data     DataConfig     `koanf:"data"`
	Bridges  BridgesConfig  `koanf:"bridges"`
	Weather  WeatherConfig  `koanf:"weather"`
	Security SecurityConfig `koanf:"security"`
	Logging  LoggingConfig  `koanf:"logging"`
	Auth     AuthConfig     `koanf:"auth"`
}

// ServerConfig holds the local HTTP/WebSocket listener settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	Environment     string        `koanf:"environment"` // development, staging, production
}

// DataConfig locates the data root and the engine's own state.
type DataConfig struct {
	// DefaultPath is the data root used until the user picks another one.
	DefaultPath string `koanf:"default_path"`

	// StateDir holds settings.json and the state database.
	StateDir string `koanf:"state_dir"`

	// Watch enables file system watching of the data root.
	Watch bool `koanf:"watch"`

	// WatchDebounce collapses bursts of file events into one reload.
	WatchDebounce time.Duration `koanf:"watch_debounce"`

	// StateInMemory keeps bridge events, cached credentials and import
	// progress in memory only.
	StateInMemory bool `koanf:"state_in_memory"`

	// StateGCInterval is how often the state database value log is compacted.
	StateGCInterval time.Duration `koanf:"state_gc_interval"`
}

// BridgesConfig tunes the bridge metrics reports.
type BridgesConfig struct {
	// TopGroupsLimit caps the top-groups ranking. Zero means no cap.
	TopGroupsLimit int `koanf:"top_groups_limit"`
}

// WeatherConfig configures the Open-Meteo lookups.
type WeatherConfig struct {
	Enabled           bool          `koanf:"enabled"`
	ForecastURL       string        `koanf:"forecast_url"`
	GeocodingURL      string        `koanf:"geocoding_url"`
	Timeout           time.Duration `koanf:"timeout"`
	CacheTTL          time.Duration `koanf:"cache_ttl"`
	LocationTTL       time.Duration `koanf:"location_ttl"`
	CacheEntries      int           `koanf:"cache_entries"`
	RequestsPerSecond float64       `koanf:"requests_per_second"`
	Burst             int           `koanf:"burst"`
	ForecastDays      int           `koanf:"forecast_days"`
}

// SecurityConfig holds HTTP hardening settings.
type SecurityConfig struct {
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	MaxBodyBytes      int64         `koanf:"max_body_bytes"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level: trace, debug, info, warn, error.
	// Default: info
	Level string `koanf:"level"`

	// Format is the output format: json or console.
	// Default: console
	Format string `koanf:"format"`

	// Caller includes caller file and line number in logs.
	Caller bool `koanf:"caller"`
}

// AuthConfig covers credentials for protected import sources.
type AuthConfig struct {
	// CredentialSecret derives the key that encrypts remembered
	// credentials. Without it remembered credentials live in memory only.
	CredentialSecret string `koanf:"credential_secret"`

	// FetchTimeout bounds a single remote import download.
	FetchTimeout time.Duration `koanf:"fetch_timeout"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return joinHostPort(s.Host, s.Port)
}

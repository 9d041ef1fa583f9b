// Relay - Local Contact and Server Directory Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := defaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("default host = %q, want loopback", cfg.Server.Host)
	}
	if got := cfg.Server.Addr(); got != "127.0.0.1:7878" {
		t.Errorf("Addr() = %q", got)
	}
	if cfg.Data.WatchDebounce != 300*time.Millisecond {
		t.Errorf("WatchDebounce = %v", cfg.Data.WatchDebounce)
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"RELAY_PORT", "server.port"},
		{"relay_data_path", "data.default_path"},
		{"WEATHER_FORECAST_URL", "weather.forecast_url"},
		{"CORS_ORIGINS", "security.cors_origins"},
		{"LOG_LEVEL", "logging.level"},
		{"RELAY_CREDENTIAL_SECRET", "auth.credential_secret"},
		{"PATH", ""},
		{"HOME", ""},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if got := envTransformFunc(tt.key); got != tt.want {
				t.Errorf("envTransformFunc(%q) = %q, want %q", tt.key, got, tt.want)
			}
		})
	}
}

func TestLoadFile_LayersFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relay.yaml")
	yaml := strings.Join([]string{
		"server:",
		"  port: 9000",
		"data:",
		"  default_path: /srv/relay/data",
		"  watch_debounce: 1s",
		"weather:",
		"  cache_ttl: 30m",
		"logging:",
		"  level: debug",
	}, "\n")
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("RELAY_PORT", "9100")
	t.Setenv("CORS_ORIGINS", "http://a.local, http://b.local")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("env should override file: port = %d", cfg.Server.Port)
	}
	if cfg.Data.DefaultPath != "/srv/relay/data" || cfg.Data.WatchDebounce != time.Second {
		t.Errorf("file values not applied: %+v", cfg.Data)
	}
	if cfg.Weather.CacheTTL != 30*time.Minute || cfg.Logging.Level != "debug" {
		t.Errorf("file values not applied: weather %+v logging %+v", cfg.Weather, cfg.Logging)
	}
	if cfg.Weather.Burst != 4 {
		t.Errorf("defaults lost for untouched keys: burst = %d", cfg.Weather.Burst)
	}
	if len(cfg.Security.CORSOrigins) != 2 || cfg.Security.CORSOrigins[1] != "http://b.local" {
		t.Errorf("CORS origins = %v", cfg.Security.CORSOrigins)
	}
}

func TestFindConfigFile_EnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	if err := os.WriteFile(path, []byte("logging:\n  level: warn\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	if got := findConfigFile(); got != path {
		t.Errorf("findConfigFile() = %q, want %q", got, path)
	}

	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))
	if got := findConfigFile(); got == path {
		t.Error("a missing CONFIG_PATH must not be returned")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, "RELAY_PORT"},
		{"empty host", func(c *Config) { c.Server.Host = "" }, "RELAY_HOST"},
		{"empty data path", func(c *Config) { c.Data.DefaultPath = " " }, "RELAY_DATA_PATH"},
		{"no state dir", func(c *Config) { c.Data.StateDir = "" }, "RELAY_STATE_DIR"},
		{"state dir optional in memory", func(c *Config) { c.Data.StateDir = ""; c.Data.StateInMemory = true }, ""},
		{"negative debounce", func(c *Config) { c.Data.WatchDebounce = -time.Second }, "RELAY_WATCH_DEBOUNCE"},
		{"bad weather url", func(c *Config) { c.Weather.ForecastURL = "ftp://x" }, "WEATHER_FORECAST_URL"},
		{"weather disabled skips urls", func(c *Config) { c.Weather.Enabled = false; c.Weather.ForecastURL = "" }, ""},
		{"forecast days", func(c *Config) { c.Weather.ForecastDays = 30 }, "WEATHER_FORECAST_DAYS"},
		{"rate limit", func(c *Config) { c.Security.RateLimitReqs = 0 }, "RATE_LIMIT_REQUESTS"},
		{"rate limit disabled", func(c *Config) { c.Security.RateLimitReqs = 0; c.Security.RateLimitDisabled = true }, ""},
		{"wildcard cors in production", func(c *Config) {
			c.Server.Environment = "production"
			c.Security.CORSOrigins = []string{"*"}
		}, "CORS_ORIGINS"},
		{"log level", func(c *Config) { c.Logging.Level = "loud" }, "LOG_LEVEL"},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }, "LOG_FORMAT"},
		{"short secret", func(c *Config) { c.Auth.CredentialSecret = "short" }, "RELAY_CREDENTIAL_SECRET"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %s", err, tt.wantErr)
			}
		})
	}
}

// Relay - Local Contact and Server Directory Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/tomtom215/relay/internal/validation"
)

// Rate limit constants
const (
	minRateLimitRequests = 1
	maxRateLimitRequests = 100000
	minRateLimitWindow   = time.Second
	maxRateLimitWindow   = time.Hour

	minCredentialSecret = 16
)

// Validate checks that required configuration is present and valid
func (c *Config) Validate() error {
	validators := []func() error{
		c.validateServer,
		c.validateData,
		c.validateBridges,
		c.validateWeather,
		c.validateSecurity,
		c.validateLogging,
		c.validateAuth,
	}
	for _, v := range validators {
		if err := v(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateServer() error {
	if verr := validation.ValidateVar("server.host", c.Server.Host, "required,hostname|ip"); verr != nil {
		return fmt.Errorf("RELAY_HOST: %w", verr)
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("RELAY_PORT must be between 1 and 65535")
	}
	if c.Server.ReadTimeout <= 0 || c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("HTTP_READ_TIMEOUT and HTTP_WRITE_TIMEOUT must be positive")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("HTTP_SHUTDOWN_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) validateData() error {
	if strings.TrimSpace(c.Data.DefaultPath) == "" {
		return fmt.Errorf("RELAY_DATA_PATH is required")
	}
	if strings.TrimSpace(c.Data.StateDir) == "" && !c.Data.StateInMemory {
		return fmt.Errorf("RELAY_STATE_DIR is required unless RELAY_STATE_IN_MEMORY=true")
	}
	if c.Data.WatchDebounce < 0 || c.Data.WatchDebounce > time.Minute {
		return fmt.Errorf("RELAY_WATCH_DEBOUNCE must be between 0 and 1m")
	}
	if c.Data.StateGCInterval < 0 {
		return fmt.Errorf("RELAY_STATE_GC_INTERVAL must not be negative")
	}
	return nil
}

func (c *Config) validateBridges() error {
	if c.Bridges.TopGroupsLimit < 0 {
		return fmt.Errorf("BRIDGES_TOP_GROUPS_LIMIT must not be negative")
	}
	return nil
}

func (c *Config) validateWeather() error {
	if !c.Weather.Enabled {
		return nil
	}
	if err := validateHTTPURL(c.Weather.ForecastURL, "WEATHER_FORECAST_URL"); err != nil {
		return err
	}
	if err := validateHTTPURL(c.Weather.GeocodingURL, "WEATHER_GEOCODING_URL"); err != nil {
		return err
	}
	if c.Weather.RequestsPerSecond < 0 {
		return fmt.Errorf("WEATHER_REQUESTS_PER_SECOND must not be negative")
	}
	if c.Weather.ForecastDays < 1 || c.Weather.ForecastDays > 16 {
		return fmt.Errorf("WEATHER_FORECAST_DAYS must be between 1 and 16")
	}
	return nil
}

func (c *Config) validateSecurity() error {
	if c.Security.MaxBodyBytes <= 0 {
		return fmt.Errorf("MAX_BODY_BYTES must be positive")
	}
	if c.hasWildcardCORS() && c.IsProduction() {
		return fmt.Errorf("CORS_ORIGINS=* (wildcard) is not allowed in production. " +
			"Set specific origins: CORS_ORIGINS=http://localhost:4173")
	}
	return c.validateRateLimits()
}

// validateRateLimits validates rate limiting configuration bounds.
func (c *Config) validateRateLimits() error {
	if c.Security.RateLimitDisabled {
		return nil
	}
	if c.Security.RateLimitReqs < minRateLimitRequests || c.Security.RateLimitReqs > maxRateLimitRequests {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be between %d and %d", minRateLimitRequests, maxRateLimitRequests)
	}
	if c.Security.RateLimitWindow < minRateLimitWindow || c.Security.RateLimitWindow > maxRateLimitWindow {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be between %v and %v", minRateLimitWindow, maxRateLimitWindow)
	}
	return nil
}

var (
	validLogLevels  = map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true}
	validLogFormats = map[string]bool{"json": true, "console": true}
)

func (c *Config) validateLogging() error {
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error")
	}
	if !validLogFormats[strings.ToLower(c.Logging.Format)] {
		return fmt.Errorf("LOG_FORMAT must be json or console")
	}
	return nil
}

func (c *Config) validateAuth() error {
	if s := c.Auth.CredentialSecret; s != "" && len(s) < minCredentialSecret {
		return fmt.Errorf("RELAY_CREDENTIAL_SECRET must be at least %d characters", minCredentialSecret)
	}
	if c.Auth.FetchTimeout <= 0 {
		return fmt.Errorf("IMPORT_FETCH_TIMEOUT must be positive")
	}
	return nil
}

// hasWildcardCORS checks if CORS is configured with wildcard origins
func (c *Config) hasWildcardCORS() bool {
	for _, origin := range c.Security.CORSOrigins {
		if origin == "*" {
			return true
		}
	}
	return false
}

// ShouldWarnAboutCORS reports a wildcard CORS setting worth logging at startup.
func (c *Config) ShouldWarnAboutCORS() bool {
	return c.hasWildcardCORS()
}

// IsProduction returns true if the application is running in production mode.
func (c *Config) IsProduction() bool {
	env := strings.ToLower(c.Server.Environment)
	return env == "production" || env == "prod"
}

// validateHTTPURL validates that a URL is an absolute http(s) endpoint.
func validateHTTPURL(rawURL, fieldName string) error {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%s failed to parse URL: %w", fieldName, err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("%s scheme must be http or https, got: %s", fieldName, parsedURL.Scheme)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("%s host is required", fieldName)
	}
	if parsedURL.RawQuery != "" {
		return fmt.Errorf("%s should not contain query parameters, remove: ?%s", fieldName, parsedURL.RawQuery)
	}
	return nil
}

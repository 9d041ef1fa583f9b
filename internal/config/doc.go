// Relay - Local Contact and Server Directory Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

/*
Package config loads Relay configuration.

# Configuration Sources

Configuration is layered with koanf, later layers overriding earlier ones:

 1. Built-in defaults (defaultConfig)
 2. An optional YAML file: $CONFIG_PATH, else relay.yaml or config.yaml
 3. Environment variables listed in envMappings

Unmapped environment variables are ignored.

# Sections

  - server: loopback listener address and timeouts
  - data: default data root, state directory, watcher debounce
  - bridges: report options
  - weather: Open-Meteo endpoints, cache TTLs, rate limit
  - security: CORS origins, API rate limit, request body cap
  - logging: level, format, caller
  - auth: credential secret and fetch timeout for protected import sources

# Environment Variables

  - RELAY_HOST, RELAY_PORT: listen address (default 127.0.0.1:7878)
  - RELAY_DATA_PATH: default data root (default ./data)
  - RELAY_STATE_DIR: settings and state database (default ./state)
  - RELAY_WATCH, RELAY_WATCH_DEBOUNCE: file watching (default true, 300ms)
  - WEATHER_ENABLED, WEATHER_FORECAST_URL, WEATHER_GEOCODING_URL
  - CORS_ORIGINS: comma-separated allowed origins
  - RATE_LIMIT_REQUESTS, RATE_LIMIT_WINDOW, DISABLE_RATE_LIMIT
  - LOG_LEVEL, LOG_FORMAT, LOG_CALLER
  - RELAY_CREDENTIAL_SECRET: enables encrypted storage of remembered credentials

Validate is called by Load and rejects out-of-range values with an error
naming the environment variable to fix.
*/
package config

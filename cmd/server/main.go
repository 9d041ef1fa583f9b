// Relay - Local Contact and Server Directory Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

// Package main runs the Relay engine as a loopback service for its UI host.
//
// Startup order:
//
//  1. Configuration (koanf: defaults, YAML file, environment)
//  2. Logging (zerolog)
//  3. State database (badger) for bridge events, import jobs and
//     remembered credentials
//  4. Settings manager, which resolves the persisted data root
//  5. Weather service (optional)
//  6. Engine, WebSocket hub, HTTP router
//  7. Supervisor tree: watcher, state GC, hub, HTTP server
//
// SIGINT and SIGTERM cancel the tree; services drain within
// server.shutdown_timeout.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/tomtom215/relay/internal/api"
	"github.com/tomtom215/relay/internal/config"
	"github.com/tomtom215/relay/internal/engine"
	dataimport "github.com/tomtom215/relay/internal/import"
	"github.com/tomtom215/relay/internal/logging"
	"github.com/tomtom215/relay/internal/settings"
	"github.com/tomtom215/relay/internal/statedb"
	"github.com/tomtom215/relay/internal/supervisor"
	"github.com/tomtom215/relay/internal/supervisor/services"
	"github.com/tomtom215/relay/internal/weather"
	ws "github.com/tomtom215/relay/internal/websocket"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logging.Info().
		Str("version", version).
		Str("addr", cfg.Server.Addr()).
		Str("default_data_path", cfg.Data.DefaultPath).
		Str("state_dir", cfg.Data.StateDir).
		Msg("Starting Relay")

	if err := os.MkdirAll(cfg.Data.StateDir, 0o750); err != nil {
		logging.Fatal().Err(err).Str("dir", cfg.Data.StateDir).Msg("Failed to create state directory")
	}

	db, err := openState(cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open state database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing state database")
		}
	}()

	sealer, err := credentialSealer(cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize credential encryption")
	}

	settingsMgr, err := settings.New(cfg.Data.DefaultPath, cfg.Data.StateDir)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize settings")
	}

	engineCfg := engine.Config{
		Settings:       settingsMgr,
		StateDB:        db.Badger(),
		Sealer:         sealer,
		WatchDebounce:  cfg.Data.WatchDebounce,
		FetchTimeout:   cfg.Auth.FetchTimeout,
		TopGroupsLimit: cfg.Bridges.TopGroupsLimit,
	}
	if cfg.Weather.Enabled {
		weatherSvc := weather.New(weatherConfig(cfg.Weather))
		defer weatherSvc.Close()
		engineCfg.Weather = weatherSvc
	} else {
		logging.Info().Msg("Weather lookups disabled (WEATHER_ENABLED=false)")
	}

	eng, err := engine.New(engineCfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize engine")
	}

	wsHub := ws.NewHub()
	stopFollow := wsHub.Follow(eng)
	defer stopFollow()

	if cfg.ShouldWarnAboutCORS() {
		logging.Warn().Msg("CORS_ORIGINS contains '*': any web page can call the local API")
	}
	if cfg.Security.RateLimitDisabled {
		logging.Warn().Msg("Rate limiting is DISABLED (DISABLE_RATE_LIMIT=true)")
	}

	handler := api.NewHandler(api.HandlerConfig{
		Engine:      eng,
		WSHub:       wsHub,
		CORSOrigins: cfg.Security.CORSOrigins,
		Version:     version,
	})
	router := api.NewRouter(handler, api.NewChiMiddleware(api.ChiMiddlewareConfigFrom(cfg.Security)))

	server := &http.Server{
		Handler:           router.Setup(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	if cfg.Data.Watch {
		tree.AddDataService(eng.Watcher())
	} else {
		// Without the watcher nothing triggers the initial load.
		if err := eng.ReloadData(ctx); err != nil {
			logging.Warn().Err(err).Msg("Initial data load failed")
		}
		logging.Info().Msg("File watching disabled (RELAY_WATCH=false)")
	}
	tree.AddDataService(db)
	tree.AddMessagingService(wsHub)
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.Addr(), cfg.Server.ShutdownTimeout))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	errCh := tree.ServeBackground(ctx)
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	if unstopped, _ := tree.UnstoppedServiceReport(); len(unstopped) > 0 {
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
		}
	}
	logging.Info().Msg("Relay stopped")
}

// openState opens the badger state database, or an in-memory one when
// data.state_in_memory is set.
func openState(cfg *config.Config) (*statedb.DB, error) {
	path := filepath.Join(cfg.Data.StateDir, "state")
	if cfg.Data.StateInMemory {
		path = ""
	}
	dbCfg := statedb.DefaultConfig(path)
	if cfg.Data.StateGCInterval > 0 {
		dbCfg.GCInterval = cfg.Data.StateGCInterval
	}
	return statedb.Open(dbCfg)
}

// credentialSealer returns nil when no secret is configured; remembered
// credentials then stay in memory.
func credentialSealer(cfg *config.Config) (dataimport.CredentialSealer, error) {
	if cfg.Auth.CredentialSecret == "" {
		logging.Info().Msg("RELAY_CREDENTIAL_SECRET not set: remembered credentials are kept in memory only")
		return nil, nil
	}
	sealer, err := dataimport.NewSealer(cfg.Auth.CredentialSecret)
	if err != nil {
		return nil, err
	}
	if err := sealer.SelfTest(); err != nil {
		return nil, err
	}
	logging.Info().Msg("Credential encryption enabled")
	return sealer, nil
}

func weatherConfig(c config.WeatherConfig) weather.Config {
	wc := weather.DefaultConfig()
	wc.ForecastURL = c.ForecastURL
	wc.GeocodingURL = c.GeocodingURL
	wc.Timeout = c.Timeout
	wc.CacheTTL = c.CacheTTL
	wc.LocationTTL = c.LocationTTL
	wc.CacheEntries = c.CacheEntries
	wc.RequestsPerSecond = c.RequestsPerSecond
	wc.Burst = c.Burst
	wc.ForecastDays = c.ForecastDays
	return wc
}

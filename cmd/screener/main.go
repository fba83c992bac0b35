// Traffic-Slice - Data-Loss Detection for Intercepted Traffic
// Copyright 2025 kuomat
// SPDX-License-Identifier: MIT
// https://github.com/kuomat/Traffic-Slice

// Package main is the entry point for the Traffic-Slice screening engine.
//
// Traffic-Slice screens intercepted network traffic for data leaks: secret
// keys, MAC addresses, filenames, clipboard contents, location data and
// timestamp bursts. An out-of-process interception proxy posts every captured
// HTTP exchange and TCP message to the intake endpoints; findings are
// persisted to DuckDB as alerts correlated with the traffic that produced
// them, and streamed to review clients over a websocket.
//
// Startup order:
//
//  1. Configuration: koanf layered defaults -> config.yaml -> TS_* env vars
//  2. Logging: zerolog, level and format from config
//  3. Database: DuckDB alert store, schema created if missing
//  4. Collaborators: device geolocation cache, clipboard provider
//  5. Screeners and dispatch engine
//  6. Supervisor tree: websocket hub + HTTP server under suture
//
// The process shuts down gracefully on SIGINT and SIGTERM: the HTTP server
// drains in-flight requests, websocket clients are closed, and the database
// is checkpointed before exit.
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/kuomat/Traffic-Slice/internal/api"
	"github.com/kuomat/Traffic-Slice/internal/clipboard"
	"github.com/kuomat/Traffic-Slice/internal/config"
	"github.com/kuomat/Traffic-Slice/internal/geolocate"
	"github.com/kuomat/Traffic-Slice/internal/logging"
	"github.com/kuomat/Traffic-Slice/internal/screener"
	"github.com/kuomat/Traffic-Slice/internal/store"
	"github.com/kuomat/Traffic-Slice/internal/supervisor"
	"github.com/kuomat/Traffic-Slice/internal/supervisor/services"
	ws "github.com/kuomat/Traffic-Slice/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Default logger; config is not available yet.
		logging.Fatal().Err(err).Msg("failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("db_path", cfg.Database.Path).
		Str("addr", cfg.Server.Addr()).
		Bool("clipboard_enabled", cfg.Clipboard.Enabled).
		Msg("configuration loaded")

	st, err := store.Open(cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to open database")
	}
	defer func() {
		if err := st.Close(); err != nil {
			logging.Error().Err(err).Msg("error closing database")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := st.InitSchema(ctx); err != nil {
		logging.Fatal().Err(err).Msg("failed to initialize database schema")
	}
	logging.Info().Msg("database initialized")

	locator := geolocate.NewCache(
		geolocate.NewIPAPIProvider(cfg.Geolocate.ProviderURL, cfg.Geolocate.Timeout),
		cfg.Geolocate.CacheTTL,
	)

	screeners, err := buildScreeners(cfg, locator)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to build screeners")
	}
	for _, s := range screeners {
		setup := s.Setup()
		logging.Info().
			Str("screener", s.Name()).
			Str("type", string(setup.Type)).
			Int("severity", setup.Severity).
			Msg("registered screener")
	}

	hub := ws.NewHub()

	engine := screener.NewEngine(st, screeners...)
	engine.SetBroadcaster(hub)

	router := api.NewRouter(api.NewHandlers(st), api.NewIntakeHandlers(engine), hub)
	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	tree.AddMessagingService(services.NewHubService(hub))
	tree.AddAPIService(services.NewHTTPServerService(server, server.Addr, cfg.Server.ShutdownTimeout))

	logging.Info().Msg("starting supervisor tree")
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("supervisor tree error")
	}

	logging.Info().Msg("stopped gracefully")
}

// buildScreeners assembles the screener chain in dispatch order. The location
// screener is wrapped with per-application alert throttling.
func buildScreeners(cfg *config.Config, locator screener.DeviceLocator) ([]screener.Screener, error) {
	secret := screener.NewSecretKeyScreener(cfg.Secrets.SystemLevelKey, cfg.Secrets.UserLevelKey)

	filename, err := screener.NewFilenameScreener(cfg.Patterns.Filename)
	if err != nil {
		return nil, err
	}
	mac, err := screener.NewMACAddressScreener(cfg.Patterns.MACAddress)
	if err != nil {
		return nil, err
	}

	location := screener.NewLocationFrequencyScreener(
		screener.NewLocationScreener(
			cfg.Location.Keywords,
			cfg.Location.KnownHosts,
			cfg.Location.ProximityThresholdKm,
			locator,
		),
		cfg.Location.AlertResetWindow,
		1,
	)

	timestamp := screener.NewTimestampScreener(cfg.Timestamp.Window, cfg.Timestamp.Threshold)

	screeners := []screener.Screener{secret, filename, mac}
	if cfg.Clipboard.Enabled {
		screeners = append(screeners,
			screener.NewClipboardScreener(clipboard.NewCommandProvider(cfg.Clipboard.ReadTimeout)))
	}
	screeners = append(screeners, location, timestamp)

	return screeners, nil
}

// Roomcast - Durable Real-Time Room Messaging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roomcast

// Package main is the entry point for the Roomcast server.
//
// Roomcast is a real-time messaging server exposing a WebSocket transport
// with a companion HTTP long-polling fallback. Clients join named rooms,
// exchange typed JSON envelopes that are durably persisted in SQLite, and
// receive recent history on (re)join.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: layered loading via Koanf v2 (defaults, YAML, env)
//  2. Message store: SQLite in WAL mode
//  3. WebSocket hub with the chat contract registered on its dispatcher
//  4. Long-poll bridge, mirrored off the dispatcher
//  5. HTTP facade: /ws, /ws/poll, /ws/send, /health, /metrics
//  6. Supervisor tree: messaging layer (hub, sweeper) and api layer
//
// # Configuration
//
// Settings come from ROOMCAST_-prefixed environment variables, an optional
// config.yaml, and built-in defaults, in that order of precedence. See
// internal/config for the full key list.
//
// # Build Tags
//
//	go build -tags nats ./cmd/server   # mirror envelopes onto NATS subjects
//
// # Signal Handling
//
// SIGINT and SIGTERM trigger graceful shutdown: the listener drains
// in-flight requests (10s timeout) and the hub closes every session.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/tomtom215/roomcast/internal/api"
	"github.com/tomtom215/roomcast/internal/config"
	"github.com/tomtom215/roomcast/internal/logging"
	"github.com/tomtom215/roomcast/internal/longpoll"
	"github.com/tomtom215/roomcast/internal/metrics"
	"github.com/tomtom215/roomcast/internal/store"
	"github.com/tomtom215/roomcast/internal/supervisor"
	"github.com/tomtom215/roomcast/internal/supervisor/services"
	ws "github.com/tomtom215/roomcast/internal/websocket"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Config errors surface through the default logger; the configured
		// one does not exist yet.
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	metrics.SetAppInfo(version, runtime.Version())

	logging.Info().
		Str("version", version).
		Int("port", cfg.WebSocket.Port).
		Str("store_path", cfg.Store.Path).
		Msg("Starting Roomcast")

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		logging.Fatal().Err(err).Str("path", cfg.Store.Path).Msg("Failed to open message store")
	}
	defer func() {
		if err := st.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing message store")
		}
	}()
	logging.Info().Msg("Message store ready")

	hub := ws.NewHub(ws.Config{
		MaxMessageSize: cfg.WebSocket.MaxMessageSize,
		IdleTimeout:    cfg.WebSocket.IdleTimeout,
		PingInterval:   cfg.WebSocket.PingInterval,
		EnableDeflate:  cfg.WebSocket.EnableDeflate,
		AutoPingPong:   cfg.WebSocket.AutoPingPong,
		SendQueueSize:  cfg.WebSocket.SendQueueSize,
		MessageRate:    cfg.WebSocket.MessageRate,
	})
	ws.NewChatApp(hub, st, cfg.WebSocket.HistoryLimit)

	manager := longpoll.NewManager(cfg.LongPoll.SessionTTL, cfg.LongPoll.BufferSize)
	bridge := longpoll.NewBridge(manager, nil, api.ForwardToHub(hub))
	hub.Dispatcher().AddMirror(bridge.OnWSMessage)

	if err := initNATS(cfg, hub); err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize NATS mirror")
	}

	handler := api.NewHandler(cfg, hub, bridge)
	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.WebSocket.Port),
		Handler:           api.NewRouter(cfg, handler),
		ReadHeaderTimeout: cfg.Server.Timeout,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Bridge zerolog to slog for sutureslog.
	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())

	tree.AddMessagingService(services.NewHubService(hub))
	tree.AddMessagingService(services.NewSweeperService(manager, cfg.LongPoll.SweepInterval))
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
	logging.Info().Str("addr", server.Addr).Msg("Services added to supervisor tree")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Roomcast stopped gracefully")
}

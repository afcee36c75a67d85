// Roomcast - Durable Real-Time Room Messaging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roomcast

//go:build nats

package main

import (
	"github.com/tomtom215/roomcast/internal/config"
	"github.com/tomtom215/roomcast/internal/logging"
	ws "github.com/tomtom215/roomcast/internal/websocket"
)

// initNATS connects the envelope mirror when nats.enabled is set.
func initNATS(cfg *config.Config, hub *ws.Hub) error {
	if !cfg.NATS.Enabled {
		logging.Info().Msg("NATS mirror disabled by configuration")
		return nil
	}

	if _, err := ws.NewNATSPublisher(cfg.NATS.URL, hub); err != nil {
		return err
	}
	return nil
}

// Roomcast - Durable Real-Time Room Messaging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roomcast

//go:build !nats

package main

import (
	"fmt"

	"github.com/tomtom215/roomcast/internal/config"
	ws "github.com/tomtom215/roomcast/internal/websocket"
)

// initNATS rejects nats.enabled in builds without the nats tag.
func initNATS(cfg *config.Config, _ *ws.Hub) error {
	if cfg.NATS.Enabled {
		return fmt.Errorf("nats.enabled is set but this binary was built without -tags nats")
	}
	return nil
}

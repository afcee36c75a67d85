// Roomcast - Durable Real-Time Room Messaging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roomcast

//go:build !nats

package websocket

import (
	"fmt"

	"github.com/tomtom215/roomcast/internal/protocol"
)

// NATSPublisher is a stub for non-NATS builds.
type NATSPublisher struct{}

// NewNATSPublisher returns an error in non-NATS builds.
func NewNATSPublisher(_ string, _ *Hub) (*NATSPublisher, error) {
	return nil, fmt.Errorf("NATS support not enabled (build with -tags nats)")
}

// Publish is a no-op stub.
func (p *NATSPublisher) Publish(_ protocol.Envelope) {}

// Close is a no-op stub.
func (p *NATSPublisher) Close() {}

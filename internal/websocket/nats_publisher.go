// Roomcast - Durable Real-Time Room Messaging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roomcast

//go:build nats

package websocket

import (
	"github.com/nats-io/nats.go"

	"github.com/tomtom215/roomcast/internal/logging"
	"github.com/tomtom215/roomcast/internal/metrics"
	"github.com/tomtom215/roomcast/internal/protocol"
)

// NATSPublisher mirrors every valid inbound envelope onto NATS subjects so
// external consumers can tap the message flow without a WebSocket session.
// Room traffic goes to roomcast.rooms.<room>, global traffic to
// roomcast.broadcast.
type NATSPublisher struct {
	conn *nats.Conn
}

// NewNATSPublisher connects to the NATS server at url and registers the
// publisher as a dispatcher mirror on the hub.
func NewNATSPublisher(url string, hub *Hub) (*NATSPublisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("roomcast-publisher"),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, err
	}

	p := &NATSPublisher{conn: conn}
	hub.Dispatcher().AddMirror(p.Publish)

	logging.Info().Str("url", url).Msg("nats publisher connected")
	return p, nil
}

// Publish sends the serialized envelope to its subject. Publish failures
// are counted and logged; they never affect in-process delivery.
func (p *NATSPublisher) Publish(env protocol.Envelope) {
	subject := "roomcast.broadcast"
	if env.Room != "" {
		subject = "roomcast.rooms." + env.Room
	}

	frame, err := env.Serialize()
	if err != nil {
		metrics.RecordError()
		return
	}

	if err := p.conn.Publish(subject, []byte(frame)); err != nil {
		metrics.RecordError()
		logging.Warn().Err(err).Str("subject", subject).Msg("nats publish failed")
	}
}

// Close drains and closes the NATS connection.
func (p *NATSPublisher) Close() {
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
	}
}

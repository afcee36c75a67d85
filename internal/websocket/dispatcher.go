// Roomcast - Durable Real-Time Room Messaging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roomcast

package websocket

import (
	"sync"

	"github.com/tomtom215/roomcast/internal/logging"
	"github.com/tomtom215/roomcast/internal/metrics"
	"github.com/tomtom215/roomcast/internal/protocol"
)

// Handler processes one parsed envelope from a connected client.
type Handler func(c *Client, env protocol.Envelope)

// Mirror observes every valid inbound envelope after parsing, before
// handler fan-out. Used to tee traffic into the long-poll mailboxes.
type Mirror func(env protocol.Envelope)

// Dispatcher parses inbound text frames into envelopes and fans them out
// to the handlers registered for the envelope type. Frames that fail to
// parse are counted and dropped; they never reach a handler.
type Dispatcher struct {
	mu        sync.RWMutex
	handlers  map[string][]Handler
	fallbacks []Handler
	mirrors   []Mirror
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[string][]Handler)}
}

// Handle registers a handler for the given envelope type. Multiple
// handlers for one type run in registration order.
func (d *Dispatcher) Handle(msgType string, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[msgType] = append(d.handlers[msgType], h)
}

// HandleFallback registers a handler for envelope types with no dedicated
// handler.
func (d *Dispatcher) HandleFallback(h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fallbacks = append(d.fallbacks, h)
}

// AddMirror registers an observer for every valid inbound envelope.
func (d *Dispatcher) AddMirror(m Mirror) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.mirrors = append(d.mirrors, m)
}

// Dispatch parses one text frame and routes it. Invalid frames increment
// the error counter and are dropped without closing the session.
func (d *Dispatcher) Dispatch(c *Client, frame string) {
	metrics.RecordMessageIn()

	env, err := protocol.Parse(frame)
	if err != nil {
		metrics.RecordError()
		logging.Debug().Err(err).Uint64("client_id", c.id).
			Msg("dropping unparseable frame")
		return
	}

	d.mu.RLock()
	mirrors := d.mirrors
	handlers := d.handlers[env.Type]
	fallbacks := d.fallbacks
	d.mu.RUnlock()

	for _, m := range mirrors {
		m(env)
	}

	if len(handlers) == 0 {
		for _, h := range fallbacks {
			h(c, env)
		}
		return
	}

	for _, h := range handlers {
		h(c, env)
	}
}

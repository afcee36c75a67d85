// Roomcast - Durable Real-Time Room Messaging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roomcast

package longpoll

import "github.com/tomtom215/roomcast/internal/protocol"

// DefaultPollMax is the drain limit applied when a poll request does not
// carry a usable max parameter.
const DefaultPollMax = 50

// Resolver maps an envelope to the long-poll session id that should
// receive it.
type Resolver func(env protocol.Envelope) string

// Forward mirrors an HTTP-submitted envelope onto the WebSocket side,
// typically a room or global broadcast on the hub.
type Forward func(env protocol.Envelope)

// DefaultResolver returns "room:<room>" for room-scoped envelopes and
// "broadcast" otherwise.
func DefaultResolver(env protocol.Envelope) string {
	if env.Room != "" {
		return "room:" + env.Room
	}
	return "broadcast"
}

// Bridge connects the WebSocket dispatcher, the HTTP send endpoint and the
// long-poll mailboxes. It is the single fan-out point: WS traffic lands in
// mailboxes through OnWSMessage, and HTTP sends reach WS subscribers only
// through the forward hook.
type Bridge struct {
	manager  *Manager
	resolver Resolver
	forward  Forward
}

// NewBridge creates a Bridge over manager. A nil resolver falls back to
// DefaultResolver; forward may be nil when no WS side is attached.
func NewBridge(manager *Manager, resolver Resolver, forward Forward) *Bridge {
	if resolver == nil {
		resolver = DefaultResolver
	}

	return &Bridge{manager: manager, resolver: resolver, forward: forward}
}

// Manager exposes the underlying mailbox manager.
func (b *Bridge) Manager() *Manager {
	return b.manager
}

// ResolveSessionID applies the bridge resolver to env.
func (b *Bridge) ResolveSessionID(env protocol.Envelope) string {
	return b.resolver(env)
}

// OnWSMessage mirrors a dispatched WebSocket envelope into the mailbox its
// resolver selects.
func (b *Bridge) OnWSMessage(env protocol.Envelope) {
	b.manager.Push(b.resolver(env), env)
}

// Poll drains up to max envelopes for sessionID, creating the mailbox when
// absent so subsequent traffic is buffered for this client.
func (b *Bridge) Poll(sessionID string, max int) []protocol.Envelope {
	if max <= 0 {
		max = DefaultPollMax
	}
	return b.manager.Poll(sessionID, max, true)
}

// SendFromHTTP enqueues env into the mailbox for sessionID and forwards it
// to the WebSocket side when a forward hook is attached.
func (b *Bridge) SendFromHTTP(sessionID string, env protocol.Envelope) {
	b.manager.Push(sessionID, env)

	if b.forward != nil {
		b.forward(env)
	}
}

// Roomcast - Durable Real-Time Room Messaging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roomcast

// Package websocket implements the real-time dispatch core: the hub owning
// the global session registry and the room membership map, per-connection
// clients with bounded send queues and idle timeouts, the typed-envelope
// dispatcher, and the chat application contract.
//
// The hub run loop handles client lifecycle with priority-based channel
// selection so registration and unregistration are always consistent before
// broadcasts are processed. Broadcast enumeration is ordered by monotonic
// client id for deterministic delivery order.
//
// Clients move through a small state machine:
//
//	StateHandshaking -> StateOpen -> StateClosing -> StateClosed
//
// A client leaves StateOpen on read error, peer close, idle timeout, send
// queue overflow or server shutdown; unregistration sweeps it from every
// room and the global registry.
package websocket

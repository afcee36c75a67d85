// Roomcast - Durable Real-Time Room Messaging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roomcast

// Package longpoll implements the HTTP long-polling fallback.
//
// Each long-poll session is a bounded FIFO mailbox keyed by an opaque
// session_id chosen by the HTTP client (or synthesized as "room:<name>" /
// "broadcast" by the default resolver). Mailboxes drop their oldest entry on
// overflow and expire after a TTL without activity; an expired mailbox is
// reclaimed by the periodic sweeper.
//
// The Bridge is the single fan-out point between the WebSocket dispatcher,
// the HTTP /ws/send endpoint and the mailboxes. HTTP sends reach WebSocket
// subscribers only through the bridge's forward hook.
package longpoll

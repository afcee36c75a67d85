// Roomcast - Durable Real-Time Room Messaging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roomcast

// Package api provides the HTTP facade using the chi router: the WebSocket
// upgrade endpoint, the long-polling fallback (poll and send), health, and
// the Prometheus metrics endpoint.
//
// The polling endpoints speak a minimal JSON contract: errors are
// {"error": "<reason>"} objects and accepted sends answer
// {"status": "queued", "session_id": "<sid>"} with 202.
package api

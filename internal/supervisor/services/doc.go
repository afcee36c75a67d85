// Roomcast - Durable Real-Time Room Messaging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roomcast

// Package services wraps the long-running components as suture services:
// the WebSocket hub, the long-poll TTL sweeper, and the HTTP server. Each
// wrapper exposes the component through a narrow interface so the package
// has no dependency on the component packages themselves.
package services

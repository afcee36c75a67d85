// Roomcast - Durable Real-Time Room Messaging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roomcast

// Package middleware provides HTTP middleware for the facade routes:
// request ID tracking for log correlation, Prometheus instrumentation, and
// gzip compression for the polling endpoints.
//
// The metrics wrapper implements http.Hijacker so the WebSocket upgrade
// route can be instrumented like any other.
package middleware

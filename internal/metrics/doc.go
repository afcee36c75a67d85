// Roomcast - Durable Real-Time Room Messaging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roomcast

// Package metrics provides Prometheus instrumentation for Roomcast.
//
// Collectors are registered once at package load via promauto and updated
// through small Record*/Track* helpers so call sites stay one-liners. The
// WebSocket and long-polling collectors carry the roomcast_ws_ prefix; HTTP
// facade collectors use the api_ prefix and are recorded by the
// internal/middleware instrumentation.
//
// Exposition is served by promhttp on GET /metrics in the Prometheus text
// format (version 0.0.4).
package metrics

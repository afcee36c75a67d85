// Roomcast - Durable Real-Time Room Messaging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roomcast

// Package store persists envelopes in a single SQLite table under WAL
// journaling, so readers never block the writer.
//
// Appended envelopes receive a strictly monotonic, lexicographically ordered
// id (a zero-padded microsecond counter), making ListByRoom pagination and
// ReplayFrom catch-up deterministic.
package store

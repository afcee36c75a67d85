// Roomcast - Durable Real-Time Room Messaging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roomcast

// Package supervisor builds the suture supervision tree for the server.
//
// The tree has two layers under the root: messaging (the WebSocket hub and
// the long-poll sweeper) and api (the HTTP server). The split isolates
// failures; a crashing hub is restarted without tearing down the listener.
package supervisor

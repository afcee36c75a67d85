// Roomcast - Durable Real-Time Room Messaging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roomcast

// Package logging provides centralized zerolog-based structured logging
// for Roomcast.
//
// A single global logger is configured once at startup and accessed through
// package-level functions:
//
//	logging.Init(logging.Config{
//	    Level:  "info",
//	    Format: "json",
//	})
//
//	logging.Info().Str("room", room).Msg("Client joined")
//	logging.Err(err).Msg("Store append failed")
//
// # Output Formats
//
// JSON format (production):
//
//	{"level":"info","time":"2026-01-03T10:30:00Z","message":"Server starting","port":9090}
//
// Console format (development):
//
//	10:30:00 INF Server starting port=9090
//
// # Best Practices
//
// Always terminate log chains with .Msg() or .Send(); an unterminated chain
// is silently dropped:
//
//	logging.Info().Str("key", "value").Msg("message")  // Correct
//	logging.Info().Str("key", "value")                 // WRONG - log not emitted
//
// Use structured fields instead of string formatting:
//
//	logging.Info().Str("room", r).Int("count", n).Msg("broadcast")  // Correct
//	logging.Info().Msgf("broadcast %d to %s", n, r)                 // Avoid
//
// # slog Adapter
//
// An slog adapter is provided for libraries that require *slog.Logger,
// such as sutureslog:
//
//	slogger := logging.NewSlogLogger()
//
// # Thread Safety
//
// All exported functions are safe for concurrent use. The global logger is
// protected by a sync.RWMutex for configuration changes.
package logging

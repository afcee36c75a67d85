// Roomcast - Durable Real-Time Room Messaging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roomcast

// Package config loads server configuration from layered sources using
// koanf: built-in defaults, an optional YAML file, then ROOMCAST_-prefixed
// environment variables, each layer overriding the last. The merged result
// is validated before use.
package config

// Roomcast - Durable Real-Time Room Messaging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roomcast

package websocket

import "time"

// Defaults for transport behavior.
const (
	DefaultMaxMessageSize = 64 * 1024
	DefaultIdleTimeout    = 60 * time.Second
	DefaultPingInterval   = 30 * time.Second
	DefaultSendQueueSize  = 1024
	DefaultHistoryLimit   = 50
)

// Config holds the tunables controlling WebSocket session behavior.
type Config struct {
	// MaxMessageSize is the maximum accepted frame payload in bytes.
	MaxMessageSize int64

	// IdleTimeout closes a session after this long without a read.
	// 0 disables the idle timer.
	IdleTimeout time.Duration

	// PingInterval is the cadence of server-initiated pings. 0 disables.
	PingInterval time.Duration

	// EnableDeflate negotiates per-message compression when the client
	// supports it.
	EnableDeflate bool

	// AutoPingPong resets the idle deadline on pong control frames.
	AutoPingPong bool

	// SendQueueSize bounds the per-client send queue; a client whose queue
	// overflows is dropped as overloaded.
	SendQueueSize int

	// MessageRate limits inbound messages per second per client.
	// 0 disables rate limiting.
	MessageRate float64
}

// DefaultConfig returns the default transport configuration.
func DefaultConfig() Config {
	return Config{
		MaxMessageSize: DefaultMaxMessageSize,
		IdleTimeout:    DefaultIdleTimeout,
		PingInterval:   DefaultPingInterval,
		EnableDeflate:  true,
		AutoPingPong:   true,
		SendQueueSize:  DefaultSendQueueSize,
	}
}

// normalize applies defaults for unset values.
func (c Config) normalize() Config {
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = DefaultMaxMessageSize
	}
	if c.SendQueueSize <= 0 {
		c.SendQueueSize = DefaultSendQueueSize
	}
	return c
}

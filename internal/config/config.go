// Roomcast - Durable Real-Time Room Messaging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roomcast

package config

import (
	"fmt"
	"time"

	"github.com/tomtom215/roomcast/internal/validation"
)

// Config is the root configuration for the server.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	WebSocket WebSocketConfig `koanf:"websocket"`
	LongPoll  LongPollConfig  `koanf:"longpoll"`
	Store     StoreConfig     `koanf:"store"`
	Security  SecurityConfig  `koanf:"security"`
	NATS      NATSConfig      `koanf:"nats"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host    string        `koanf:"host" validate:"required"`
	Timeout time.Duration `koanf:"timeout" validate:"gt=0"`
}

// WebSocketConfig controls the real-time transport and the chat contract.
type WebSocketConfig struct {
	Port           int           `koanf:"port" validate:"min=1024,max=65535"`
	MaxMessageSize int64         `koanf:"max_message_size" validate:"gt=0"`
	IdleTimeout    time.Duration `koanf:"idle_timeout" validate:"gte=0"`
	PingInterval   time.Duration `koanf:"ping_interval" validate:"gte=0"`
	EnableDeflate  bool          `koanf:"enable_deflate"`
	AutoPingPong   bool          `koanf:"auto_ping_pong"`
	SendQueueSize  int           `koanf:"send_queue_size" validate:"gt=0"`
	HistoryLimit   int           `koanf:"history_limit" validate:"gt=0"`
	MessageRate    float64       `koanf:"message_rate" validate:"gte=0"`
}

// LongPollConfig controls the HTTP fallback mailboxes.
type LongPollConfig struct {
	SessionTTL    time.Duration `koanf:"session_ttl" validate:"gt=0"`
	BufferSize    int           `koanf:"buffer_size" validate:"gt=0"`
	SweepInterval time.Duration `koanf:"sweep_interval" validate:"gt=0"`
	PollMax       int           `koanf:"poll_max" validate:"gt=0"`
}

// StoreConfig controls message durability.
type StoreConfig struct {
	Path string `koanf:"path" validate:"required"`
}

// SecurityConfig controls the HTTP facade's rate limiting and CORS policy.
type SecurityConfig struct {
	RateLimitReqs     int           `koanf:"rate_limit_reqs" validate:"gt=0"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window" validate:"gt=0"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	CORSOrigins       []string      `koanf:"cors_origins"`
}

// NATSConfig controls the optional message mirror (builds tagged nats).
type NATSConfig struct {
	Enabled bool   `koanf:"enabled"`
	URL     string `koanf:"url"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error fatal"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns the built-in defaults, applied before the config
// file and environment overrides.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Timeout: 30 * time.Second,
		},
		WebSocket: WebSocketConfig{
			Port:           9090,
			MaxMessageSize: 64 * 1024,
			IdleTimeout:    60 * time.Second,
			PingInterval:   30 * time.Second,
			EnableDeflate:  true,
			AutoPingPong:   true,
			SendQueueSize:  1024,
			HistoryLimit:   50,
			MessageRate:    0, // disabled
		},
		LongPoll: LongPollConfig{
			SessionTTL:    60 * time.Second,
			BufferSize:    256,
			SweepInterval: 10 * time.Second,
			PollMax:       50,
		},
		Store: StoreConfig{
			Path: "roomcast.db",
		},
		Security: SecurityConfig{
			RateLimitReqs:     100,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
			CORSOrigins:       []string{"*"},
		},
		NATS: NATSConfig{
			Enabled: false,
			URL:     "nats://127.0.0.1:4222",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Validate checks the configuration against its struct tags plus the
// cross-field constraints the tags cannot express.
func (c *Config) Validate() error {
	if err := validation.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.NATS.Enabled && c.NATS.URL == "" {
		return fmt.Errorf("nats.url is required when nats.enabled is true")
	}

	if c.WebSocket.IdleTimeout > 0 && c.WebSocket.PingInterval >= c.WebSocket.IdleTimeout {
		return fmt.Errorf("websocket.ping_interval (%s) must be below websocket.idle_timeout (%s)",
			c.WebSocket.PingInterval, c.WebSocket.IdleTimeout)
	}

	return nil
}

// Roomcast - Durable Real-Time Room Messaging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roomcast

// Package client provides a reconnecting WebSocket client for Roomcast
// servers.
//
// The client dials a Roomcast /ws endpoint, decodes inbound frames into
// envelopes and delivers them to a message callback. Outbound sends go
// through a FIFO queue drained by a single writer, so Send never blocks on
// the network. When the connection drops with anything other than a normal
// close, the client makes one reconnect attempt after a configurable delay.
//
//	c := client.New(client.Config{URL: "ws://localhost:9090/ws"})
//	c.OnMessage(func(env protocol.Envelope) {
//		fmt.Println(env.Type, env.Payload.GetString("text", ""))
//	})
//	if err := c.Connect(ctx); err != nil {
//		log.Fatal(err)
//	}
//	c.Send("chat.join", protocol.Payload{
//		{Key: "room", Value: "lobby"},
//		{Key: "user", Value: "alice"},
//	})
package client

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	gws "github.com/gorilla/websocket"

	"github.com/tomtom215/roomcast/internal/protocol"
)

var (
	// ErrClosed is returned by Send after Close has been called.
	ErrClosed = errors.New("client closed")

	// ErrQueueFull is returned by Send when the outbound queue is full.
	ErrQueueFull = errors.New("send queue full")
)

// Config holds client configuration. Zero values fall back to defaults.
type Config struct {
	// URL is the WebSocket endpoint, e.g. "ws://localhost:9090/ws".
	URL string

	// AutoReconnect enables one reconnect attempt after an abnormal
	// disconnect.
	AutoReconnect bool

	// ReconnectDelay is the wait before the reconnect attempt.
	// Default: 3s
	ReconnectDelay time.Duration

	// HeartbeatInterval is the ping interval while connected. Zero keeps
	// the default; negative disables heartbeats.
	// Default: 20s
	HeartbeatInterval time.Duration

	// SendQueueSize bounds the outbound FIFO queue.
	// Default: 64
	SendQueueSize int

	// HandshakeTimeout limits the WebSocket handshake.
	// Default: 10s
	HandshakeTimeout time.Duration

	// WriteTimeout limits each frame write.
	// Default: 10s
	WriteTimeout time.Duration
}

func (c *Config) normalize() {
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = 3 * time.Second
	}
	if c.HeartbeatInterval == 0 {
		c.HeartbeatInterval = 20 * time.Second
	}
	if c.SendQueueSize <= 0 {
		c.SendQueueSize = 64
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = 10 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
}

// Client is a reconnecting Roomcast WebSocket client. Callbacks must be set
// before Connect; they are invoked from the client's internal goroutines.
type Client struct {
	cfg    Config
	dialer *gws.Dialer

	mu   sync.Mutex
	conn *gws.Conn
	ctx  context.Context

	sendQ chan string

	closed        atomic.Bool
	closeNotified atomic.Bool
	reconnecting  atomic.Bool

	onOpen    func()
	onMessage func(protocol.Envelope)
	onClose   func()
	onError   func(error)
}

// New creates a client. Call Connect to establish the connection.
func New(cfg Config) *Client {
	cfg.normalize()
	return &Client{
		cfg:    cfg,
		dialer: &gws.Dialer{HandshakeTimeout: cfg.HandshakeTimeout},
		sendQ:  make(chan string, cfg.SendQueueSize),
	}
}

// OnOpen sets the callback invoked after each successful connect, including
// reconnects.
func (c *Client) OnOpen(fn func()) { c.onOpen = fn }

// OnMessage sets the callback for inbound envelopes. Frames that do not
// parse as envelopes are dropped.
func (c *Client) OnMessage(fn func(protocol.Envelope)) { c.onMessage = fn }

// OnClose sets the callback invoked once the connection is permanently down.
func (c *Client) OnClose(fn func()) { c.onClose = fn }

// OnError sets the callback for transport errors.
func (c *Client) OnError(fn func(error)) { c.onError = fn }

// Connect dials the server and starts the read, write and heartbeat loops.
// The context governs the initial dial and any reconnect attempt.
func (c *Client) Connect(ctx context.Context) error {
	conn, _, err := c.dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.ctx = ctx
	c.mu.Unlock()

	c.startSession(conn)
	if c.onOpen != nil {
		c.onOpen()
	}
	return nil
}

// Close shuts the client down. A close frame is sent on a best-effort basis.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn != nil {
		deadline := time.Now().Add(c.cfg.WriteTimeout)
		_ = conn.WriteControl(gws.CloseMessage,
			gws.FormatCloseMessage(gws.CloseNormalClosure, ""), deadline)
		return conn.Close()
	}
	return nil
}

// Send encodes a typed envelope and enqueues it for delivery. Payload field
// order is preserved on the wire.
func (c *Client) Send(msgType string, payload protocol.Payload) error {
	return c.SendEnvelope(protocol.Envelope{Type: msgType, Payload: payload})
}

// SendEnvelope enqueues a pre-built envelope.
func (c *Client) SendEnvelope(env protocol.Envelope) error {
	if c.closed.Load() {
		return ErrClosed
	}
	frame, err := env.Serialize()
	if err != nil {
		return err
	}
	select {
	case c.sendQ <- frame:
		return nil
	default:
		return ErrQueueFull
	}
}

// startSession launches the per-connection goroutines. sessionDone closes
// when the read loop observes a terminal error, stopping the writer and the
// heartbeat before any reconnect establishes a new connection.
func (c *Client) startSession(conn *gws.Conn) {
	sessionDone := make(chan struct{})
	go c.writeLoop(conn, sessionDone)
	if c.cfg.HeartbeatInterval > 0 {
		go c.heartbeat(conn, sessionDone)
	}
	go c.readLoop(conn, sessionDone)
}

func (c *Client) readLoop(conn *gws.Conn, sessionDone chan struct{}) {
	defer close(sessionDone)

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			c.handleDisconnect(conn, err)
			return
		}
		if msgType != gws.TextMessage {
			continue
		}
		env, err := protocol.Parse(string(data))
		if err != nil {
			continue
		}
		if c.onMessage != nil {
			c.onMessage(env)
		}
	}
}

func (c *Client) writeLoop(conn *gws.Conn, sessionDone <-chan struct{}) {
	for {
		select {
		case frame := <-c.sendQ:
			_ = conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if err := conn.WriteMessage(gws.TextMessage, []byte(frame)); err != nil {
				conn.Close()
				return
			}
		case <-sessionDone:
			return
		}
	}
}

func (c *Client) heartbeat(conn *gws.Conn, sessionDone <-chan struct{}) {
	ticker := time.NewTicker(c.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			deadline := time.Now().Add(c.cfg.WriteTimeout)
			if err := conn.WriteControl(gws.PingMessage, nil, deadline); err != nil {
				return
			}
		case <-sessionDone:
			return
		}
	}
}

// handleDisconnect classifies a read error: clean closes finish the client,
// anything else reports the error and triggers at most one reconnect.
func (c *Client) handleDisconnect(conn *gws.Conn, err error) {
	conn.Close()

	if c.closed.Load() || gws.IsCloseError(err, gws.CloseNormalClosure, gws.CloseGoingAway) {
		c.finish()
		return
	}

	if c.onError != nil {
		c.onError(err)
	}

	if c.cfg.AutoReconnect && c.reconnecting.CompareAndSwap(false, true) {
		go c.reconnect()
		return
	}
	c.finish()
}

func (c *Client) reconnect() {
	defer c.reconnecting.Store(false)

	time.Sleep(c.cfg.ReconnectDelay)
	if c.closed.Load() {
		c.finish()
		return
	}

	c.mu.Lock()
	ctx := c.ctx
	c.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}

	conn, _, err := c.dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		if c.onError != nil {
			c.onError(err)
		}
		c.finish()
		return
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	c.startSession(conn)
	if c.onOpen != nil {
		c.onOpen()
	}
}

// finish marks the client permanently down and fires OnClose exactly once.
func (c *Client) finish() {
	c.closed.Store(true)
	if !c.closeNotified.CompareAndSwap(false, true) {
		return
	}
	if c.onClose != nil {
		c.onClose()
	}
}

// Roomcast - Durable Real-Time Room Messaging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roomcast

package websocket

import (
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/tomtom215/roomcast/internal/logging"
	"github.com/tomtom215/roomcast/internal/metrics"
)

// writeWait is the time allowed to write a message to the peer.
const writeWait = 10 * time.Second

// State is the lifecycle phase of a client session.
type State int32

const (
	// StateHandshaking covers the window between the HTTP upgrade and the
	// hub registration completing.
	StateHandshaking State = iota

	// StateOpen means the session is registered and exchanging frames.
	StateOpen

	// StateClosing means a close has been initiated but pumps may still be
	// draining.
	StateClosing

	// StateClosed is terminal; the send queue is no longer drained.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateHandshaking:
		return "handshaking"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// clientIDCounter generates monotonically increasing client IDs.
// DETERMINISM: broadcast enumeration sorts on these IDs so delivery order
// matches connection order.
var clientIDCounter atomic.Uint64

// Client is a middleman between a single WebSocket connection and the hub.
type Client struct {
	id   uint64
	hub  *Hub
	conn *websocket.Conn

	// send is the bounded outbound queue of serialized frames. Writes go
	// through non-blocking sends; overflow drops the session. The channel is
	// never closed, so concurrent senders cannot panic against a teardown.
	send chan string

	// done signals the write pump to flush and stop. Closed exactly once via
	// closeSend.
	done      chan struct{}
	closeOnce sync.Once

	state   atomic.Int32
	limiter *rate.Limiter
}

// NewClient wraps an upgraded connection. The caller hands the session to
// the hub with Start.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	c := &Client{
		id:   clientIDCounter.Add(1),
		hub:  hub,
		conn: conn,
		send: make(chan string, hub.cfg.SendQueueSize),
		done: make(chan struct{}),
	}
	if hub.cfg.MessageRate > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(hub.cfg.MessageRate), int(hub.cfg.MessageRate)+1)
	}
	c.state.Store(int32(StateHandshaking))
	return c
}

// ID returns the monotonic client identifier.
func (c *Client) ID() uint64 {
	return c.id
}

// SessionID returns the identifier used for the long-poll mailbox mirror.
func (c *Client) SessionID() string {
	return "ws-" + strconv.FormatUint(c.id, 10)
}

// State returns the client's current lifecycle phase.
func (c *Client) State() State {
	return State(c.state.Load())
}

func (c *Client) setState(s State) {
	c.state.Store(int32(s))
}

// closeSend tells the write pump to flush its queue and stop. Safe to call
// from any goroutine, any number of times.
func (c *Client) closeSend() {
	c.closeOnce.Do(func() { close(c.done) })
}

// Start registers the client and launches the read and write pumps. The
// session is open before the hub sees it, so open hooks can enqueue frames
// immediately.
func (c *Client) Start() {
	c.setState(StateOpen)
	c.hub.Register <- c

	go c.writePump()
	go c.readPump()
}

// Send enqueues a serialized frame for delivery to this client. A full
// queue means the session cannot keep up; it is closed rather than letting
// the writer block the caller. Safe to call concurrently with teardown; a
// frame enqueued after closeSend is simply never drained.
func (c *Client) Send(frame string) bool {
	if c.State() != StateOpen {
		return false
	}
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- frame:
		return true
	default:
		logging.Warn().Uint64("client_id", c.id).
			Msg("send queue full, closing overloaded session")
		c.setState(StateClosing)
		c.hub.Unregister <- c
		return false
	}
}

// readPump pumps messages from the WebSocket connection to the hub.
// One goroutine per connection; all reads happen here.
func (c *Client) readPump() {
	defer func() {
		if c.State() == StateOpen {
			c.setState(StateClosing)
			c.hub.Unregister <- c
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.hub.cfg.MaxMessageSize)
	c.resetIdleDeadline()

	if c.hub.cfg.AutoPingPong {
		c.conn.SetPongHandler(func(string) error {
			c.resetIdleDeadline()
			return nil
		})
		c.conn.SetPingHandler(func(appData string) error {
			c.resetIdleDeadline()
			return c.conn.WriteControl(websocket.PongMessage,
				[]byte(appData), time.Now().Add(writeWait))
		})
	}

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.Warn().Err(err).Uint64("client_id", c.id).
					Msg("websocket read error")
				metrics.RecordError()
			}
			return
		}

		c.resetIdleDeadline()

		if c.limiter != nil && !c.limiter.Allow() {
			metrics.RecordError()
			logging.Warn().Uint64("client_id", c.id).
				Msg("inbound message rate exceeded, frame dropped")
			continue
		}

		switch messageType {
		case websocket.TextMessage:
			c.hub.dispatch(c, string(data))
		case websocket.BinaryMessage:
			c.hub.handleBinary(c, data)
		}
	}
}

// resetIdleDeadline pushes out the read deadline; sessions idle past the
// configured timeout are closed by the next blocked read.
func (c *Client) resetIdleDeadline() {
	if c.hub.cfg.IdleTimeout > 0 {
		c.conn.SetReadDeadline(time.Now().Add(c.hub.cfg.IdleTimeout))
	}
}

// writePump pumps frames from the send queue to the WebSocket connection
// and keeps the connection alive with periodic pings. One goroutine per
// connection; all writes happen here.
func (c *Client) writePump() {
	pingC, stopPing := pingTicker(c.hub.cfg.PingInterval)
	defer func() {
		stopPing()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.flushAndClose()
			return

		case frame := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
				logging.Debug().Err(err).Uint64("client_id", c.id).
					Msg("websocket write failed")
				return
			}

		case <-pingC:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// pingTicker returns the channel driving server-initiated pings. A
// non-positive interval disables pings; the nil channel never fires.
func pingTicker(interval time.Duration) (<-chan time.Time, func()) {
	if interval <= 0 {
		return nil, func() {}
	}
	t := time.NewTicker(interval)
	return t.C, t.Stop
}

// flushAndClose drains frames queued before the teardown, then sends the
// close frame.
func (c *Client) flushAndClose() {
	for {
		select {
		case frame := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
				return
			}
		default:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

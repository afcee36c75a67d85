// Roomcast - Durable Real-Time Room Messaging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roomcast

package websocket

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/roomcast/internal/protocol"
)

// errPingSeen aborts a peer's read loop once its ping handler has run.
var errPingSeen = errors.New("ping observed")

// dialTestHub serves the hub behind an httptest server and returns a
// connected peer. Each accepted connection goes through the full
// NewClient/Start lifecycle.
func dialTestHub(t *testing.T, h *Hub) *websocket.Conn {
	t.Helper()

	upgrader := websocket.Upgrader{
		CheckOrigin:       func(*http.Request) bool { return true },
		EnableCompression: h.Config().EnableDeflate,
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		NewClient(h, conn).Start()
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestClientEchoThroughDispatcher(t *testing.T) {
	h, cancel := startHub(t)
	defer cancel()

	// Echo every envelope back to its sender.
	h.Dispatcher().HandleFallback(func(c *Client, env protocol.Envelope) {
		c.Send(env.MustSerialize())
	})

	conn := dialTestHub(t, h)

	frame := `{"type":"echo","payload":{"n":1}}`
	if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}

	env, err := protocol.Parse(string(data))
	if err != nil {
		t.Fatalf("echo not parseable: %v", err)
	}
	if env.Type != "echo" {
		t.Errorf("echo type = %q", env.Type)
	}
}

func TestClientInvalidFrameDoesNotCloseSession(t *testing.T) {
	h, cancel := startHub(t)
	defer cancel()

	h.Dispatcher().HandleFallback(func(c *Client, env protocol.Envelope) {
		c.Send(env.MustSerialize())
	})

	conn := dialTestHub(t, h)

	// Garbage, then a missing type, then a valid frame. Only the valid
	// frame comes back.
	conn.WriteMessage(websocket.TextMessage, []byte(`not json`))
	conn.WriteMessage(websocket.TextMessage, []byte(`{"payload":{"a":1}}`))
	conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ok"}`))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("session closed after invalid frames: %v", err)
	}
	env, err := protocol.Parse(string(data))
	if err != nil || env.Type != "ok" {
		t.Errorf("got %q, want the valid frame echoed", string(data))
	}
}

func TestClientBinaryPassthrough(t *testing.T) {
	h, cancel := startHub(t)
	defer cancel()

	received := make(chan []byte, 1)
	h.OnBinary(func(_ *Client, data []byte) { received <- data })

	conn := dialTestHub(t, h)

	payload := []byte{0x01, 0x02, 0xFF}
	if err := conn.WriteMessage(websocket.BinaryMessage, payload); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	select {
	case data := <-received:
		if len(data) != 3 || data[2] != 0xFF {
			t.Errorf("binary frame mangled: %v", data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("binary frame not delivered")
	}
}

func TestClientPeerCloseUnregisters(t *testing.T) {
	h, cancel := startHub(t)
	defer cancel()

	conn := dialTestHub(t, h)
	time.Sleep(50 * time.Millisecond)

	if got := h.ClientCount(); got != 1 {
		t.Fatalf("client count = %d, want 1", got)
	}

	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	conn.Close()
	time.Sleep(100 * time.Millisecond)

	if got := h.ClientCount(); got != 0 {
		t.Errorf("client count after peer close = %d, want 0", got)
	}
}

func TestClientIdleTimeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.IdleTimeout = 100 * time.Millisecond
	cfg.PingInterval = time.Hour // keep server pings out of the way

	h := NewHub(cfg)
	ctx, hubCancel := context.WithCancel(context.Background())
	defer hubCancel()
	go h.RunWithContext(ctx)

	conn := dialTestHub(t, h)
	time.Sleep(50 * time.Millisecond)

	if got := h.ClientCount(); got != 1 {
		t.Fatalf("client count = %d, want 1", got)
	}

	// Say nothing; the idle deadline expires the session.
	time.Sleep(300 * time.Millisecond)

	if got := h.ClientCount(); got != 0 {
		t.Errorf("client count after idle timeout = %d, want 0", got)
	}
	_ = conn
}

func TestClientActivityResetsIdleDeadline(t *testing.T) {
	cfg := DefaultConfig()
	cfg.IdleTimeout = 200 * time.Millisecond
	cfg.PingInterval = time.Hour

	h := NewHub(cfg)
	ctx, hubCancel := context.WithCancel(context.Background())
	defer hubCancel()
	go h.RunWithContext(ctx)

	conn := dialTestHub(t, h)

	// Keep writing below the timeout; the session must stay open.
	for i := 0; i < 4; i++ {
		time.Sleep(100 * time.Millisecond)
		if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)); err != nil {
			t.Fatalf("write %d failed: %v", i, err)
		}
	}
	time.Sleep(50 * time.Millisecond)

	if got := h.ClientCount(); got != 1 {
		t.Errorf("client count = %d, want 1 while active", got)
	}
}

func TestClientInboundRateLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MessageRate = 5

	h := NewHub(cfg)
	ctx, hubCancel := context.WithCancel(context.Background())
	defer hubCancel()
	go h.RunWithContext(ctx)

	var handled atomic.Int32
	done := make(chan struct{})
	h.Dispatcher().Handle("burst", func(*Client, protocol.Envelope) {
		if handled.Add(1) == 1 {
			close(done)
		}
	})

	conn := dialTestHub(t, h)

	for i := 0; i < 50; i++ {
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"burst"}`))
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("no frame made it through the limiter")
	}
	time.Sleep(100 * time.Millisecond)

	// Burst capacity admits a handful; the rest of the 50 are shed.
	if got := handled.Load(); got >= 50 {
		t.Errorf("handled %d frames, expected the limiter to shed some", got)
	}

	// The session itself stays open; only frames are dropped.
	if got := h.ClientCount(); got != 1 {
		t.Errorf("client count = %d, want 1", got)
	}
}

func TestPingTickerDisabledByZeroInterval(t *testing.T) {
	pingC, stop := pingTicker(0)
	defer stop()
	if pingC != nil {
		t.Error("zero interval should yield a nil ping channel")
	}

	pingC, stop = pingTicker(10 * time.Millisecond)
	defer stop()
	if pingC == nil {
		t.Error("positive interval should yield a live ping channel")
	}
}

func TestServerPingsArriveAtInterval(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PingInterval = 30 * time.Millisecond

	h := NewHub(cfg)
	ctx, hubCancel := context.WithCancel(context.Background())
	defer hubCancel()
	go h.RunWithContext(ctx)

	conn := dialTestHub(t, h)

	pinged := make(chan struct{})
	conn.SetPingHandler(func(string) error {
		close(pinged)
		return errPingSeen
	})

	// Control frames are processed inside ReadMessage.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	conn.ReadMessage()

	select {
	case <-pinged:
	default:
		t.Error("no server ping within the configured interval")
	}
}

func TestServerPingsDisabledByZeroInterval(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PingInterval = 0

	h := NewHub(cfg)
	ctx, hubCancel := context.WithCancel(context.Background())
	defer hubCancel()
	go h.RunWithContext(ctx)

	conn := dialTestHub(t, h)

	pinged := make(chan struct{})
	conn.SetPingHandler(func(string) error {
		close(pinged)
		return errPingSeen
	})

	conn.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	conn.ReadMessage()

	select {
	case <-pinged:
		t.Error("server sent a ping although pings are disabled")
	default:
	}
}

func TestOpenHookObservesOpenSession(t *testing.T) {
	h, cancel := startHub(t)
	defer cancel()

	observed := make(chan State, 1)
	h.OnOpen(func(c *Client) {
		observed <- c.State()
		c.Send(`{"type":"greeting","payload":{}}`)
	})

	conn := dialTestHub(t, h)

	select {
	case s := <-observed:
		if s != StateOpen {
			t.Errorf("open hook observed state %v, want open", s)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("open hook not invoked")
	}

	// The hook's frame must not be dropped by a not-yet-open state check.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	env, err := protocol.Parse(string(data))
	if err != nil || env.Type != "greeting" {
		t.Errorf("got %q, want the hook's greeting frame", string(data))
	}
}

func TestSessionIDFormat(t *testing.T) {
	h := NewHub(DefaultConfig())
	c := newTestClient(h)

	sid := c.SessionID()
	if !strings.HasPrefix(sid, "ws-") {
		t.Errorf("session id = %q, want ws- prefix", sid)
	}
}

func TestStateString(t *testing.T) {
	states := map[State]string{
		StateHandshaking: "handshaking",
		StateOpen:        "open",
		StateClosing:     "closing",
		StateClosed:      "closed",
		State(99):        "unknown",
	}
	for s, want := range states {
		if s.String() != want {
			t.Errorf("State(%d).String() = %q, want %q", s, s.String(), want)
		}
	}
}

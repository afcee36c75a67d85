// Roomcast - Durable Real-Time Room Messaging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roomcast

package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	gorillaws "github.com/gorilla/websocket"

	"github.com/tomtom215/roomcast/internal/config"
	"github.com/tomtom215/roomcast/internal/logging"
	"github.com/tomtom215/roomcast/internal/longpoll"
	"github.com/tomtom215/roomcast/internal/protocol"
	"github.com/tomtom215/roomcast/internal/store"
	"github.com/tomtom215/roomcast/internal/websocket"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{Level: "info", Format: "console", Output: io.Discard})
}

type testServer struct {
	srv    *httptest.Server
	hub    *websocket.Hub
	bridge *longpoll.Bridge
	store  *store.Store
}

// newTestServer assembles the full stack the way cmd/server does: store,
// hub with the chat contract, long-poll bridge mirrored off the
// dispatcher, and the chi facade on top.
func newTestServer(t *testing.T) *testServer {
	t.Helper()

	cfg := testConfig()

	st, err := store.Open(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	hub := websocket.NewHub(websocket.Config{
		MaxMessageSize: cfg.WebSocket.MaxMessageSize,
		IdleTimeout:    cfg.WebSocket.IdleTimeout,
		PingInterval:   cfg.WebSocket.PingInterval,
		EnableDeflate:  cfg.WebSocket.EnableDeflate,
		AutoPingPong:   cfg.WebSocket.AutoPingPong,
		SendQueueSize:  cfg.WebSocket.SendQueueSize,
	})
	websocket.NewChatApp(hub, st, cfg.WebSocket.HistoryLimit)

	manager := longpoll.NewManager(cfg.LongPoll.SessionTTL, cfg.LongPoll.BufferSize)
	bridge := longpoll.NewBridge(manager, nil, ForwardToHub(hub))
	hub.Dispatcher().AddMirror(bridge.OnWSMessage)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.RunWithContext(ctx)

	handler := NewHandler(cfg, hub, bridge)
	srv := httptest.NewServer(NewRouter(cfg, handler))
	t.Cleanup(srv.Close)

	return &testServer{srv: srv, hub: hub, bridge: bridge, store: st}
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Host: "127.0.0.1", Timeout: 5 * time.Second},
		WebSocket: config.WebSocketConfig{
			Port:           9090,
			MaxMessageSize: 64 * 1024,
			IdleTimeout:    60 * time.Second,
			PingInterval:   30 * time.Second,
			EnableDeflate:  true,
			AutoPingPong:   true,
			SendQueueSize:  64,
			HistoryLimit:   50,
		},
		LongPoll: config.LongPollConfig{
			SessionTTL:    time.Minute,
			BufferSize:    256,
			SweepInterval: 10 * time.Second,
			PollMax:       50,
		},
		Security: config.SecurityConfig{
			RateLimitDisabled: true,
			CORSOrigins:       []string{"*"},
		},
		Logging: config.LoggingConfig{Level: "info", Format: "console"},
	}
}

func (ts *testServer) dialWS(t *testing.T) *gorillaws.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(ts.srv.URL, "http") + "/ws"
	conn, _, err := gorillaws.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *gorillaws.Conn) protocol.Envelope {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	env, err := protocol.Parse(string(data))
	if err != nil {
		t.Fatalf("parse %q: %v", string(data), err)
	}
	return env
}

func decodeBody(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode body: %v", err)
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}

	var body map[string]string
	decodeBody(t, resp, &body)
	if body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	for _, name := range []string{
		"roomcast_ws_connections_total",
		"roomcast_ws_lp_polls_total",
		"api_requests_total",
	} {
		if !strings.Contains(string(body), name) {
			t.Errorf("exposition missing %s", name)
		}
	}
}

func TestPollRequiresSessionID(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.srv.URL + "/ws/poll")
	if err != nil {
		t.Fatalf("GET /ws/poll: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}

	var body map[string]string
	decodeBody(t, resp, &body)
	if body["error"] != "missing_session_id" {
		t.Errorf(`error = %q, want "missing_session_id"`, body["error"])
	}
}

func TestPollFreshSessionReturnsEmptyArray(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.srv.URL + "/ws/poll?session_id=fresh")
	if err != nil {
		t.Fatalf("GET /ws/poll: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if strings.TrimSpace(string(body)) != "[]" {
		t.Errorf("body = %q, want []", string(body))
	}
}

func TestSendRejectsInvalidJSON(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Post(ts.srv.URL+"/ws/send", "application/json",
		strings.NewReader("not json"))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}

	var body map[string]string
	decodeBody(t, resp, &body)
	if body["error"] != "invalid JSON body" {
		t.Errorf("error = %q", body["error"])
	}
}

func TestSendRejectsMissingType(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Post(ts.srv.URL+"/ws/send", "application/json",
		strings.NewReader(`{"room":"africa","payload":{"text":"hi"}}`))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}

	var body map[string]string
	decodeBody(t, resp, &body)
	if body["error"] != "missing 'type' field" {
		t.Errorf("error = %q", body["error"])
	}
}

func TestSendSynthesizesRoomSession(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Post(ts.srv.URL+"/ws/send", "application/json",
		strings.NewReader(`{"room":"africa","type":"chat.message","payload":{"text":"hi"}}`))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	if resp.StatusCode != http.StatusAccepted {
		t.Errorf("status = %d, want 202", resp.StatusCode)
	}

	var body map[string]string
	decodeBody(t, resp, &body)
	if body["status"] != "queued" {
		t.Errorf("status field = %q", body["status"])
	}
	if body["session_id"] != "room:africa" {
		t.Errorf("session_id = %q, want room:africa", body["session_id"])
	}
}

func TestSendDefaultsToBroadcastSession(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Post(ts.srv.URL+"/ws/send", "application/json",
		strings.NewReader(`{"type":"announce","payload":{"text":"hi"}}`))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}

	var body map[string]string
	decodeBody(t, resp, &body)
	if body["session_id"] != "broadcast" {
		t.Errorf("session_id = %q, want broadcast", body["session_id"])
	}
}

func TestSendHonorsExplicitSessionID(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Post(ts.srv.URL+"/ws/send", "application/json",
		strings.NewReader(`{"session_id":"mine","type":"t","payload":{}}`))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}

	var body map[string]string
	decodeBody(t, resp, &body)
	if body["session_id"] != "mine" {
		t.Errorf("session_id = %q, want mine", body["session_id"])
	}
}

func TestSendThenPollRoundTrip(t *testing.T) {
	ts := newTestServer(t)

	for _, text := range []string{"t1", "t2"} {
		frame := `{"room":"africa","type":"chat.message","payload":{"text":"` + text + `"}}`
		resp, err := http.Post(ts.srv.URL+"/ws/send", "application/json",
			strings.NewReader(frame))
		if err != nil {
			t.Fatalf("POST: %v", err)
		}
		resp.Body.Close()
	}

	resp, err := http.Get(ts.srv.URL + "/ws/poll?session_id=room:africa&max=10")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		t.Fatalf("body %q not an array: %v", string(body), err)
	}
	if len(raw) != 2 {
		t.Fatalf("drained %d envelopes, want 2", len(raw))
	}

	// FIFO order preserved.
	for i, want := range []string{"t1", "t2"} {
		env, err := protocol.Parse(string(raw[i]))
		if err != nil {
			t.Fatalf("element %d: %v", i, err)
		}
		if got := env.Payload.GetString("text", ""); got != want {
			t.Errorf("element %d text = %q, want %q", i, got, want)
		}
	}

	// Drained means gone.
	resp2, err := http.Get(ts.srv.URL + "/ws/poll?session_id=room:africa")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp2.Body.Close()
	body2, _ := io.ReadAll(resp2.Body)
	if strings.TrimSpace(string(body2)) != "[]" {
		t.Errorf("second poll = %q, want []", string(body2))
	}
}

func TestPollMaxDefaultsOnParseError(t *testing.T) {
	ts := newTestServer(t)

	env := protocol.Envelope{Type: "t"}
	for i := 0; i < 60; i++ {
		ts.bridge.Manager().Push("sid", env)
	}

	resp, err := http.Get(ts.srv.URL + "/ws/poll?session_id=sid&max=bogus")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if len(raw) != 50 {
		t.Errorf("drained %d, want the default 50", len(raw))
	}
}

func TestWebSocketUpgradeThroughRouter(t *testing.T) {
	ts := newTestServer(t)

	conn := ts.dialWS(t)

	welcome := readFrame(t, conn)
	if welcome.Type != "chat.system" {
		t.Errorf("welcome type = %q", welcome.Type)
	}
}

func TestHTTPSendReachesWebSocketClients(t *testing.T) {
	ts := newTestServer(t)

	conn := ts.dialWS(t)
	readFrame(t, conn) // welcome

	if err := conn.WriteMessage(gorillaws.TextMessage,
		[]byte(`{"type":"chat.join","payload":{"room":"africa","user":"ada"}}`)); err != nil {
		t.Fatalf("join: %v", err)
	}
	readFrame(t, conn) // join notice
	time.Sleep(50 * time.Millisecond)

	resp, err := http.Post(ts.srv.URL+"/ws/send", "application/json",
		strings.NewReader(`{"room":"africa","type":"chat.message","payload":{"text":"from http"}}`))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()

	env := readFrame(t, conn)
	if got := env.Payload.GetString("text", ""); got != "from http" {
		t.Errorf("ws client received %q", got)
	}
}

func TestWebSocketTrafficMirroredToLongPoll(t *testing.T) {
	ts := newTestServer(t)

	conn := ts.dialWS(t)
	readFrame(t, conn) // welcome

	if err := conn.WriteMessage(gorillaws.TextMessage,
		[]byte(`{"room":"africa","type":"chat.message","payload":{"text":"over ws"}}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	time.Sleep(100 * time.Millisecond)

	resp, err := http.Get(ts.srv.URL + "/ws/poll?session_id=room:africa")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if len(raw) != 1 {
		t.Fatalf("mirrored %d envelopes, want 1", len(raw))
	}
	env, err := protocol.Parse(string(raw[0]))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := env.Payload.GetString("text", ""); got != "over ws" {
		t.Errorf("mirrored text = %q", got)
	}
}

func TestRequestIDHeaderOnFacadeRoutes(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()

	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("facade responses should carry X-Request-ID")
	}
}

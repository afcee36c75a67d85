// Roomcast - Durable Real-Time Room Messaging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roomcast

package api

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	gorillaws "github.com/gorilla/websocket"

	"github.com/tomtom215/roomcast/internal/config"
	"github.com/tomtom215/roomcast/internal/logging"
	"github.com/tomtom215/roomcast/internal/longpoll"
	"github.com/tomtom215/roomcast/internal/metrics"
	"github.com/tomtom215/roomcast/internal/protocol"
	"github.com/tomtom215/roomcast/internal/websocket"
)

// maxSendBodySize bounds /ws/send request bodies, mirroring the frame
// limit on the WebSocket transport.
const maxSendBodySize = 64 * 1024

// Handler serves the HTTP facade routes.
type Handler struct {
	cfg      *config.Config
	hub      *websocket.Hub
	bridge   *longpoll.Bridge
	upgrader gorillaws.Upgrader
}

// NewHandler wires the facade over the hub and the long-poll bridge.
func NewHandler(cfg *config.Config, hub *websocket.Hub, bridge *longpoll.Bridge) *Handler {
	h := &Handler{cfg: cfg, hub: hub, bridge: bridge}
	h.upgrader = gorillaws.Upgrader{
		ReadBufferSize:    4096,
		WriteBufferSize:   4096,
		EnableCompression: cfg.WebSocket.EnableDeflate,
		CheckOrigin:       h.checkOrigin,
	}
	return h
}

// checkOrigin admits upgrade requests from the configured CORS origins.
func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.cfg.Security.CORSOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

// WebSocket upgrades the connection and hands it to the hub.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		metrics.RecordError()
		logging.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("websocket upgrade failed")
		return
	}

	websocket.NewClient(h.hub, conn).Start()
}

// Poll drains the caller's long-poll mailbox.
//
// GET /ws/poll?session_id=<sid>&max=<N>
// Answers a JSON array of envelopes, oldest first. A missing session is
// created empty so subsequent traffic accumulates for the caller.
func (h *Handler) Poll(w http.ResponseWriter, r *http.Request) {
	sid := r.URL.Query().Get("session_id")
	if sid == "" {
		writeError(w, http.StatusBadRequest, ErrMissingSessionID)
		return
	}

	max := h.cfg.LongPoll.PollMax
	if maxStr := r.URL.Query().Get("max"); maxStr != "" {
		if parsed, err := strconv.Atoi(maxStr); err == nil && parsed > 0 {
			max = parsed
		}
	}

	envelopes := h.bridge.Poll(sid, max)

	frames := make([]string, 0, len(envelopes))
	for _, env := range envelopes {
		frame, err := env.Serialize()
		if err != nil {
			metrics.RecordError()
			continue
		}
		frames = append(frames, frame)
	}

	// Envelopes are already serialized with ordered payloads; assemble the
	// array by hand instead of re-encoding through maps.
	writeRawJSON(w, http.StatusOK, []byte("["+strings.Join(frames, ",")+"]"))
}

// Send injects one envelope over HTTP.
//
// POST /ws/send with a JSON envelope body. When session_id is absent it is
// synthesized as room:<room> or broadcast. The envelope lands in the
// long-poll mailbox and is forwarded onto the WebSocket bus.
func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxSendBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrInvalidJSONBody)
		return
	}

	req, err := parseSendRequest(string(body))
	if err != nil {
		switch err {
		case errMissingType:
			writeError(w, http.StatusBadRequest, ErrMissingTypeField)
		default:
			writeError(w, http.StatusBadRequest, ErrInvalidJSONBody)
		}
		return
	}

	sid := req.SessionID
	if sid == "" {
		sid = longpoll.DefaultResolver(req.Envelope)
	}

	h.bridge.SendFromHTTP(sid, req.Envelope)

	writeJSON(w, http.StatusAccepted, queuedResponse{
		Status:    "queued",
		SessionID: sid,
	})
}

// ForwardToHub returns the bridge forward hook broadcasting HTTP-injected
// envelopes onto the WebSocket bus.
func ForwardToHub(hub *websocket.Hub) longpoll.Forward {
	return func(env protocol.Envelope) {
		frame, err := env.Serialize()
		if err != nil {
			metrics.RecordError()
			return
		}
		if env.Room != "" {
			metrics.RecordMessagesOut(hub.BroadcastRoomText(env.Room, frame))
			return
		}
		metrics.RecordMessagesOut(hub.BroadcastGlobalText(frame))
	}
}

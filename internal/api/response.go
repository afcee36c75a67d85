// Roomcast - Durable Real-Time Room Messaging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roomcast

package api

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/tomtom215/roomcast/internal/logging"
)

// Facade error reasons. These are wire contract, not display text.
const (
	ErrMissingSessionID = "missing_session_id"
	ErrInvalidJSONBody  = "invalid JSON body"
	ErrMissingTypeField = "missing 'type' field"
)

// errorResponse is the facade's error body.
type errorResponse struct {
	Error string `json:"error"`
}

// queuedResponse acknowledges an accepted send.
type queuedResponse struct {
	Status    string `json:"status"`
	SessionID string `json:"session_id"`
}

// healthResponse is the health endpoint body.
type healthResponse struct {
	Status string `json:"status"`
}

// writeJSON writes v with proper headers. Encoding failures are logged;
// the status line has already gone out.
func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error().Err(err).Msg("failed to encode JSON response")
	}
}

// writeError writes the facade's {"error": reason} body.
func writeError(w http.ResponseWriter, statusCode int, reason string) {
	writeJSON(w, statusCode, errorResponse{Error: reason})
}

// writeRawJSON writes a pre-serialized JSON document unchanged. Envelope
// frames are already serialized with ordered payloads; re-encoding them
// through a map would scramble the field order.
func writeRawJSON(w http.ResponseWriter, statusCode int, body []byte) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)

	if _, err := w.Write(body); err != nil {
		logging.Error().Err(err).Msg("failed to write JSON response")
	}
}

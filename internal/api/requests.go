// Roomcast - Durable Real-Time Room Messaging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roomcast

package api

import (
	"errors"

	"github.com/goccy/go-json"

	"github.com/tomtom215/roomcast/internal/protocol"
	"github.com/tomtom215/roomcast/internal/validation"
)

var (
	errInvalidBody = errors.New("invalid send body")
	errMissingType = errors.New("missing type field")
)

// sendProbe captures the facade-level fields of a /ws/send body. The
// envelope itself is re-parsed with the ordered-payload decoder; this probe
// only answers "is it JSON" and "where does it go".
type sendProbe struct {
	SessionID string `json:"session_id"`
	Type      string `json:"type" validate:"required"`
}

// sendRequest is a validated /ws/send body.
type sendRequest struct {
	SessionID string
	Envelope  protocol.Envelope
}

// parseSendRequest validates and decodes a /ws/send body. It distinguishes
// malformed JSON (errInvalidBody) from a structurally valid body missing
// its type (errMissingType).
func parseSendRequest(body string) (sendRequest, error) {
	var probe sendProbe
	if err := json.Unmarshal([]byte(body), &probe); err != nil {
		return sendRequest{}, errInvalidBody
	}

	if verr := validation.Struct(&probe); verr != nil {
		return sendRequest{}, errMissingType
	}

	env, err := protocol.Parse(body)
	if err != nil {
		return sendRequest{}, errInvalidBody
	}

	return sendRequest{SessionID: probe.SessionID, Envelope: env}, nil
}

// Roomcast - Durable Real-Time Room Messaging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roomcast

package protocol

import (
	"errors"
	"fmt"
	"strings"

	json "github.com/goccy/go-json"
)

// Envelope kinds.
const (
	KindEvent   = "event"
	KindSystem  = "system"
	KindHistory = "history"
	KindError   = "error"
)

var (
	// ErrInvalidEnvelope is returned when a frame is not a JSON object or
	// its "type" field is empty after decoding.
	ErrInvalidEnvelope = errors.New("invalid envelope")

	// ErrDuplicateKey is returned when a payload contains the same key twice
	// at encode time.
	ErrDuplicateKey = errors.New("duplicate payload key")
)

// Envelope is the canonical message value exchanged over WebSocket frames,
// long-polling mailboxes and the message store.
//
// ID is an opaque lexicographically ordered string assigned by the store at
// append time when empty. TS is an ISO-8601 UTC timestamp, also assigned at
// append time when empty. An empty Room denotes a global message.
type Envelope struct {
	ID      string
	Kind    string
	TS      string
	Room    string
	Type    string
	Payload Payload
}

// Parse decodes a text frame into an envelope.
// Returns ErrInvalidEnvelope when the input is not a JSON object or the
// decoded "type" is empty. Envelope fields holding non-string JSON values
// are treated as absent.
func Parse(text string) (Envelope, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return Envelope{}, fmt.Errorf("%w: %s", ErrInvalidEnvelope, err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return Envelope{}, fmt.Errorf("%w: frame is not a JSON object", ErrInvalidEnvelope)
	}

	var env Envelope

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return Envelope{}, fmt.Errorf("%w: %s", ErrInvalidEnvelope, err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return Envelope{}, fmt.Errorf("%w: non-string object key", ErrInvalidEnvelope)
		}

		value, err := decodeValue(dec)
		if err != nil {
			return Envelope{}, err
		}

		switch key {
		case "id":
			env.ID, _ = value.(string)
		case "kind":
			env.Kind, _ = value.(string)
		case "ts":
			env.TS, _ = value.(string)
		case "room":
			env.Room, _ = value.(string)
		case "type":
			env.Type, _ = value.(string)
		case "payload":
			if p, ok := value.(Payload); ok {
				env.Payload = p
			}
		}
	}

	if _, err := dec.Token(); err != nil { // closing brace
		return Envelope{}, fmt.Errorf("%w: %s", ErrInvalidEnvelope, err)
	}

	if env.Type == "" {
		return Envelope{}, fmt.Errorf("%w: empty type", ErrInvalidEnvelope)
	}

	return env, nil
}

// Serialize encodes the envelope as its canonical JSON form: optional fields
// are emitted only when non-empty, followed by the required "type" and
// "payload".
func (e Envelope) Serialize() (string, error) {
	var b strings.Builder
	b.WriteByte('{')

	emit := func(key, value string) error {
		if b.Len() > 1 {
			b.WriteByte(',')
		}
		if err := encodeString(&b, key); err != nil {
			return err
		}
		b.WriteByte(':')
		return encodeString(&b, value)
	}

	optional := []struct{ key, value string }{
		{"id", e.ID},
		{"kind", e.Kind},
		{"ts", e.TS},
		{"room", e.Room},
	}
	for _, f := range optional {
		if f.value == "" {
			continue
		}
		if err := emit(f.key, f.value); err != nil {
			return "", err
		}
	}

	if err := emit("type", e.Type); err != nil {
		return "", err
	}

	b.WriteString(`,"payload":`)
	if err := encodePayload(&b, e.Payload); err != nil {
		return "", err
	}

	b.WriteByte('}')
	return b.String(), nil
}

// MustSerialize is Serialize panicking on encode failure. Encoding only fails
// on duplicate payload keys or unsupported value types, both programmer
// errors on locally constructed envelopes.
func (e Envelope) MustSerialize() string {
	s, err := e.Serialize()
	if err != nil {
		panic(err)
	}
	return s
}

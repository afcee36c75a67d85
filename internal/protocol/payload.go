// Roomcast - Durable Real-Time Room Messaging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roomcast

package protocol

import (
	"fmt"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
)

// Field is one key/value pair of a payload.
//
// Value holds one of: string, int64, float64, bool, nil, Payload (nested
// object), or []any (list whose elements are drawn from the same set).
type Field struct {
	Key   string
	Value any
}

// Payload is an ordered sequence of key/value fields. Keys are unique;
// ordering is observable on the wire but not part of equality.
type Payload []Field

// Get returns the value for key and whether it was present.
func (p Payload) Get(key string) (any, bool) {
	for _, f := range p {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// GetString returns the string value for key, or def when the key is absent
// or holds a non-string value.
func (p Payload) GetString(key, def string) string {
	if v, ok := p.Get(key); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// Set replaces the value for key in place, or appends a new field when the
// key is absent. Returns the updated payload.
func (p Payload) Set(key string, value any) Payload {
	for i, f := range p {
		if f.Key == key {
			p[i].Value = value
			return p
		}
	}
	return append(p, Field{Key: key, Value: value})
}

// MarshalJSON encodes the payload as a JSON object preserving field order.
// Duplicate keys are rejected.
func (p Payload) MarshalJSON() ([]byte, error) {
	var b strings.Builder
	if err := encodePayload(&b, p); err != nil {
		return nil, err
	}
	return []byte(b.String()), nil
}

// UnmarshalJSON decodes a JSON object into an ordered payload. When the same
// key appears more than once the last occurrence wins.
func (p *Payload) UnmarshalJSON(data []byte) error {
	parsed, err := ParsePayload(string(data))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// ParsePayload decodes text as a JSON object into an ordered payload.
func ParsePayload(text string) (Payload, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidEnvelope, err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("%w: payload is not a JSON object", ErrInvalidEnvelope)
	}

	return decodeObject(dec)
}

// decodeObject consumes object members up to and including the closing brace.
// The opening brace must already have been consumed.
func decodeObject(dec *json.Decoder) (Payload, error) {
	var out Payload

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrInvalidEnvelope, err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("%w: non-string object key", ErrInvalidEnvelope)
		}

		value, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}

		// Last occurrence wins on duplicate keys.
		out = out.Set(key, value)
	}

	if _, err := dec.Token(); err != nil { // closing brace
		return nil, fmt.Errorf("%w: %s", ErrInvalidEnvelope, err)
	}

	return out, nil
}

// decodeValue consumes the next complete JSON value.
func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidEnvelope, err)
	}

	switch v := tok.(type) {
	case json.Delim:
		switch v {
		case '{':
			return decodeObject(dec)
		case '[':
			return decodeList(dec)
		default:
			return nil, fmt.Errorf("%w: unexpected delimiter %q", ErrInvalidEnvelope, v.String())
		}
	case json.Number:
		if i, err := strconv.ParseInt(v.String(), 10, 64); err == nil {
			return i, nil
		}
		f, err := v.Float64()
		if err != nil {
			return nil, fmt.Errorf("%w: bad number %q", ErrInvalidEnvelope, v.String())
		}
		return f, nil
	case string, bool, nil:
		return v, nil
	default:
		return nil, fmt.Errorf("%w: unsupported token %T", ErrInvalidEnvelope, tok)
	}
}

// decodeList consumes array elements up to and including the closing bracket.
func decodeList(dec *json.Decoder) ([]any, error) {
	out := []any{}

	for dec.More() {
		v, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}

	if _, err := dec.Token(); err != nil { // closing bracket
		return nil, fmt.Errorf("%w: %s", ErrInvalidEnvelope, err)
	}

	return out, nil
}

// encodePayload writes the payload as a JSON object, rejecting duplicate keys.
func encodePayload(b *strings.Builder, p Payload) error {
	seen := make(map[string]struct{}, len(p))

	b.WriteByte('{')
	for i, f := range p {
		if _, dup := seen[f.Key]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicateKey, f.Key)
		}
		seen[f.Key] = struct{}{}

		if i > 0 {
			b.WriteByte(',')
		}
		if err := encodeString(b, f.Key); err != nil {
			return err
		}
		b.WriteByte(':')
		if err := encodeValue(b, f.Value); err != nil {
			return err
		}
	}
	b.WriteByte('}')

	return nil
}

// encodeValue writes one payload value.
func encodeValue(b *strings.Builder, v any) error {
	switch val := v.(type) {
	case nil:
		b.WriteString("null")
		return nil
	case string:
		return encodeString(b, val)
	case bool:
		if val {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
		return nil
	case int:
		b.WriteString(strconv.FormatInt(int64(val), 10))
		return nil
	case int64:
		b.WriteString(strconv.FormatInt(val, 10))
		return nil
	case float64:
		encoded, err := json.Marshal(val)
		if err != nil {
			return err
		}
		b.Write(encoded)
		return nil
	case Payload:
		return encodePayload(b, val)
	case []any:
		b.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				b.WriteByte(',')
			}
			if err := encodeValue(b, item); err != nil {
				return err
			}
		}
		b.WriteByte(']')
		return nil
	default:
		return fmt.Errorf("%w: unsupported payload value %T", ErrInvalidEnvelope, v)
	}
}

// encodeString writes a JSON-escaped string.
func encodeString(b *strings.Builder, s string) error {
	encoded, err := json.Marshal(s)
	if err != nil {
		return err
	}
	b.Write(encoded)
	return nil
}

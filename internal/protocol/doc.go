// Roomcast - Durable Real-Time Room Messaging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roomcast

// Package protocol implements the Roomcast wire envelope.
//
// Every text frame on the WebSocket transport, every message persisted in the
// store, and every element returned by the long-polling endpoints is one JSON
// envelope:
//
//	{ "id"?:string, "kind"?:string, "ts"?:string, "room"?:string,
//	  "type":string, "payload":object }
//
// "type" is mandatory; all other fields are optional. The payload is an
// ordered sequence of key/value pairs so serialization is deterministic:
// insertion order is preserved on encode and document order on decode.
//
// Parse rejects frames that are not JSON objects or whose "type" is empty.
// Serialize emits only non-empty optional fields plus "type" and "payload".
package protocol

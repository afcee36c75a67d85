// Roomcast - Durable Real-Time Room Messaging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roomcast

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver

	"github.com/tomtom215/roomcast/internal/logging"
	"github.com/tomtom215/roomcast/internal/protocol"
)

// ErrUnavailable wraps any underlying I/O failure of the store.
var ErrUnavailable = errors.New("store unavailable")

const schema = `
CREATE TABLE IF NOT EXISTS messages (
	id           TEXT PRIMARY KEY,
	kind         TEXT NOT NULL,
	room         TEXT,
	type         TEXT NOT NULL,
	ts           TEXT NOT NULL,
	payload_json TEXT NOT NULL
)`

// idWidth is the zero-padded width of generated message ids. 20 digits hold
// any microsecond timestamp representable in an int64.
const idWidth = 20

// tsFormat is the ISO-8601 UTC layout assigned to envelopes at append time.
const tsFormat = "2006-01-02T15:04:05Z"

// Store is a durable append-only message log backed by SQLite in WAL mode.
// All methods are safe for concurrent use.
type Store struct {
	db *sql.DB

	// lastID holds the most recently issued id in microseconds; a CAS loop
	// guarantees strict monotonicity under contention.
	lastID atomic.Int64
}

// Open opens (creating if necessary) the SQLite database at path and ensures
// the messages schema exists. WAL journaling keeps reads concurrent with the
// single writer; the busy timeout avoids spurious SQLITE_BUSY under load.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %s", ErrUnavailable, path, err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: ping %s: %s", ErrUnavailable, path, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: create schema: %s", ErrUnavailable, err)
	}

	logging.Debug().Str("path", path).Msg("Message store opened")

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// nextID mints a strictly monotonic id: the current microsecond timestamp,
// bumped past the last issued value when the clock has not advanced.
func (s *Store) nextID() string {
	for {
		last := s.lastID.Load()
		next := time.Now().UnixMicro()
		if next <= last {
			next = last + 1
		}
		if s.lastID.CompareAndSwap(last, next) {
			return fmt.Sprintf("%0*d", idWidth, next)
		}
	}
}

// Append durably writes the envelope, assigning id, ts and kind defaults
// in place when empty. Returns after the write is acknowledged.
func (s *Store) Append(ctx context.Context, env *protocol.Envelope) error {
	if env.ID == "" {
		env.ID = s.nextID()
	}
	if env.TS == "" {
		env.TS = time.Now().UTC().Format(tsFormat)
	}
	if env.Kind == "" {
		env.Kind = protocol.KindEvent
	}

	payloadJSON, err := env.Payload.MarshalJSON()
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	var room sql.NullString
	if env.Room != "" {
		room = sql.NullString{String: env.Room, Valid: true}
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO messages (id, kind, room, type, ts, payload_json)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		env.ID, env.Kind, room, env.Type, env.TS, string(payloadJSON))
	if err != nil {
		return fmt.Errorf("%w: append %s: %s", ErrUnavailable, env.ID, err)
	}

	return nil
}

// ListByRoom returns up to limit envelopes for room, newest first. When
// beforeID is non-empty only envelopes with id < beforeID are returned,
// enabling backwards pagination.
func (s *Store) ListByRoom(ctx context.Context, room string, limit int, beforeID string) ([]protocol.Envelope, error) {
	query := `SELECT id, kind, room, type, ts, payload_json FROM messages WHERE room = ?`
	args := []any{room}

	if beforeID != "" {
		query += ` AND id < ?`
		args = append(args, beforeID)
	}

	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	return s.query(ctx, query, args...)
}

// ReplayFrom returns up to limit envelopes with id > startID, oldest first.
// Used for cross-room catch-up after reconnect.
func (s *Store) ReplayFrom(ctx context.Context, startID string, limit int) ([]protocol.Envelope, error) {
	return s.query(ctx,
		`SELECT id, kind, room, type, ts, payload_json FROM messages
		 WHERE id > ? ORDER BY id ASC LIMIT ?`,
		startID, limit)
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]protocol.Envelope, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query: %s", ErrUnavailable, err)
	}
	defer rows.Close()

	var out []protocol.Envelope

	for rows.Next() {
		var (
			env         protocol.Envelope
			room        sql.NullString
			payloadJSON string
		)

		if err := rows.Scan(&env.ID, &env.Kind, &room, &env.Type, &env.TS, &payloadJSON); err != nil {
			return nil, fmt.Errorf("%w: scan: %s", ErrUnavailable, err)
		}
		env.Room = room.String

		// A corrupt payload decodes to an empty one rather than failing the
		// whole page.
		payload, err := protocol.ParsePayload(payloadJSON)
		if err != nil {
			logging.Warn().Str("id", env.ID).Msg("Discarding unparseable stored payload")
		} else {
			env.Payload = payload
		}

		out = append(out, env)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: rows: %s", ErrUnavailable, err)
	}

	return out, nil
}

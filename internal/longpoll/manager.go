// Roomcast - Durable Real-Time Room Messaging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roomcast

package longpoll

import (
	"context"
	"sync"
	"time"

	"github.com/tomtom215/roomcast/internal/logging"
	"github.com/tomtom215/roomcast/internal/metrics"
	"github.com/tomtom215/roomcast/internal/protocol"
)

// Defaults for long-poll session housekeeping.
const (
	DefaultSessionTTL    = 60 * time.Second
	DefaultBufferSize    = 256
	DefaultSweepInterval = 10 * time.Second
)

// session is one long-poll mailbox. Guarded by the manager mutex.
type session struct {
	id       string
	lastSeen time.Time
	buffer   []protocol.Envelope
}

// enqueue appends env, dropping the oldest entry when the buffer would exceed
// maxSize. Returns the change in buffer size (0 when drop-head evicted).
func (s *session) enqueue(env protocol.Envelope, maxSize int) int {
	before := len(s.buffer)
	s.buffer = append(s.buffer, env)
	if len(s.buffer) > maxSize {
		s.buffer = s.buffer[1:]
	}
	return len(s.buffer) - before
}

// drain removes and returns up to max oldest entries in FIFO order.
func (s *session) drain(max int) []protocol.Envelope {
	if max <= 0 || len(s.buffer) == 0 {
		return nil
	}

	n := max
	if n > len(s.buffer) {
		n = len(s.buffer)
	}

	out := make([]protocol.Envelope, n)
	copy(out, s.buffer[:n])
	s.buffer = append(s.buffer[:0], s.buffer[n:]...)

	return out
}

// Manager owns all long-poll sessions behind a single mutex. Every mutation
// is O(1) except SweepExpired, which is O(sessions).
type Manager struct {
	ttl        time.Duration
	bufferSize int

	mu       sync.Mutex
	sessions map[string]*session

	// now is replaceable in tests.
	now func() time.Time
}

// NewManager creates a Manager with the given session TTL and per-session
// buffer capacity. Non-positive arguments fall back to the defaults.
func NewManager(ttl time.Duration, bufferSize int) *Manager {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}

	return &Manager{
		ttl:        ttl,
		bufferSize: bufferSize,
		sessions:   make(map[string]*session),
		now:        time.Now,
	}
}

// getOrCreate returns the session for id, creating it lazily.
// Caller must hold mu.
func (m *Manager) getOrCreate(id string) *session {
	if s, ok := m.sessions[id]; ok {
		return s
	}

	s := &session{id: id, lastSeen: m.now()}
	m.sessions[id] = s
	metrics.RecordLPSessionCreated()

	logging.Debug().Str("session_id", id).Msg("Long-poll session created")

	return s
}

// Push enqueues env into the mailbox for sessionID, creating it when absent.
func (m *Manager) Push(sessionID string, env protocol.Envelope) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.getOrCreate(sessionID)
	delta := s.enqueue(env, m.bufferSize)
	s.lastSeen = m.now()

	metrics.RecordLPEnqueued(delta)
}

// Poll drains up to max envelopes from the mailbox for sessionID in FIFO
// order. A missing session is created empty when createIfMissing is true;
// otherwise nil is returned without side effects beyond the poll counter.
func (m *Manager) Poll(sessionID string, max int, createIfMissing bool) []protocol.Envelope {
	m.mu.Lock()
	defer m.mu.Unlock()

	metrics.RecordLPPoll()

	s, ok := m.sessions[sessionID]
	if !ok {
		if createIfMissing {
			m.getOrCreate(sessionID)
		}
		return nil
	}

	drained := s.drain(max)
	s.lastSeen = m.now()

	metrics.RecordLPDrained(len(drained))

	return drained
}

// SweepExpired removes every session whose last activity is older than the
// TTL, releasing its remaining buffered messages.
func (m *Manager) SweepExpired() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for id, s := range m.sessions {
		if now.Sub(s.lastSeen) <= m.ttl {
			continue
		}

		metrics.RecordLPSessionRemoved(len(s.buffer))
		delete(m.sessions, id)

		logging.Debug().Str("session_id", id).Int("dropped", len(s.buffer)).
			Msg("Long-poll session expired")
	}
}

// RunSweeper runs SweepExpired every interval until ctx is canceled.
// Suitable as a suture service body.
func (m *Manager) RunSweeper(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.SweepExpired()
		}
	}
}

// SessionCount returns the number of live sessions.
func (m *Manager) SessionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// BufferSize returns the number of buffered envelopes for sessionID,
// or 0 when the session does not exist.
func (m *Manager) BufferSize(sessionID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[sessionID]; ok {
		return len(s.buffer)
	}
	return 0
}

// Roomcast - Durable Real-Time Room Messaging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roomcast

package longpoll

import (
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/roomcast/internal/logging"
	"github.com/tomtom215/roomcast/internal/metrics"
	"github.com/tomtom215/roomcast/internal/protocol"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{Level: "info", Format: "console", Output: io.Discard})
}

func textEnvelope(text string) protocol.Envelope {
	return protocol.Envelope{
		Type:    "chat.message",
		Payload: protocol.Payload{{Key: "text", Value: text}},
	}
}

func TestPushPollFIFO(t *testing.T) {
	m := NewManager(time.Minute, 256)

	for i := 0; i < 5; i++ {
		m.Push("sid", textEnvelope(fmt.Sprintf("m%d", i)))
	}

	got := m.Poll("sid", 10, false)
	if len(got) != 5 {
		t.Fatalf("drained %d, want 5", len(got))
	}
	for i, env := range got {
		want := fmt.Sprintf("m%d", i)
		if env.Payload.GetString("text", "") != want {
			t.Errorf("position %d = %q, want %q", i, env.Payload.GetString("text", ""), want)
		}
	}

	if again := m.Poll("sid", 10, false); len(again) != 0 {
		t.Errorf("second drain returned %d envelopes, want 0", len(again))
	}
}

func TestPollMaxLimit(t *testing.T) {
	m := NewManager(time.Minute, 256)

	for i := 0; i < 5; i++ {
		m.Push("sid", textEnvelope(fmt.Sprintf("m%d", i)))
	}

	first := m.Poll("sid", 2, false)
	if len(first) != 2 {
		t.Fatalf("drained %d, want 2", len(first))
	}
	if first[0].Payload.GetString("text", "") != "m0" {
		t.Errorf("first drained = %q, want m0", first[0].Payload.GetString("text", ""))
	}

	rest := m.Poll("sid", 10, false)
	if len(rest) != 3 {
		t.Fatalf("remaining drain = %d, want 3", len(rest))
	}
	if rest[0].Payload.GetString("text", "") != "m2" {
		t.Errorf("continuation broke FIFO: %q", rest[0].Payload.GetString("text", ""))
	}
}

func TestDropHeadOnOverflow(t *testing.T) {
	const capacity = 4
	const extra = 3

	m := NewManager(time.Minute, capacity)

	for i := 0; i < capacity+extra; i++ {
		m.Push("sid", textEnvelope(fmt.Sprintf("m%d", i)))
	}

	got := m.Poll("sid", capacity+extra, false)
	if len(got) != capacity {
		t.Fatalf("drained %d, want %d", len(got), capacity)
	}
	// The first `extra` envelopes were dropped; order of the rest preserved.
	for i, env := range got {
		want := fmt.Sprintf("m%d", i+extra)
		if env.Payload.GetString("text", "") != want {
			t.Errorf("position %d = %q, want %q", i, env.Payload.GetString("text", ""), want)
		}
	}
}

func TestPollCreateIfMissing(t *testing.T) {
	m := NewManager(time.Minute, 256)

	if got := m.Poll("new-sid", 10, true); len(got) != 0 {
		t.Errorf("poll of fresh session returned %d envelopes", len(got))
	}
	if m.SessionCount() != 1 {
		t.Errorf("session count = %d, want 1", m.SessionCount())
	}

	if got := m.Poll("other", 10, false); len(got) != 0 {
		t.Errorf("poll without create returned %d envelopes", len(got))
	}
	if m.SessionCount() != 1 {
		t.Errorf("session count = %d after createIfMissing=false, want 1", m.SessionCount())
	}
}

func TestSweepExpired(t *testing.T) {
	m := NewManager(time.Minute, 256)

	current := time.Now()
	m.now = func() time.Time { return current }

	m.Push("stale", textEnvelope("a"))
	m.Push("stale", textEnvelope("b"))
	m.Push("fresh", textEnvelope("c"))

	activeBefore := testutil.ToFloat64(metrics.LPSessionsActive)
	bufferedBefore := testutil.ToFloat64(metrics.LPMessagesBuffered)

	// Age the stale session past the TTL, then touch the fresh one.
	current = current.Add(2 * time.Minute)
	m.Push("fresh", textEnvelope("d"))

	m.SweepExpired()

	if m.SessionCount() != 1 {
		t.Errorf("session count after sweep = %d, want 1", m.SessionCount())
	}
	if m.BufferSize("stale") != 0 {
		t.Error("stale session should be gone")
	}
	if m.BufferSize("fresh") != 3 {
		t.Errorf("fresh buffer = %d, want 3", m.BufferSize("fresh"))
	}

	if got := testutil.ToFloat64(metrics.LPSessionsActive) - activeBefore; got != -1 {
		t.Errorf("lp_sessions_active delta = %v, want -1", got)
	}
	// One push (+1) then sweep of the two stale messages (-2).
	if got := testutil.ToFloat64(metrics.LPMessagesBuffered) - bufferedBefore; got != -1 {
		t.Errorf("lp_messages_buffered delta = %v, want -1", got)
	}
}

func TestSweepKeepsTouchedSessions(t *testing.T) {
	m := NewManager(time.Minute, 256)

	current := time.Now()
	m.now = func() time.Time { return current }

	m.Push("sid", textEnvelope("a"))

	// Poll refreshes last_seen even when it drains nothing.
	current = current.Add(45 * time.Second)
	m.Poll("sid", 0, false)

	current = current.Add(45 * time.Second)
	m.SweepExpired()

	if m.SessionCount() != 1 {
		t.Error("recently polled session should survive the sweep")
	}
}

func TestManagerDefaults(t *testing.T) {
	m := NewManager(0, 0)

	if m.ttl != DefaultSessionTTL {
		t.Errorf("ttl = %v, want %v", m.ttl, DefaultSessionTTL)
	}
	if m.bufferSize != DefaultBufferSize {
		t.Errorf("bufferSize = %d, want %d", m.bufferSize, DefaultBufferSize)
	}
}

// Roomcast - Durable Real-Time Room Messaging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roomcast

package websocket

import (
	"context"

	"github.com/tomtom215/roomcast/internal/logging"
	"github.com/tomtom215/roomcast/internal/metrics"
	"github.com/tomtom215/roomcast/internal/protocol"
	"github.com/tomtom215/roomcast/internal/store"
)

// welcomeText is sent to every session as soon as it connects.
const welcomeText = "Welcome to Roomcast"

// ChatApp wires the room chat contract onto a hub: chat.join replays
// history and announces the join, chat.leave announces the departure,
// chat.message persists and broadcasts, and every other type falls back to
// a persisted global broadcast.
type ChatApp struct {
	hub          *Hub
	store        *store.Store
	historyLimit int
}

// NewChatApp registers the chat contract on the hub's dispatcher. A
// historyLimit <= 0 falls back to the default of 50.
func NewChatApp(hub *Hub, st *store.Store, historyLimit int) *ChatApp {
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}

	app := &ChatApp{hub: hub, store: st, historyLimit: historyLimit}

	hub.OnOpen(app.welcome)
	hub.Dispatcher().Handle("chat.join", app.handleJoin)
	hub.Dispatcher().Handle("chat.leave", app.handleLeave)
	hub.Dispatcher().Handle("chat.message", app.handleMessage)
	hub.Dispatcher().HandleFallback(app.handleFallback)

	return app
}

// welcome persists and delivers a greeting to the newly connected session.
func (a *ChatApp) welcome(c *Client) {
	env := protocol.Envelope{
		Kind: protocol.KindSystem,
		Type: "chat.system",
		Payload: protocol.Payload{
			{Key: "user", Value: "server"},
			{Key: "text", Value: welcomeText},
		},
	}

	a.append(&env)

	if frame, err := env.Serialize(); err == nil {
		if c.Send(frame) {
			metrics.RecordMessagesOut(1)
		}
	}
}

// handleJoin adds the session to payload.room, replays recent history to
// the joiner, then persists and broadcasts a join notice to the room.
func (a *ChatApp) handleJoin(c *Client, env protocol.Envelope) {
	room := env.Payload.GetString("room", "")
	user := env.Payload.GetString("user", "anonymous")
	if room == "" {
		return
	}

	a.hub.JoinRoom(c, room)

	a.replayHistory(c, room)

	notice := protocol.Envelope{
		Kind: protocol.KindSystem,
		Type: "chat.system",
		Room: room,
		Payload: protocol.Payload{
			{Key: "room", Value: room},
			{Key: "text", Value: user + " joined the room"},
		},
	}
	a.persistAndBroadcastRoom(room, notice)
}

// replayHistory sends the most recent stored envelopes for room to the
// joining session, newest first, each tagged as history.
func (a *ChatApp) replayHistory(c *Client, room string) {
	history, err := a.store.ListByRoom(context.Background(), room, a.historyLimit, "")
	if err != nil {
		metrics.RecordError()
		logging.Error().Err(err).Str("room", room).Msg("history replay failed")
		return
	}

	sent := 0
	for _, env := range history {
		env.Kind = protocol.KindHistory

		frame, err := env.Serialize()
		if err != nil {
			metrics.RecordError()
			continue
		}
		if !c.Send(frame) {
			break
		}
		sent++
	}
	metrics.RecordMessagesOut(sent)
}

// handleLeave removes the session from payload.room, then persists and
// broadcasts a departure notice. The leaver has already left, so the
// notice does not reach them.
func (a *ChatApp) handleLeave(c *Client, env protocol.Envelope) {
	room := env.Payload.GetString("room", "")
	user := env.Payload.GetString("user", "anonymous")
	if room == "" {
		return
	}

	a.hub.LeaveRoom(c, room)

	notice := protocol.Envelope{
		Kind: protocol.KindSystem,
		Type: "chat.system",
		Room: room,
		Payload: protocol.Payload{
			{Key: "room", Value: room},
			{Key: "text", Value: user + " left the room"},
		},
	}
	a.persistAndBroadcastRoom(room, notice)
}

// handleMessage persists and broadcasts a user message to its room. A
// message missing room or text falls through to the global fallback, which
// matches how untyped traffic is treated.
func (a *ChatApp) handleMessage(c *Client, env protocol.Envelope) {
	room := env.Payload.GetString("room", "")
	user := env.Payload.GetString("user", "anonymous")
	text := env.Payload.GetString("text", "")

	if room == "" || text == "" {
		a.handleFallback(c, env)
		return
	}

	msg := protocol.Envelope{
		Kind: protocol.KindEvent,
		Type: "chat.message",
		Room: room,
		Payload: protocol.Payload{
			{Key: "room", Value: room},
			{Key: "user", Value: user},
			{Key: "text", Value: text},
		},
	}
	a.persistAndBroadcastRoom(room, msg)
}

// handleFallback persists the envelope without a room and broadcasts it to
// every connected session.
func (a *ChatApp) handleFallback(_ *Client, env protocol.Envelope) {
	msg := protocol.Envelope{
		Kind:    protocol.KindEvent,
		Type:    env.Type,
		Payload: env.Payload,
	}

	a.append(&msg)

	frame, err := msg.Serialize()
	if err != nil {
		metrics.RecordError()
		return
	}
	metrics.RecordMessagesOut(a.hub.BroadcastGlobalText(frame))
}

// persistAndBroadcastRoom appends the envelope and fans it out to the
// room. A store failure is logged and counted but never suppresses the
// broadcast; history may omit the message.
func (a *ChatApp) persistAndBroadcastRoom(room string, env protocol.Envelope) {
	a.append(&env)

	frame, err := env.Serialize()
	if err != nil {
		metrics.RecordError()
		return
	}
	metrics.RecordMessagesOut(a.hub.BroadcastRoomText(room, frame))
}

// append persists the envelope, filling in its id, timestamp and kind.
func (a *ChatApp) append(env *protocol.Envelope) {
	if err := a.store.Append(context.Background(), env); err != nil {
		metrics.RecordError()
		logging.Error().Err(err).Str("type", env.Type).Msg("store append failed")
	}
}

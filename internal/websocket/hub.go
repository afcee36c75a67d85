// Roomcast - Durable Real-Time Room Messaging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roomcast

package websocket

import (
	"context"
	"sort"
	"sync"

	"github.com/tomtom215/roomcast/internal/logging"
	"github.com/tomtom215/roomcast/internal/metrics"
)

// ShutdownReason identifies why the hub is shutting down.
type ShutdownReason string

const (
	// ShutdownReasonContextCanceled indicates the parent context was canceled.
	// This is the normal graceful shutdown path (e.g., SIGTERM).
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"

	// ShutdownReasonContextDeadline indicates the context deadline was
	// exceeded, which may indicate a hung operation during shutdown.
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// OpenHook runs after a client finishes its handshake and registers.
type OpenHook func(c *Client)

// CloseHook runs after a client is unregistered and swept from all rooms.
type CloseHook func(c *Client)

// BinaryHook receives binary frames unchanged; they are never parsed as
// envelopes.
type BinaryHook func(c *Client, data []byte)

// Hub maintains the set of active clients, the room membership map, and
// fans frames out to member send queues.
type Hub struct {
	cfg Config

	Register   chan *Client
	Unregister chan *Client

	// mu guards clients and rooms together so membership changes and
	// broadcast enumeration stay consistent.
	mu      sync.RWMutex
	clients map[*Client]bool
	rooms   map[string]map[*Client]bool

	dispatcher *Dispatcher

	openHooks   []OpenHook
	closeHooks  []CloseHook
	binaryHooks []BinaryHook
}

// NewHub creates a hub with the given transport configuration.
func NewHub(cfg Config) *Hub {
	return &Hub{
		cfg:        cfg.normalize(),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		rooms:      make(map[string]map[*Client]bool),
		dispatcher: NewDispatcher(),
	}
}

// Config returns the hub's transport configuration.
func (h *Hub) Config() Config {
	return h.cfg
}

// Dispatcher returns the hub's typed-message dispatcher.
func (h *Hub) Dispatcher() *Dispatcher {
	return h.dispatcher
}

// OnOpen registers a hook invoked when a client completes its handshake.
func (h *Hub) OnOpen(hook OpenHook) {
	h.openHooks = append(h.openHooks, hook)
}

// OnClose registers a hook invoked when a client is unregistered.
func (h *Hub) OnClose(hook CloseHook) {
	h.closeHooks = append(h.closeHooks, hook)
}

// OnBinary registers a hook receiving binary frames unchanged.
func (h *Hub) OnBinary(hook BinaryHook) {
	h.binaryHooks = append(h.binaryHooks, hook)
}

// RunWithContext runs the client lifecycle loop until ctx is canceled.
// Designed for suture supervision: on cancellation all connected clients
// are closed and ctx.Err() is returned.
//
// DETERMINISM: priority-based selection keeps behavior predictable when
// multiple channels are ready (Go's select picks randomly otherwise):
// shutdown first, then lifecycle events.
func (h *Hub) RunWithContext(ctx context.Context) error {
	for {
		// Priority 1: shutdown (non-blocking check).
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		default:
		}

		// Priority 2: lifecycle events (blocking wait).
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()

		case client := <-h.Register:
			h.registerClient(client)

		case client := <-h.Unregister:
			h.unregisterClient(client)
		}
	}
}

// Run starts the hub without context support.
//
// Deprecated: Use RunWithContext for supervised operation.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.registerClient(client)
		case client := <-h.Unregister:
			h.unregisterClient(client)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	total := len(h.clients)
	h.mu.Unlock()

	metrics.RecordConnectionOpened()
	logging.Info().Uint64("client_id", client.id).Int("total_clients", total).
		Msg("websocket client connected")

	for _, hook := range h.openHooks {
		hook(client)
	}
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	_, ok := h.clients[client]
	if ok {
		delete(h.clients, client)
		h.removeFromAllRoomsLocked(client)
		client.setState(StateClosed)
		client.closeSend()
	}
	total := len(h.clients)
	h.mu.Unlock()

	if !ok {
		return
	}

	metrics.RecordConnectionClosed()
	logging.Info().Uint64("client_id", client.id).Int("total_clients", total).
		Msg("websocket client disconnected")

	for _, hook := range h.closeHooks {
		hook(client)
	}
}

// logGracefulShutdown closes all clients and logs structured shutdown
// information. ctx.Err() is not logged as an error because cancellation is
// expected during graceful shutdown.
func (h *Hub) logGracefulShutdown(ctx context.Context) {
	clientCount := h.ClientCount()

	h.closeAllClients()

	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", string(getShutdownReason(ctx))).
		Int("clients_closed", clientCount).
		Msg("websocket hub stopped")
}

// getShutdownReason determines the shutdown reason from the context error.
func getShutdownReason(ctx context.Context) ShutdownReason {
	if ctx.Err() == context.DeadlineExceeded {
		return ShutdownReasonContextDeadline
	}
	return ShutdownReasonContextCanceled
}

// closeAllClients closes every connected client in id order.
func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range sortedClientsLocked(h.clients) {
		client.setState(StateClosed)
		client.closeSend()
		delete(h.clients, client)
		metrics.RecordConnectionClosed()
	}
	h.rooms = make(map[string]map[*Client]bool)

	logging.Info().Msg("closed all websocket clients during shutdown")
}

// JoinRoom adds the client to room. Joining a room twice is a no-op.
func (h *Hub) JoinRoom(client *Client, room string) {
	if room == "" {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Client]bool)
		h.rooms[room] = members
	}
	members[client] = true
}

// LeaveRoom removes the client from room, dropping the room key once its
// member set is empty.
func (h *Hub) LeaveRoom(client *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.rooms[room]
	if !ok {
		return
	}

	delete(members, client)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

// removeFromAllRoomsLocked sweeps the client from every room.
// Caller must hold mu.
func (h *Hub) removeFromAllRoomsLocked(client *Client) {
	for room, members := range h.rooms {
		delete(members, client)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

// InRoom reports whether the client is a member of room.
func (h *Hub) InRoom(client *Client, room string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.rooms[room][client]
}

// RoomCount returns the number of members in room.
func (h *Hub) RoomCount(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// BroadcastRoomText enqueues frame on every member of room and returns the
// number of deliveries. Clients whose send queue is full are dropped as
// overloaded in the same pass.
func (h *Hub) BroadcastRoomText(room, frame string) int {
	h.mu.Lock()
	members := sortedClientsLocked(h.rooms[room])
	delivered, overloaded := deliverLocked(members, frame)
	dropped := h.dropOverloadedLocked(overloaded)
	h.mu.Unlock()

	h.finishDrop(dropped)
	return delivered
}

// BroadcastGlobalText enqueues frame on every connected client and returns
// the number of deliveries.
func (h *Hub) BroadcastGlobalText(frame string) int {
	h.mu.Lock()
	members := sortedClientsLocked(h.clients)
	delivered, overloaded := deliverLocked(members, frame)
	dropped := h.dropOverloadedLocked(overloaded)
	h.mu.Unlock()

	h.finishDrop(dropped)
	return delivered
}

// sortedClientsLocked snapshots a client set ordered by monotonic id.
// DETERMINISM: id order makes broadcast delivery order reproducible.
func sortedClientsLocked(set map[*Client]bool) []*Client {
	clients := make([]*Client, 0, len(set))
	for client := range set {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})
	return clients
}

// deliverLocked performs non-blocking sends so the room lock is never held
// on a blocked socket. Clients with full queues are returned for removal.
func deliverLocked(clients []*Client, frame string) (delivered int, overloaded []*Client) {
	for _, client := range clients {
		select {
		case client.send <- frame:
			delivered++
		default:
			overloaded = append(overloaded, client)
		}
	}
	return delivered, overloaded
}

// dropOverloadedLocked removes overloaded clients from the registry and all
// rooms, returning the ones actually removed. Caller must hold mu.
func (h *Hub) dropOverloadedLocked(overloaded []*Client) []*Client {
	dropped := overloaded[:0]
	for _, client := range overloaded {
		if !h.clients[client] {
			continue
		}
		delete(h.clients, client)
		h.removeFromAllRoomsLocked(client)
		client.setState(StateClosed)
		client.closeSend()
		dropped = append(dropped, client)
	}
	return dropped
}

// finishDrop completes bookkeeping for overloaded clients outside the lock.
func (h *Hub) finishDrop(overloaded []*Client) {
	for _, client := range overloaded {
		metrics.RecordConnectionClosed()
		logging.Warn().Uint64("client_id", client.id).
			Msg("client send queue overflow, session dropped")

		for _, hook := range h.closeHooks {
			hook(client)
		}
	}
}

// dispatch routes one inbound text frame through the dispatcher.
func (h *Hub) dispatch(client *Client, frame string) {
	h.dispatcher.Dispatch(client, frame)
}

// handleBinary passes a binary frame to the registered hooks unchanged.
func (h *Hub) handleBinary(client *Client, data []byte) {
	for _, hook := range h.binaryHooks {
		hook(client, data)
	}
}

// Package ws carries the coordinator protocol over websockets: a relay server
// for many rooms and the transport of a peer mesh.
package ws

import (
	"sync"

	"tute/internal/protocol"
	"tute/internal/session"

	"github.com/heroiclabs/nakama-common/runtime"
)

const (
	sendBuffer    = 64
	maxPendingMsg = 32
)

type client struct {
	id   string
	send chan []byte
}

// Hub routes relay messages to the connection a player is bound to. It is the
// relay's session.Sink.
type Hub struct {
	logger runtime.Logger

	mu      sync.Mutex
	clients map[string]*client  // player id -> connection
	pending map[string][][]byte // frames for a player whose join has not returned yet
}

func NewHub(logger runtime.Logger) *Hub {
	return &Hub{
		logger:  logger,
		clients: make(map[string]*client),
		pending: make(map[string][][]byte),
	}
}

// Deliver implements session.Sink. The room acknowledges a join before the
// connection learns its player id, so frames from a join ack onward are held
// until bind. Frames for players without a connection are dropped.
func (h *Hub) Deliver(playerID string, msg session.Outbound) {
	frame, err := msg.Encode()
	if err != nil {
		h.logger.Error("Hub: encode %s for %s: %v", msg.Type, playerID, err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.clients[playerID]; ok {
		h.push(c, frame)
		return
	}
	held, waiting := h.pending[playerID]
	if !waiting && !protocol.IsJoinAck(msg.Type) {
		return
	}
	if len(held) < maxPendingMsg {
		h.pending[playerID] = append(held, frame)
	}
}

// bind attaches c to playerID and flushes held frames. A previous connection
// of the same player loses the binding and is returned.
func (h *Hub) bind(playerID string, c *client) *client {
	h.mu.Lock()
	defer h.mu.Unlock()
	prev := h.clients[playerID]
	h.clients[playerID] = c
	for _, frame := range h.pending[playerID] {
		h.push(c, frame)
	}
	delete(h.pending, playerID)
	return prev
}

// rebind undoes a bind of c that turned out to be refused.
func (h *Hub) rebind(playerID string, c, prev *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[playerID] != c {
		return
	}
	if prev == nil {
		delete(h.clients, playerID)
		return
	}
	h.clients[playerID] = prev
}

// unbind detaches c. It reports false when the player was already bound to a
// newer connection.
func (h *Hub) unbind(playerID string, c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[playerID] != c {
		return false
	}
	delete(h.clients, playerID)
	return true
}

// Connected returns how many players are bound to a connection.
func (h *Hub) Connected() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// push never blocks; a client that cannot keep up loses frames and recovers
// with the next GAME_STATE.
func (h *Hub) push(c *client, frame []byte) {
	select {
	case c.send <- frame:
	default:
		h.logger.Warn("Hub: send buffer full for client %s, dropping frame", c.id)
	}
}

var _ session.Sink = (*Hub)(nil)

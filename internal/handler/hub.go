// Package handler owns the websocket boundary: connection registry,
// slot assignment, message routing, and fan-out.
package handler

import (
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/gridclash/api/pkg/tactics"
)

var (
	ErrMatchFull    = errors.New("match full")
	ErrSlotReserved = errors.New("slot reserved for another player")
)

const sendBufSize = 64

// Conn is one client connection. The transport pumps own the websocket
// itself; everything routing-side talks to the send channel, so tests
// can drive a Conn with no network at all.
type Conn struct {
	id       string
	clientID string
	send     chan []byte

	mu      sync.Mutex
	matchID string
	player  tactics.PlayerID
	closed  bool
}

// NewConn creates a connection handle.
func NewConn(id, clientID string) *Conn {
	return &Conn{id: id, clientID: clientID, send: make(chan []byte, sendBufSize)}
}

// ID returns the connection id.
func (c *Conn) ID() string { return c.id }

// Outbox exposes the send channel for the write pump and for tests.
func (c *Conn) Outbox() <-chan []byte { return c.send }

// Slot returns the match and player label this connection occupies.
func (c *Conn) Slot() (string, tactics.PlayerID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.matchID, c.player
}

func (c *Conn) setSlot(matchID string, player tactics.PlayerID) {
	c.mu.Lock()
	c.matchID = matchID
	c.player = player
	c.mu.Unlock()
}

// enqueue queues data on the outbox, dropping on a full buffer. Sends
// and close serialise on c.mu, so a broadcast racing a disconnect drops
// the message instead of hitting a closed channel.
func (c *Conn) enqueue(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *Conn) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

type slots struct {
	a, b *Conn
	// clientIDs recorded at first seating; "" when the player joined
	// anonymously. They outlive a vacated slot so a reseat into a
	// started match can be identity-checked.
	aID, bID string
	started  bool
}

// Hub tracks connections and the two slots of each match. Writes to a
// connection go through its buffered send channel; a full buffer drops
// the message rather than blocking the broadcaster.
type Hub struct {
	mu      sync.RWMutex
	conns   map[*Conn]bool
	matches map[string]*slots
}

// NewHub creates a Hub.
func NewHub() *Hub {
	return &Hub{
		conns:   make(map[*Conn]bool),
		matches: make(map[string]*slots),
	}
}

// Register adds a connection to the hub.
func (h *Hub) Register(c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[c] = true
}

// Unregister removes a connection and closes its outbox.
func (h *Hub) Unregister(c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.conns[c] {
		return
	}
	delete(h.conns, c)
	c.close()
}

// AssignSlot seats the connection in the match: slot A first, then B.
// Reseating into a started match is identity-checked: when both the slot
// and the connection carry a clientID, they must match.
func (h *Hub) AssignSlot(matchID string, c *Conn) (tactics.PlayerID, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s := h.matches[matchID]
	if s == nil {
		s = &slots{}
		h.matches[matchID] = s
	}
	switch {
	case s.a == nil:
		if s.started && s.aID != "" && c.clientID != "" && s.aID != c.clientID {
			return "", ErrSlotReserved
		}
		s.a = c
		if c.clientID != "" {
			s.aID = c.clientID
		}
		c.setSlot(matchID, tactics.P1)
		return tactics.P1, nil
	case s.b == nil:
		if s.started && s.bID != "" && c.clientID != "" && s.bID != c.clientID {
			return "", ErrSlotReserved
		}
		s.b = c
		if c.clientID != "" {
			s.bID = c.clientID
		}
		c.setSlot(matchID, tactics.P2)
		return tactics.P2, nil
	default:
		return "", ErrMatchFull
	}
}

// VacateSlot frees the connection's seat and reports what it held.
func (h *Hub) VacateSlot(c *Conn) (string, tactics.PlayerID, bool) {
	matchID, player := c.Slot()
	if matchID == "" {
		return "", "", false
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	s := h.matches[matchID]
	if s == nil {
		return "", "", false
	}
	if s.a == c {
		s.a = nil
	} else if s.b == c {
		s.b = nil
	} else {
		return "", "", false
	}
	c.setSlot("", "")
	if s.a == nil && s.b == nil {
		delete(h.matches, matchID)
	}
	return matchID, player, true
}

// BothSeated reports whether a match has both slots occupied.
func (h *Hub) BothSeated(matchID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s := h.matches[matchID]
	return s != nil && s.a != nil && s.b != nil
}

// MarkStarted records that the match's game has begun, distinguishing
// the first full seating from a later rejoin.
func (h *Hub) MarkStarted(matchID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s := h.matches[matchID]; s != nil {
		s.started = true
	}
}

// Started reports whether the match's game has begun.
func (h *Hub) Started(matchID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s := h.matches[matchID]
	return s != nil && s.started
}

// SlotConn returns the connection holding the given slot, or nil.
func (h *Hub) SlotConn(matchID string, player tactics.PlayerID) *Conn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s := h.matches[matchID]
	if s == nil {
		return nil
	}
	if player == tactics.P1 {
		return s.a
	}
	return s.b
}

// Send queues a message on one connection, dropping on a full buffer
// or a closed connection.
func (h *Hub) Send(c *Conn, data []byte) {
	if c == nil {
		return
	}
	if !c.enqueue(data) {
		log.Warn().Str("connId", c.id).Msg("Dropping message, connection closed or buffer full")
	}
}

// BroadcastToMatch sends a message to both seated connections.
func (h *Hub) BroadcastToMatch(matchID string, data []byte) {
	h.mu.RLock()
	s := h.matches[matchID]
	var a, b *Conn
	if s != nil {
		a, b = s.a, s.b
	}
	h.mu.RUnlock()

	h.Send(a, data)
	h.Send(b, data)
}

// ConnectionCount returns the number of registered connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

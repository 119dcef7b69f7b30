package gateway

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

// Room name helpers. Query rooms group every client viewing one query;
// personal channels address a single user; the admins room reaches every
// connected elevated agent.
const roomAdmins = "admins"

func QueryRoom(queryID string) string { return "query-" + queryID }
func UserRoom(userID string) string   { return "user-" + userID }

// Hub maintains the registry of live connections and their room memberships.
//
// The registry is process-local, in-memory state; restarting the process
// drops all memberships and clients must re-join on reconnect. Construct one
// Hub in main and pass it to every component that broadcasts; there is no
// package-level singleton.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	rooms   map[string]map[*Client]struct{}

	log    *slog.Logger
	clock  func() time.Time
	closed bool
}

func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		clients: make(map[*Client]struct{}),
		rooms:   make(map[string]map[*Client]struct{}),
		log:     log,
		clock:   time.Now,
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(c.send)
		return
	}
	h.clients[c] = struct{}{}

	// Authenticated clients are auto-joined to their personal channel, and
	// elevated roles to the shared admins room.
	if c.UserID != "" {
		h.joinLocked(c, UserRoom(c.UserID))
	}
	if c.elevated {
		h.joinLocked(c, roomAdmins)
	}
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	for room := range c.rooms {
		h.leaveLocked(c, room)
	}
	close(c.send)
}

// JoinQuery subscribes a connection to a query room. Anonymous donor
// connections are allowed; donorID only tags the membership for diagnostics.
func (h *Hub) JoinQuery(c *Client, queryID, donorID string) {
	if queryID == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	if donorID != "" && c.DonorID == "" {
		c.DonorID = donorID
	}
	h.joinLocked(c, QueryRoom(queryID))
}

func (h *Hub) LeaveQuery(c *Client, queryID string) {
	if queryID == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(c, QueryRoom(queryID))
}

func (h *Hub) joinLocked(c *Client, room string) {
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[room] = members
	}
	members[c] = struct{}{}
	c.rooms[room] = struct{}{}
}

func (h *Hub) leaveLocked(c *Client, room string) {
	if members, ok := h.rooms[room]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	delete(c.rooms, room)
}

/* ===================== BROADCAST PRIMITIVES ===================== */

// ToQuery broadcasts an event to every client viewing a query.
func (h *Hub) ToQuery(queryID, event string, payload any) {
	h.toRoom(QueryRoom(queryID), event, payload)
}

// ToAdmins broadcasts an event to the shared admin dashboard room.
func (h *Hub) ToAdmins(event string, payload any) {
	h.toRoom(roomAdmins, event, payload)
}

// ToUser broadcasts an event to one user's personal channel.
func (h *Hub) ToUser(userID, event string, payload any) {
	h.toRoom(UserRoom(userID), event, payload)
}

// toRoom is fire-and-forget: a disconnected or slow target simply misses
// the event. There is no persistence or replay; clients re-fetch via REST
// after reconnecting.
func (h *Hub) toRoom(room, event string, payload any) {
	frame, err := json.Marshal(Envelope{
		Event:     event,
		Payload:   payload,
		Timestamp: h.clock().UTC(),
	})
	if err != nil {
		h.log.Error("gateway marshal failed", "event", event, "err", err)
		return
	}

	h.mu.RLock()
	members := make([]*Client, 0, len(h.rooms[room]))
	for c := range h.rooms[room] {
		members = append(members, c)
	}
	h.mu.RUnlock()

	for _, c := range members {
		select {
		case c.send <- frame:
		default:
			// Send buffer full; drop the client rather than block a broadcast.
			h.log.Warn("gateway client too slow, dropping", "room", room)
			if c.conn != nil {
				go c.conn.Close()
			}
		}
	}
}

// RoomSize reports current membership; used by tests and diagnostics.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Shutdown closes every connection and stops accepting new ones.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[*Client]struct{})
	h.rooms = make(map[string]map[*Client]struct{})
	h.mu.Unlock()

	for _, c := range clients {
		close(c.send)
		if c.conn != nil {
			_ = c.conn.Close()
		}
	}
}

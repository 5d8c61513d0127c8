package gateway

import "sync"

// Hub is the connection directory plus the conversation room registry. One
// instance lives for the whole process; it is created at startup and injected
// into the gateway, never reached for as package state.
//
// Unlike the single-threaded event loop this design descends from, handlers
// here run on real OS threads, so every mutation takes the lock.
type Hub struct {
	mu sync.RWMutex

	// directory maps user id to their live connection. Last writer wins: a
	// second device replaces the first for direct pushes.
	directory map[int64]*Client

	// rooms groups connections by conversation id for fan-out. Membership is
	// ephemeral and dropped wholesale on disconnect.
	rooms map[string]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{
		directory: make(map[int64]*Client),
		rooms:     make(map[string]map[*Client]struct{}),
	}
}

// Register makes c the directory entry for its user, displacing any previous
// connection.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.directory[c.Identity.UserID] = c
}

// Lookup returns the live connection for a user, or nil when offline.
func (h *Hub) Lookup(userID int64) *Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.directory[userID]
}

// Remove clears c from the directory and every room. Idempotent. The
// directory entry is only cleared while it still points at c: when the user
// already reconnected, the stale connection's cleanup must not knock the new
// one offline.
func (h *Hub) Remove(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.directory[c.Identity.UserID] == c {
		delete(h.directory, c.Identity.UserID)
	}
	for convID, members := range h.rooms {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, convID)
		}
	}
}

// Join opts c into broadcasts for a conversation. A connection may join any
// number of rooms; there is no explicit leave.
func (h *Hub) Join(c *Client, conversationID string) {
	if conversationID == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[conversationID]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[conversationID] = members
	}
	members[c] = struct{}{}
}

// BroadcastRoom sends ev to every member of the conversation's room except
// the given connection. Returns the number of frames enqueued.
func (h *Hub) BroadcastRoom(conversationID string, except *Client, ev Event) int {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.rooms[conversationID]))
	for c := range h.rooms[conversationID] {
		if c != except {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	n := 0
	for _, c := range targets {
		if c.Send(ev) {
			n++
		}
	}
	return n
}

// BroadcastAll sends ev to every connected client. Presence notifications go
// through here; they are advisory only.
func (h *Hub) BroadcastAll(ev Event) {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.directory))
	for _, c := range h.directory {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		c.Send(ev)
	}
}

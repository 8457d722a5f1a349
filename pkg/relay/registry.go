package relay

import (
	"sort"
	"sync"

	"github.com/mahaj/chat-relay/pkg/model"
)

type membership struct {
	userID string
	rooms  map[model.Room]struct{}
}

// Registry tracks which connections are subscribed to which rooms. It is
// connection scoped: a reconnecting user gets a new connection id and has to
// join again.
type Registry struct {
	mu    sync.RWMutex
	rooms map[model.Room]map[string]struct{} // room -> connection ids
	conns map[string]*membership             // connection id -> rooms
}

func NewRegistry() *Registry {
	return &Registry{
		rooms: make(map[model.Room]map[string]struct{}),
		conns: make(map[string]*membership),
	}
}

// Connect records the authenticated user behind a connection.
func (r *Registry) Connect(connID, userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if m, ok := r.conns[connID]; ok {
		m.userID = userID
		return
	}
	r.conns[connID] = &membership{userID: userID, rooms: make(map[model.Room]struct{})}
}

// Join adds connID to room. It reports false if it was already a member.
func (r *Registry) Join(connID string, room model.Room) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.conns[connID]
	if !ok {
		m = &membership{rooms: make(map[model.Room]struct{})}
		r.conns[connID] = m
	}
	if _, ok := m.rooms[room]; ok {
		return false
	}
	m.rooms[room] = struct{}{}

	if r.rooms[room] == nil {
		r.rooms[room] = make(map[string]struct{})
	}
	r.rooms[room][connID] = struct{}{}
	return true
}

// Leave removes connID from room. It reports false if it was not a member.
func (r *Registry) Leave(connID string, room model.Room) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.conns[connID]
	if !ok {
		return false
	}
	if _, ok := m.rooms[room]; !ok {
		return false
	}
	delete(m.rooms, room)
	r.removeLocked(connID, room)
	return true
}

// Disconnect drops the connection and every membership it held, returning the
// rooms it left and the user it belonged to.
func (r *Registry) Disconnect(connID string) (string, []model.Room) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.conns[connID]
	if !ok {
		return "", nil
	}
	delete(r.conns, connID)

	left := make([]model.Room, 0, len(m.rooms))
	for room := range m.rooms {
		r.removeLocked(connID, room)
		left = append(left, room)
	}
	return m.userID, left
}

func (r *Registry) removeLocked(connID string, room model.Room) {
	if clients, ok := r.rooms[room]; ok {
		delete(clients, connID)
		if len(clients) == 0 {
			delete(r.rooms, room)
		}
	}
}

// MembersOf returns the connection ids currently joined to room, sorted.
func (r *Registry) MembersOf(room model.Room) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := make([]string, 0, len(r.rooms[room]))
	for id := range r.rooms[room] {
		members = append(members, id)
	}
	sort.Strings(members)
	return members
}

func (r *Registry) UserOf(connID string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if m, ok := r.conns[connID]; ok {
		return m.userID
	}
	return ""
}

// UserIn reports whether any connection of userID is joined to room.
func (r *Registry) UserIn(room model.Room, userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for id := range r.rooms[room] {
		if r.conns[id].userID == userID {
			return true
		}
	}
	return false
}

// Package room keeps track of which sessions are in which chat room and fans
// events out to every member of a room.
package room

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/Tyrowin/roomchat/internal/chat"
)

// Handle is an opaque, unique reference to a session.
type Handle string

// NewHandle returns a fresh random handle.
func NewHandle() Handle {
	return Handle(uuid.NewString())
}

// Member is anything that can be registered in a room and receive its events.
// Deliver must not block: it either queues the event and returns true, or
// returns false when the member can no longer accept events.
type Member interface {
	Handle() Handle
	Deliver(e chat.Event) bool
}

// Registry maps room names to their current members. It is safe for
// concurrent use. A handle is a member of at most one room at a time, and a
// room entry is pruned as soon as its last member leaves.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]map[Handle]Member
	where map[Handle]string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		rooms: make(map[string]map[Handle]Member),
		where: make(map[Handle]string),
	}
}

// Join adds m to room, creating the room if needed. It reports whether m was
// newly added; joining twice is a no-op. A member already registered in a
// different room is moved.
func (r *Registry) Join(room string, m Member) bool {
	h := m.Handle()

	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.where[h]; ok {
		if current == room {
			return false
		}
		r.removeLocked(current, h)
	}

	members, ok := r.rooms[room]
	if !ok {
		members = make(map[Handle]Member)
		r.rooms[room] = members
	}
	members[h] = m
	r.where[h] = room
	return true
}

// Leave removes h from room and reports whether it was present.
func (r *Registry) Leave(room string, h Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, ok := r.where[h]; !ok || cur != room {
		return false
	}
	r.removeLocked(room, h)
	return true
}

func (r *Registry) removeLocked(room string, h Handle) {
	delete(r.where, h)
	members, ok := r.rooms[room]
	if !ok {
		return
	}
	delete(members, h)
	if len(members) == 0 {
		delete(r.rooms, room)
	}
}

// Members returns a snapshot of the members of room. Unknown rooms yield an
// empty slice.
func (r *Registry) Members(room string) []Member {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := r.rooms[room]
	snapshot := make([]Member, 0, len(members))
	for _, m := range members {
		snapshot = append(snapshot, m)
	}
	return snapshot
}

// Len returns the number of members in room.
func (r *Registry) Len(room string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[room])
}

// Rooms returns the names of all non-empty rooms, sorted.
func (r *Registry) Rooms() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.rooms))
	for name := range r.rooms {
		names = append(names, name)
	}
	r.mu.RUnlock()

	sort.Strings(names)
	return names
}

// RoomOf returns the room h is currently registered in.
func (r *Registry) RoomOf(h Handle) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.where[h]
	return room, ok
}

// Package server coordinates room membership for the RoomChat WebSocket
// system via the Registry type.
package server

import (
	"log"
	"sync"
)

// room holds one room's member set, keyed by connection id. Each room carries
// its own lock so traffic in one room does not contend with another's.
type room struct {
	mu      sync.RWMutex
	members map[string]*Connection
}

// Registry maps room identifiers to their sets of active connections. It is
// the only shared mutable state in the system and is safe for concurrent
// Join, Leave, and MembersOf calls from any number of connection goroutines.
//
// The Registry owns membership, not connections: it never closes a
// connection's socket except during Shutdown. A Registry is constructed at
// server start and injected into the handlers, so independent instances can
// coexist in tests.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*room
}

// NewRegistry creates an empty Registry ready for concurrent use.
func NewRegistry() *Registry {
	return &Registry{
		rooms: make(map[string]*room),
	}
}

// Join adds a connection to a room's member set, creating the room entry on
// first join. Joining is idempotent per connection id: re-adding the same id
// replaces the entry, never duplicates it.
func (r *Registry) Join(roomID string, conn *Connection) {
	if conn == nil {
		log.Printf("Ignoring nil connection join for room %s", roomID)
		return
	}

	// The registry lock is held across the member insert so a concurrent
	// prune in Leave cannot orphan a freshly created room entry.
	r.mu.Lock()
	rm, exists := r.rooms[roomID]
	if !exists {
		rm = &room{members: make(map[string]*Connection)}
		r.rooms[roomID] = rm
	}

	rm.mu.Lock()
	rm.members[conn.ID()] = conn
	memberCount := len(rm.members)
	rm.mu.Unlock()
	r.mu.Unlock()

	log.Printf("Connection %s (%s) joined room %s. Members: %d", conn.ID(), conn.DisplayName(), roomID, memberCount)
}

// Leave removes a connection from a room's member set. It is a no-op when the
// room or the member is already absent, so double-close races clean up
// idempotently. The room entry is pruned once its member set empties; a later
// Join simply recreates it.
func (r *Registry) Leave(roomID, connID string) {
	r.mu.RLock()
	rm, exists := r.rooms[roomID]
	r.mu.RUnlock()

	if !exists {
		return
	}

	rm.mu.Lock()
	if _, present := rm.members[connID]; !present {
		rm.mu.Unlock()
		return
	}
	delete(rm.members, connID)
	memberCount := len(rm.members)
	rm.mu.Unlock()

	log.Printf("Connection %s left room %s. Members: %d", connID, roomID, memberCount)

	if memberCount == 0 {
		r.pruneRoom(roomID)
	}
}

// pruneRoom removes an empty room entry, re-checking emptiness under both
// locks since a Join may have raced in between.
func (r *Registry) pruneRoom(roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, exists := r.rooms[roomID]
	if !exists {
		return
	}

	rm.mu.RLock()
	empty := len(rm.members) == 0
	rm.mu.RUnlock()

	if empty {
		delete(r.rooms, roomID)
		log.Printf("Room %s removed", roomID)
	}
}

// MembersOf returns a point-in-time snapshot of a room's members, safe to
// iterate while other goroutines concurrently join and leave. An unknown room
// yields an empty snapshot.
func (r *Registry) MembersOf(roomID string) []*Connection {
	r.mu.RLock()
	rm, exists := r.rooms[roomID]
	r.mu.RUnlock()

	if !exists {
		return nil
	}

	rm.mu.RLock()
	defer rm.mu.RUnlock()

	members := make([]*Connection, 0, len(rm.members))
	for _, conn := range rm.members {
		members = append(members, conn)
	}
	return members
}

// Count returns the number of members currently in a room.
func (r *Registry) Count(roomID string) int {
	r.mu.RLock()
	rm, exists := r.rooms[roomID]
	r.mu.RUnlock()

	if !exists {
		return 0
	}

	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return len(rm.members)
}

// RoomCount returns the number of rooms with at least one member.
func (r *Registry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// Shutdown unregisters every connection and closes them all. No connection
// remains registered once it returns; their receive loops unwind as the
// closed sockets fail.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	rooms := r.rooms
	r.rooms = make(map[string]*room)
	r.mu.Unlock()

	closed := 0
	for _, rm := range rooms {
		rm.mu.RLock()
		conns := make([]*Connection, 0, len(rm.members))
		for _, conn := range rm.members {
			conns = append(conns, conn)
		}
		rm.mu.RUnlock()

		for _, conn := range conns {
			conn.shutdown()
			closed++
		}
	}

	log.Printf("Closed %d connections across %d rooms", closed, len(rooms))
}

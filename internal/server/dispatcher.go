// Package server fans inbound messages and membership announcements out to
// room members via the Dispatcher type.
package server

import (
	"encoding/json"
	"log"
)

// Dispatcher delivers messages to the members of a room. Delivery to each
// member is attempted independently: a broken or saturated recipient never
// aborts delivery to the rest of the room and never surfaces as an error to
// the sender; it is evicted instead. Per-recipient ordering follows from each
// connection's own send buffer; no cross-recipient ordering is promised.
type Dispatcher struct {
	registry *Registry
}

// NewDispatcher creates a Dispatcher that resolves room membership through
// the given registry.
func NewDispatcher(registry *Registry) *Dispatcher {
	return &Dispatcher{registry: registry}
}

// Broadcast delivers a text message to every member of a room, the sender
// included. Each recipient gets its own copy with IsSelf marking whether the
// recipient is the originating connection.
func (d *Dispatcher) Broadcast(roomID, senderConnID, senderName, text string) {
	d.deliver(roomID, func(member *Connection) ChatMessage {
		return ChatMessage{
			Text:   text,
			Sender: senderName,
			IsSelf: member.ID() == senderConnID,
		}
	})
}

// Announce sends a system message reporting a join or leave to every member
// of a room. The subject connection's own copy, if it is still a member, is
// marked IsSelf the same way a broadcast echo is.
func (d *Dispatcher) Announce(roomID string, kind AnnounceKind, subjectConnID, displayName string) {
	text := announcementText(kind, displayName)
	if text == "" {
		return
	}

	d.deliver(roomID, func(member *Connection) ChatMessage {
		return ChatMessage{
			Text:   text,
			Sender: SystemSender,
			IsSelf: member.ID() == subjectConnID,
		}
	})
}

// deliver fans a per-recipient message out over a membership snapshot. The
// payload is marshaled per recipient because IsSelf differs between copies.
// Members that cannot accept the payload are collected and evicted after the
// loop so one failure cannot starve the remaining deliveries.
func (d *Dispatcher) deliver(roomID string, build func(*Connection) ChatMessage) {
	members := d.registry.MembersOf(roomID)
	if len(members) == 0 {
		return
	}

	var failed []*Connection
	for _, member := range members {
		payload, err := json.Marshal(build(member))
		if err != nil {
			log.Printf("Error encoding message for connection %s: %v", member.ID(), err)
			continue
		}
		if !member.TrySend(payload) {
			failed = append(failed, member)
		}
	}

	for _, member := range failed {
		log.Printf("Dropping connection %s from room %s: send buffer full or connection closed", member.ID(), roomID)
		d.registry.Leave(roomID, member.ID())
		member.shutdown()
	}
}

package server

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// drainMessages decodes everything currently queued on a connection's send
// buffer without blocking.
func drainMessages(t *testing.T, conn *Connection) []ChatMessage {
	t.Helper()

	var messages []ChatMessage
	for {
		select {
		case payload, ok := <-conn.send:
			if !ok {
				return messages
			}
			var msg ChatMessage
			require.NoError(t, json.Unmarshal(payload, &msg))
			messages = append(messages, msg)
		default:
			return messages
		}
	}
}

func TestDispatcherBroadcast(t *testing.T) {
	tests := []struct {
		name       string
		roomID     string
		text       string
		wantSender string
	}{
		{name: "plain text", roomID: "7", text: "hello", wantSender: "alice"},
		{name: "empty text still delivered", roomID: "7", text: "", wantSender: "alice"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registry := NewRegistry()
			dispatcher := NewDispatcher(registry)

			sender := newTestConnection(registry, dispatcher, "a", "alice", tt.roomID)
			receiver1 := newTestConnection(registry, dispatcher, "b", "bob", tt.roomID)
			receiver2 := newTestConnection(registry, dispatcher, "c", "carol", tt.roomID)
			registry.Join(tt.roomID, sender)
			registry.Join(tt.roomID, receiver1)
			registry.Join(tt.roomID, receiver2)

			dispatcher.Broadcast(tt.roomID, sender.ID(), sender.DisplayName(), tt.text)

			senderCopies := drainMessages(t, sender)
			require.Len(t, senderCopies, 1)
			assert.Equal(t, tt.text, senderCopies[0].Text)
			assert.Equal(t, tt.wantSender, senderCopies[0].Sender)
			assert.True(t, senderCopies[0].IsSelf, "sender's own copy must be marked isSelf")

			for _, receiver := range []*Connection{receiver1, receiver2} {
				copies := drainMessages(t, receiver)
				require.Len(t, copies, 1, "receiver %s", receiver.ID())
				assert.Equal(t, tt.text, copies[0].Text)
				assert.Equal(t, tt.wantSender, copies[0].Sender)
				assert.False(t, copies[0].IsSelf)
			}
		})
	}
}

func TestDispatcherRoomIsolation(t *testing.T) {
	registry := NewRegistry()
	dispatcher := NewDispatcher(registry)

	alice := newTestConnection(registry, dispatcher, "a", "alice", "1")
	bob := newTestConnection(registry, dispatcher, "b", "bob", "2")
	registry.Join("1", alice)
	registry.Join("2", bob)

	dispatcher.Broadcast("1", alice.ID(), alice.DisplayName(), "x")

	assert.Len(t, drainMessages(t, alice), 1)
	assert.Empty(t, drainMessages(t, bob), "members of other rooms must never receive the message")
}

func TestDispatcherEmptyRoomIsNoOp(t *testing.T) {
	registry := NewRegistry()
	dispatcher := NewDispatcher(registry)

	// Neither call may panic or create state.
	dispatcher.Broadcast("ghost", "a", "alice", "anyone there?")
	dispatcher.Announce("ghost", AnnounceJoined, "a", "alice")

	assert.Equal(t, 0, registry.RoomCount())
}

func TestDispatcherEvictsFailedMember(t *testing.T) {
	registry := NewRegistry()
	dispatcher := NewDispatcher(registry)

	sender := newTestConnection(registry, dispatcher, "a", "alice", "7")
	healthy := newTestConnection(registry, dispatcher, "b", "bob", "7")
	broken := newTestConnection(registry, dispatcher, "c", "carol", "7")
	registry.Join("7", sender)
	registry.Join("7", healthy)
	registry.Join("7", broken)

	// A member that dropped mid-broadcast: closed, so TrySend fails.
	broken.shutdown()

	dispatcher.Broadcast("7", sender.ID(), sender.DisplayName(), "hello")

	// Delivery to the remaining members still succeeded.
	require.Len(t, drainMessages(t, healthy), 1)
	require.Len(t, drainMessages(t, sender), 1)

	// The broken member was removed from the room.
	ids := memberIDs(registry, "7")
	assert.False(t, ids["c"], "failed member must be evicted")
	assert.Equal(t, 2, registry.Count("7"))
}

func TestDispatcherEvictsSaturatedMember(t *testing.T) {
	SetConfig(&Config{SendBufferSize: 1})
	t.Cleanup(func() { SetConfig(nil) })

	registry := NewRegistry()
	dispatcher := NewDispatcher(registry)

	sender := newTestConnection(registry, dispatcher, "a", "alice", "7")
	slow := newTestConnection(registry, dispatcher, "b", "bob", "7")
	registry.Join("7", sender)
	registry.Join("7", slow)

	// First broadcast fills the slow member's single-slot buffer; the second
	// cannot be queued and drops the member instead of blocking the room.
	dispatcher.Broadcast("7", sender.ID(), sender.DisplayName(), "one")
	drainMessages(t, sender) // sender keeps its own buffer clear
	dispatcher.Broadcast("7", sender.ID(), sender.DisplayName(), "two")

	assert.Equal(t, 1, registry.Count("7"))
	assert.True(t, slow.isClosed())

	ids := memberIDs(registry, "7")
	assert.True(t, ids["a"], "sender keeps its membership")
}

func TestDispatcherAnnounce(t *testing.T) {
	tests := []struct {
		name     string
		kind     AnnounceKind
		wantText string
	}{
		{name: "joined", kind: AnnounceJoined, wantText: "alice connected to the chat."},
		{name: "left", kind: AnnounceLeft, wantText: "alice disconnected from the chat."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registry := NewRegistry()
			dispatcher := NewDispatcher(registry)

			subject := newTestConnection(registry, dispatcher, "a", "alice", "7")
			other := newTestConnection(registry, dispatcher, "b", "bob", "7")
			registry.Join("7", subject)
			registry.Join("7", other)

			dispatcher.Announce("7", tt.kind, subject.ID(), subject.DisplayName())

			subjectCopies := drainMessages(t, subject)
			require.Len(t, subjectCopies, 1)
			assert.Equal(t, tt.wantText, subjectCopies[0].Text)
			assert.Equal(t, SystemSender, subjectCopies[0].Sender)
			assert.True(t, subjectCopies[0].IsSelf)

			otherCopies := drainMessages(t, other)
			require.Len(t, otherCopies, 1)
			assert.Equal(t, tt.wantText, otherCopies[0].Text)
			assert.Equal(t, SystemSender, otherCopies[0].Sender)
			assert.False(t, otherCopies[0].IsSelf)
		})
	}
}

func TestDispatcherPerRecipientOrdering(t *testing.T) {
	registry := NewRegistry()
	dispatcher := NewDispatcher(registry)

	sender := newTestConnection(registry, dispatcher, "a", "alice", "7")
	receiver := newTestConnection(registry, dispatcher, "b", "bob", "7")
	registry.Join("7", sender)
	registry.Join("7", receiver)

	texts := []string{"first", "second", "third"}
	for _, text := range texts {
		dispatcher.Broadcast("7", sender.ID(), sender.DisplayName(), text)
	}

	copies := drainMessages(t, receiver)
	require.Len(t, copies, len(texts))
	for i, text := range texts {
		assert.Equal(t, text, copies[i].Text, "message %d out of order", i)
	}
}

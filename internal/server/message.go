// Package server defines the outbound message payload and shared utility
// helpers reused across connection and dispatch logic.
package server

import "strings"

// SystemSender is the sender tag used for server-generated messages such as
// join and leave announcements.
const SystemSender = "system"

// ChatMessage is the structured record delivered to every recipient of a
// broadcast. IsSelf is computed per recipient so the UI can style the
// sender's own echoed copy differently.
type ChatMessage struct {
	Text   string `json:"text"`
	Sender string `json:"sender"`
	IsSelf bool   `json:"isSelf"`
}

// AnnounceKind identifies the membership event an announcement reports.
type AnnounceKind int

// Announcement kinds for room membership changes.
const (
	AnnounceJoined AnnounceKind = iota
	AnnounceLeft
)

func announcementText(kind AnnounceKind, displayName string) string {
	switch kind {
	case AnnounceJoined:
		return displayName + " connected to the chat."
	case AnnounceLeft:
		return displayName + " disconnected from the chat."
	default:
		return ""
	}
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}

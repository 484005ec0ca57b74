// Package server exposes HTTP handlers for the join form, the chat page, the
// WebSocket upgrade endpoint, and health checks.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand/v2"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

const maxUsernameLength = 50

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     checkOrigin,
}

// Handler bundles the registry and dispatcher injected at server start and
// exposes the HTTP surface built on them. It tracks the per-connection pump
// goroutines so shutdown can wait for them to unwind.
type Handler struct {
	registry   *Registry
	dispatcher *Dispatcher
	wg         sync.WaitGroup
}

// NewHandler creates a Handler around the given registry and dispatcher.
func NewHandler(registry *Registry, dispatcher *Dispatcher) *Handler {
	return &Handler{
		registry:   registry,
		dispatcher: dispatcher,
	}
}

// HomePage serves the chat room entry form.
func (h *Handler) HomePage(w http.ResponseWriter, _ *http.Request) {
	renderHomePage(w, homePageData{})
}

// JoinChat processes the room entry form. Validation failures re-render the
// form with field errors and the submitted values preserved; on success the
// user gets a generated user id and the chat page, which opens the WebSocket.
func (h *Handler) JoinChat(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Failed to parse form", http.StatusBadRequest)
		return
	}

	username := strings.TrimSpace(r.PostFormValue("username"))
	roomField := strings.TrimSpace(r.PostFormValue("room_id"))

	errorMessages := validateJoinForm(username, roomField)
	if len(errorMessages) > 0 {
		renderHomePage(w, homePageData{
			ErrorMessages: errorMessages,
			Username:      username,
			RoomID:        roomField,
		})
		return
	}

	// Random user id for this session, matching the classic demo range.
	userID := strconv.Itoa(rand.IntN(99901) + 100)

	renderChatPage(w, chatPageData{
		RoomID:   roomField,
		UserID:   userID,
		Username: username,
	})
}

func validateJoinForm(username, roomField string) []string {
	var errorMessages []string

	if username == "" {
		errorMessages = append(errorMessages, "Username cannot be empty")
	} else if len(username) > maxUsernameLength {
		errorMessages = append(errorMessages, fmt.Sprintf("Username must be at most %d characters", maxUsernameLength))
	}

	if roomField == "" {
		errorMessages = append(errorMessages, "Room ID cannot be empty")
	} else if roomID, err := strconv.Atoi(roomField); err != nil || roomID <= 0 {
		errorMessages = append(errorMessages, "Room ID must be greater than 0")
	}

	return errorMessages
}

// ChatSocket handles WebSocket upgrade requests on
// /ws/chat/{roomID}/{userID}?username=... and runs the connection lifecycle:
// register, announce the join, pump messages, and clean up on disconnect.
func (h *Handler) ChatSocket(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	vars := mux.Vars(r)
	roomID := vars["roomID"]
	userID := vars["userID"]

	username := strings.TrimSpace(r.URL.Query().Get("username"))
	if username == "" {
		http.Error(w, "username query parameter is required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	connection := NewConnection(conn, h.registry, h.dispatcher, Identity{
		ID:          uuid.NewString(),
		UserID:      userID,
		DisplayName: username,
		RoomID:      roomID,
		Addr:        r.RemoteAddr,
	})

	h.registry.Join(roomID, connection)

	// Direct confirmation to the new connection before the room-wide
	// announcement; both land in the send buffer ahead of any broadcast.
	if payload, err := json.Marshal(ChatMessage{
		Text:   "Connected to room " + roomID + ".",
		Sender: SystemSender,
		IsSelf: false,
	}); err == nil {
		connection.TrySend(payload)
	}

	h.dispatcher.Announce(roomID, AnnounceJoined, connection.ID(), username)

	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		connection.writePump()
	}()
	go func() {
		defer h.wg.Done()
		connection.readPump()
	}()
}

// Shutdown closes every registered connection and waits for their pump
// goroutines to finish, or until the timeout is reached.
func (h *Handler) Shutdown(timeout time.Duration) error {
	log.Println("Shutting down all chat connections...")

	h.registry.Shutdown()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("Chat shutdown completed successfully")
		return nil
	case <-time.After(timeout):
		log.Println("Chat shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}

// Health provides a simple health check endpoint that returns server status.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "RoomChat server is running!")
}

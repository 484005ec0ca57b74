// Package server wires HTTP handlers into a router for the RoomChat
// application via routing helpers.
package server

import (
	"net/http"

	"github.com/gorilla/mux"
)

// SetupRoutes configures and returns a router with all application routes:
// the entry form, the join endpoint, the room WebSocket endpoint, and the
// health check.
func SetupRoutes(h *Handler) *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/", h.HomePage).Methods(http.MethodGet)
	router.HandleFunc("/join", h.JoinChat).Methods(http.MethodPost)
	router.HandleFunc("/ws/chat/{roomID}/{userID}", h.ChatSocket)
	router.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	return router
}

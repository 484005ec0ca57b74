package main

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"roomchat/internal/server"
)

func main() {
	fmt.Println("Starting RoomChat server...")

	// Optional .env file; real environment variables win either way.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment defaults")
	}

	config := server.NewConfigFromEnv()
	server.SetConfig(config)

	registry := server.NewRegistry()
	dispatcher := server.NewDispatcher(registry)
	handler := server.NewHandler(registry, dispatcher)

	router := server.SetupRoutes(handler)
	httpServer := server.CreateServer(config.Port, router)

	go func() {
		if err := server.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Println("Shutdown signal received")

	if err := server.ShutdownServer(httpServer, config.ShutdownTimeout); err != nil {
		log.Printf("HTTP shutdown error: %v", err)
	}

	if err := handler.Shutdown(config.ShutdownTimeout); err != nil {
		log.Printf("Connection shutdown error: %v", err)
	}

	log.Println("Server stopped")
}

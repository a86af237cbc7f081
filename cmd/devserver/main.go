// File: cmd/devserver/main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mostakin5290/discord-client/internal/devserver"
	"github.com/mostakin5290/discord-client/internal/services"
)

func main() {
	port := os.Getenv("DEVSERVER_PORT")
	if port == "" {
		port = "8090"
	}
	secret := os.Getenv("JWT_SECRET_KEY")
	if secret == "" {
		secret = "dev-only-secret"
		log.Println("JWT_SECRET_KEY not set; using the dev-only default")
	}

	logger := services.NewLogger("devserver")
	server := devserver.New([]byte(secret), logger)

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: server.Router(),
	}

	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Printf("==================================================")
	log.Printf("Chat dev backend (in-memory)")
	log.Printf("==================================================")
	log.Printf("REST API:  http://localhost:%s", port)
	log.Printf("Websocket: ws://localhost:%s/ws", port)
	log.Printf("Accounts are created on first login.")
	log.Printf("==================================================")

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server startup failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Println("Shutting down dev backend...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server shutdown failed: %v", err)
	}
	log.Println("Dev backend stopped")
}

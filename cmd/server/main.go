package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"collabdesk/internal/api"
	"collabdesk/internal/auth"
	"collabdesk/internal/config"
	"collabdesk/internal/db"
	"collabdesk/internal/repository"
	"collabdesk/internal/services"
	"collabdesk/internal/services/collaboration"
	"collabdesk/internal/telemetry"
)

func main() {
	log.Println("🚀 Starting CollabDesk...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}

	// Tracing goes up first so startup work is traced too
	jaegerShutdown, err := telemetry.InitJaeger("collabdesk", cfg.JaegerEndpoint)
	if err != nil {
		log.Printf("⚠️  Failed to initialize Jaeger: %v (continuing without tracing)", err)
		jaegerShutdown = func(ctx context.Context) error { return nil }
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := jaegerShutdown(ctx); err != nil {
			log.Printf("⚠️  Failed to shutdown Jaeger: %v", err)
		}
	}()

	database, err := db.NewGorm(cfg)
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer database.Close()

	// Repositories
	companyRepo := repository.NewCompanyRepository(database.DB)
	userRepo := repository.NewUserRepository(database.DB)
	noteRepo := repository.NewNoteRepository(database.DB)
	taskRepo := repository.NewTaskRepository(database.DB)
	chatRepo := repository.NewChatRepository(database.DB)
	opRepo := repository.NewOperationRepository(database.DB)

	verifier := auth.NewVerifier(cfg.JWTSecret, cfg.JWTExpiry)

	// History worker pool records operations off the request path
	historyService := services.NewHistoryService(opRepo, cfg.HistoryWorkers, cfg.HistoryQueueSize)
	historyService.Start()

	// Realtime hub and gateways
	hub := collaboration.NewHub()
	hub.Start()

	noteGateway := collaboration.NewNoteGateway(noteRepo, historyService, hub)
	chatGateway := collaboration.NewChatGateway(chatRepo, hub)
	wsHandler := collaboration.NewWebSocketHandler(verifier, companyRepo, noteGateway, chatGateway, hub)

	handler := api.NewHandler(companyRepo, userRepo, noteRepo, taskRepo, chatRepo, opRepo, historyService, verifier, wsHandler)
	router := api.SetupRoutes(handler)

	addr := fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("🌐 Server listening on http://%s", addr)
		log.Printf("📚 API Endpoints:")
		log.Printf("   POST   /api/auth/login      - Login")
		log.Printf("   POST   /api/auth/companies  - Register company")
		log.Printf("   POST   /api/notes           - Create note")
		log.Printf("   GET    /api/notes           - List notes")
		log.Printf("   WS     /ws/note/:id         - Collaborative editing")
		log.Printf("   WS     /ws/chat/:id         - Chat rooms")
		log.Println()

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("\n🛑 Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("⚠️  Server forced to shutdown: %v", err)
	}

	// Close websocket sessions first so editors stop producing history
	// jobs, then drain the queue
	hub.Shutdown()
	historyService.Shutdown()

	log.Println("✓ Server shutdown complete")
}

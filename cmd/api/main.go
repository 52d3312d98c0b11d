package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/candlewick/agentdesk/internal/config"
	"github.com/candlewick/agentdesk/internal/handler"
	"github.com/candlewick/agentdesk/internal/service/agent"
	"github.com/candlewick/agentdesk/internal/service/session"
	"github.com/candlewick/agentdesk/web"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	store := session.NewStore()
	registry := session.NewRegistry(store)

	// The agent engine only exists when model credentials are present.
	// Without it the server still serves the page and degraded endpoints.
	var engine agent.Engine
	if cfg.AI.Enabled() {
		svc, err := agent.NewService(ctx, store, cfg.AI)
		if err != nil {
			log.Printf("warning: failed to initialize agent engine: %v", err)
			log.Println("continuing without agent functionality - check ARK_* environment variables")
		} else {
			engine = svc
			log.Println("agent engine initialized successfully")
		}
	} else {
		log.Println("model credentials not configured, skipping agent engine initialization")
	}

	router := handler.NewRouter(registry, store, engine, web.Page())

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("Agentdesk listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

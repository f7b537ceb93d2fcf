// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/ansuz/internal/api"
	"github.com/starford/ansuz/internal/capture"
	"github.com/starford/ansuz/internal/chat"
	"github.com/starford/ansuz/internal/enhance"
	"github.com/starford/ansuz/internal/heuristic"
	"github.com/starford/ansuz/internal/mcpserver"
	"github.com/starford/ansuz/internal/model"
	"github.com/starford/ansuz/internal/sse"
	"github.com/starford/ansuz/internal/store"
)

// buildPipeline wires the store, strategies, orchestrator, and chat
// engine shared by the HTTP server and the MCP server.
func buildPipeline(ctx context.Context, cfg *Config, logger *slog.Logger, notify enhance.EventCallback) (*store.DB, *enhance.Orchestrator, *chat.Engine, error) {
	db, err := store.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init store: %w", err)
	}

	heur := heuristic.New()

	var strategy enhance.Strategy = heur
	var backend model.Backend
	if cfg.Model.Enabled {
		client := model.NewClient(
			model.WithBaseURL(cfg.Model.BaseURL),
			model.WithModel(cfg.Model.Name),
			model.WithTimeout(cfg.Model.Timeout()),
			model.WithEnabled(true),
		)
		backend = client
		strategy = enhance.NewFallback(model.NewAdapter(client, heur, logger), heur, logger)
	}

	orchOpts := []enhance.Option{
		enhance.WithMinVisible(cfg.Enhance.MinVisible()),
	}
	if notify != nil {
		orchOpts = append(orchOpts, enhance.WithNotify(notify))
	}
	orch := enhance.NewOrchestrator(ctx, db, strategy, logger, orchOpts...)

	engine := chat.NewEngine(backend, logger)
	return db, orch, engine, nil
}

// Run starts the HTTP server, the SSE broker, and (when configured) the
// inbox watcher, and blocks until shutdown.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.Bool("model_enabled", cfg.Model.Enabled),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	// Orchestrator lifecycle events fan out to SSE clients.
	notify := func(kind, id string) {
		broker.PublishNoteEvent(strings.TrimPrefix(kind, "note."), id)
	}

	db, orch, engine, err := buildPipeline(ctx, cfg, logger, notify)
	if err != nil {
		return err
	}
	defer db.Close()

	// Build API handler and router.
	h := api.NewHandler(db, orch, engine, broker.PublishNoteEvent)
	apiRouter := api.NewRouter(h, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Inbox watcher for dropped transcripts.
	if cfg.Inbox.Enabled() {
		watcher, err := capture.NewWatcher(cfg.Inbox.Path, orch, logger)
		if err != nil {
			return fmt.Errorf("init inbox watcher: %w", err)
		}
		g.Go(func() error {
			return watcher.Run(gCtx)
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		// Let in-flight enhancements patch their records before the
		// store closes.
		orch.Wait()

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP serves the note tools over MCP stdio. Logs go to stderr so
// stdout stays clean for the protocol.
func RunMCP(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	db, orch, engine, err := buildPipeline(ctx, cfg, logger, nil)
	if err != nil {
		return err
	}
	defer db.Close()
	defer orch.Wait()

	srv := mcpserver.New(db, orch, engine)
	logger.Info("MCP server starting on stdio")
	return srv.ServeStdio()
}

package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"tacmap/internal/api"
	"tacmap/internal/config"
	"tacmap/internal/dispatch"
	"tacmap/internal/engine"
	"tacmap/internal/game"
	"tacmap/internal/journal"
	"tacmap/internal/websocket"
)

// Application wires the components together. Initialization order follows
// the dependency chain: journal, store, registry, engine, dispatcher, then
// the HTTP surface.
type Application struct {
	config     *config.Config
	journal    journal.Recorder
	store      *game.Store
	registry   *websocket.Registry
	engine     *engine.Engine
	dispatcher *dispatch.Dispatcher
	apiServer  *api.Server
	httpServer *http.Server
}

func NewApplication(cfg *config.Config) (*Application, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	var recorder journal.Recorder = journal.Noop{}
	if cfg.Journal.Path != "" {
		sqliteRecorder, err := journal.NewSQLite(cfg.Journal.Path, cfg.Journal.Timeout)
		if err != nil {
			return nil, fmt.Errorf("failed to open journal: %w", err)
		}
		recorder = sqliteRecorder
	}

	store := game.NewStore(cfg.Tick.MessageLogCap)
	registry := websocket.NewRegistry(store)
	eng := engine.New(store, registry, recorder, cfg.Tick)
	dispatcher := dispatch.NewDispatcher(eng, registry)
	wsHandler := websocket.NewHandler(registry, dispatcher, cfg.WebSocket)
	apiServer := api.NewServer(store, registry, recorder)

	mux := http.NewServeMux()
	mux.Handle("/api/", apiServer)
	mux.Handle("/health", apiServer)
	mux.HandleFunc("/ws", wsHandler.HandleWebSocket)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      mux,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	return &Application{
		config:     cfg,
		journal:    recorder,
		store:      store,
		registry:   registry,
		engine:     eng,
		dispatcher: dispatcher,
		apiServer:  apiServer,
		httpServer: httpServer,
	}, nil
}

// Start launches the engine, then the HTTP server. The engine must be
// running before the first WebSocket frame can arrive.
func (app *Application) Start(ctx context.Context) error {
	log.Printf("Starting tacmap server on %s", app.httpServer.Addr)

	if err := app.engine.Start(); err != nil {
		return fmt.Errorf("failed to start engine: %w", err)
	}

	serverErrCh := make(chan error, 1)
	go func() {
		if err := app.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	select {
	case err := <-serverErrCh:
		app.engine.Stop()
		return err
	case <-time.After(100 * time.Millisecond):
		log.Printf("Server started: sessions=%d", app.store.Count())
		return nil
	case <-ctx.Done():
		app.engine.Stop()
		return ctx.Err()
	}
}

// Stop shuts components down in reverse order: HTTP, engine, journal.
func (app *Application) Stop(ctx context.Context) error {
	log.Printf("Shutting down tacmap server")

	if err := app.httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	app.engine.Stop()

	if err := app.journal.Close(); err != nil {
		log.Printf("Journal shutdown error: %v", err)
	}

	log.Printf("Shutdown complete")
	return nil
}

// Addr returns the listen address.
func (app *Application) Addr() string {
	return app.httpServer.Addr
}

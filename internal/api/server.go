// Package api exposes the REST surface: a health check and a read-only
// session listing. All gameplay traffic goes over the WebSocket endpoint;
// nothing here mutates state.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"tacmap/internal/game"
	"tacmap/internal/journal"
	"tacmap/internal/websocket"
)

type Server struct {
	store    *game.Store
	registry *websocket.Registry
	journal  journal.Recorder
	router   *http.ServeMux
}

func NewServer(store *game.Store, registry *websocket.Registry, recorder journal.Recorder) *Server {
	s := &Server{
		store:    store,
		registry: registry,
		journal:  recorder,
		router:   http.NewServeMux(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Handle("/health", s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.healthCheck))))
	s.router.Handle("/api/sessions", s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.listSessions))))
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

type HealthResponse struct {
	Status            string         `json:"status"`
	ActiveSessions    int            `json:"activeSessions"`
	ActiveConnections int            `json:"activeConnections"`
	Journal           string         `json:"journal"`
	Connections       map[string]int `json:"connections"`
	Timestamp         time.Time      `json:"timestamp"`
}

type SessionsResponse struct {
	Sessions []game.Summary `json:"sessions"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// healthCheck reports liveness plus current session and connection counts.
// A failing journal marks the whole service unhealthy.
func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "healthy"
	journalStatus := "healthy"
	if err := s.journal.HealthCheck(ctx); err != nil {
		status = "unhealthy"
		journalStatus = fmt.Sprintf("error: %v", err)
	}

	response := HealthResponse{
		Status:            status,
		ActiveSessions:    s.store.Count(),
		ActiveConnections: s.registry.Count(),
		Journal:           journalStatus,
		Connections:       s.registry.Stats(),
		Timestamp:         time.Now(),
	}

	if status == "unhealthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(response)
}

// listSessions returns summaries of every live session. Codes are included
// so lobby clients can offer them for joining.
func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	json.NewEncoder(w).Encode(SessionsResponse{Sessions: s.store.Summaries()})
}

func (s *Server) sendError(w http.ResponseWriter, message string, code int) {
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   http.StatusText(code),
		Code:    code,
		Message: message,
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

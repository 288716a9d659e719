// Package api provides the REST and WebSocket API server for taskvault.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	vaulterrors "github.com/taskvault/taskvault/internal/errors"
	"github.com/taskvault/taskvault/internal/events"
	"github.com/taskvault/taskvault/internal/store"
)

// Server is the taskvault API server.
type Server struct {
	addr   string
	mux    *http.ServeMux
	logger *slog.Logger

	// Event publisher for real-time updates
	publisher events.Publisher
	wsHandler *WSHandler

	// Storage backend
	backend store.Backend

	// Per-project stats cache
	statsCache *statsCache
}

// Config holds server configuration.
type Config struct {
	Addr     string
	Logger   *slog.Logger
	StatsTTL time.Duration
}

// DefaultConfig returns the default server configuration.
func DefaultConfig() *Config {
	return &Config{
		Addr:     ":8080",
		Logger:   slog.Default(),
		StatsTTL: 5 * time.Second,
	}
}

// New creates a new API server over the given backend.
func New(cfg *Config, backend store.Backend) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ttl := cfg.StatsTTL
	if ttl <= 0 {
		ttl = 5 * time.Second
	}

	pub := events.NewMemoryPublisher()

	s := &Server{
		addr:       cfg.Addr,
		mux:        http.NewServeMux(),
		logger:     logger,
		publisher:  pub,
		backend:    backend,
		statsCache: newStatsCache(backend, ttl),
	}

	s.wsHandler = NewWSHandler(pub, logger)

	s.registerRoutes()
	return s
}

// registerRoutes sets up all API routes.
func (s *Server) registerRoutes() {
	// CORS middleware wrapper
	cors := func(h http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			h(w, r)
		}
	}

	// Health check
	s.mux.HandleFunc("GET /api/health", cors(s.handleHealth))

	// Projects
	s.mux.HandleFunc("GET /api/projects", cors(s.handleListProjects))
	s.mux.HandleFunc("POST /api/projects", cors(s.handleCreateProject))
	s.mux.HandleFunc("GET /api/projects/{id}", cors(s.handleGetProject))

	// Epics
	s.mux.HandleFunc("GET /api/projects/{id}/epics", cors(s.handleListEpics))
	s.mux.HandleFunc("POST /api/projects/{id}/epics", cors(s.handleSaveEpic))
	s.mux.HandleFunc("GET /api/projects/{id}/epics/{epicId}", cors(s.handleGetEpic))
	s.mux.HandleFunc("GET /api/projects/{id}/epics/{epicId}/progress", cors(s.handleGetEpicProgress))
	s.mux.HandleFunc("POST /api/projects/{id}/epics/{epicId}/archive", cors(s.handleArchiveEpic))
	s.mux.HandleFunc("POST /api/projects/{id}/epics/{epicId}/restore", cors(s.handleRestoreEpic))

	// Archived epic collection
	s.mux.HandleFunc("GET /api/projects/{id}/archived-epics", cors(s.handleListArchivedEpics))

	// Story verifications
	s.mux.HandleFunc("POST /api/projects/{id}/verifications", cors(s.handleSaveVerification))
	s.mux.HandleFunc("GET /api/projects/{id}/verifications", cors(s.handleListVerifications))

	// Task-list archives
	s.mux.HandleFunc("GET /api/projects/{id}/archives", cors(s.handleListArchives))
	s.mux.HandleFunc("POST /api/projects/{id}/archives", cors(s.handleUploadArchive))
	s.mux.HandleFunc("GET /api/archives/{archiveId}", cors(s.handleGetArchive))
	s.mux.HandleFunc("DELETE /api/archives/{archiveId}", cors(s.handleDeleteArchive))

	// Project stats (cached)
	s.mux.HandleFunc("GET /api/projects/{id}/stats", cors(s.handleGetStats))

	// WebSocket for real-time updates
	s.mux.Handle("GET /api/ws", s.wsHandler)
}

// Start starts the API server.
func (s *Server) Start() error {
	s.logger.Info("starting API server", "addr", s.addr)
	return http.ListenAndServe(s.addr, s.mux)
}

// StartContext starts the API server with context for graceful shutdown.
func (s *Server) StartContext(ctx context.Context) error {
	server := &http.Server{
		Addr:    s.addr,
		Handler: s.mux,
	}

	go func() {
		<-ctx.Done()
		s.wsHandler.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("starting API server", "addr", s.addr)
	return server.ListenAndServe()
}

// Handler returns the server's HTTP handler (for testing).
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Backend returns the storage backend (for testing).
func (s *Server) Backend() store.Backend {
	return s.backend
}

// Publisher returns the event publisher.
func (s *Server) Publisher() events.Publisher {
	return s.publisher
}

// handleHealth returns server health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, map[string]string{"status": "ok"})
}

// jsonResponse writes a JSON response.
func (s *Server) jsonResponse(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(data)
}

// jsonResponseStatus writes a JSON response with a specific status code.
func (s *Server) jsonResponseStatus(w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// jsonError writes a JSON error response.
func (s *Server) jsonError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// refresh marks a project's derived data stale after a write: drops
// the cached stats and tells subscribers to refetch their collections.
func (s *Server) refresh(projectID string) {
	s.statsCache.Invalidate(projectID)
	s.publisher.Publish(events.NewEvent(events.EventCollectionRefreshed, projectID, nil))
}

// handleError inspects the error type and writes the appropriate response.
func (s *Server) handleError(w http.ResponseWriter, err error) {
	if verr := vaulterrors.AsVaultError(err); verr != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(verr.HTTPStatus())
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": verr.What,
			"code":  string(verr.Code),
		})
		return
	}
	s.jsonError(w, err.Error(), http.StatusInternalServerError)
}

package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/lazypower/mem/internal/config"
	"github.com/lazypower/mem/internal/engine"
	"github.com/lazypower/mem/internal/store"
)

// maxBodyBytes bounds request bodies; indexed files are the largest payload.
const maxBodyBytes = 2 << 20

// Server is the mem HTTP API server.
type Server struct {
	db      *store.DB
	engine  *engine.Engine
	cfg     config.Config
	metrics *Metrics
	log     zerolog.Logger
	router  chi.Router
	version string
	started time.Time
}

// New creates a new Server with the given database, config and version string.
func New(db *store.DB, cfg config.Config, version string, log zerolog.Logger) *Server {
	s := &Server{
		db:      db,
		engine:  engine.New(db, log),
		cfg:     cfg,
		metrics: NewMetrics(),
		log:     log.With().Str("component", "server").Logger(),
		version: version,
		started: time.Now(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(s.metrics.instrument)

	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/memories", func(r chi.Router) {
			r.Post("/", s.handleSaveMemory)
			r.Get("/", s.handleRecentMemories)
			r.Get("/{memoryID}", s.handleGetMemory)
			r.Delete("/{memoryID}", s.handleDeleteMemory)
			r.Post("/{memoryID}/promote", s.handleSetScope(store.ScopeGlobal))
			r.Post("/{memoryID}/demote", s.handleSetScope(store.ScopeProject))
		})

		r.Get("/search", s.handleSearch)
		r.Get("/context", s.handleContext)
		r.Post("/decay", s.handleDecay)
		r.Post("/files", s.handleUpsertFile)
		r.Get("/stats", s.handleStats)
		r.Get("/gain", s.handleGain)

		r.Post("/sessions/init", s.handleSessionInit)
		r.Post("/sessions/{sessionID}/end", s.handleEndSession)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbOK := s.db.Ping(r.Context()) == nil

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.started).Seconds(),
		"db":      dbOK,
		"db_path": s.db.Path,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeError maps store errors onto status codes: invalid input is 400,
// a poisoned store is 503, anything else 500.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, kind := http.StatusInternalServerError, "internal"
	switch {
	case errors.Is(err, store.ErrInvalidInput):
		status, kind = http.StatusBadRequest, "invalid_input"
	case errors.Is(err, store.ErrInconsistentState):
		status, kind = http.StatusServiceUnavailable, "inconsistent_state"
	}
	s.metrics.StoreErrors.WithLabelValues(kind).Inc()
	if status >= 500 {
		s.log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	writeMessage(w, status, err.Error())
}

// decodeBody decodes a JSON request body into v. An empty body leaves v
// untouched when allowEmpty is set.
func decodeBody(r *http.Request, v any, allowEmpty bool) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if allowEmpty && errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	return nil
}

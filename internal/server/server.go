package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lazypower/freshnote/internal/engine"
	"github.com/lazypower/freshnote/internal/store"
)

// Server is the freshnote HTTP API server.
type Server struct {
	db      *store.DB
	engine  *engine.Engine
	router  chi.Router
	version string
	started time.Time
}

// New creates a new Server with the given store, engine, and version string.
func New(db *store.DB, eng *engine.Engine, version string) *Server {
	s := &Server{
		db:      db,
		engine:  eng,
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
	r.Use(requestLogger)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/notes", func(r chi.Router) {
			r.Use(requireOwner)

			r.Get("/", s.handleListNotes)
			r.Post("/", s.handleCreateNote)
			r.Get("/archived", s.handleListArchived)
			r.Get("/stats", s.handleStats)
			r.Post("/sweep", s.handleSweep)

			r.Route("/{noteID}", func(r chi.Router) {
				r.Get("/", s.handleGetNote)
				r.Put("/", s.handleUpdateNote)
				r.Delete("/", s.handleDeleteNote)
				r.Post("/revision", s.handleGenerateRevision)
				r.Post("/answer", s.handleAnswerQuestion)
				r.Post("/revive", s.handleRevive)
				r.Post("/reset-penalties", s.handleResetPenalties)
				r.Get("/penalty", s.handlePenaltyDetail)
				r.Post("/complete-revision", s.handleCompleteSession)
			})
		})
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbOK := true
	if err := s.db.Ping(); err != nil {
		dbOK = false
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.started).Seconds(),
		"db":      dbOK,
		"db_path": s.db.Path,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

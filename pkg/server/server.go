// Package server exposes the conversational core over HTTP: chat (batch and
// SSE streaming), conversation and document management, database connection
// administration, the approval-gated SQL console, preferences, and model
// selection. The caller is identified by the trusted X-User-ID header;
// authentication itself lives outside this system.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nestor-ai/nestor/pkg/agent"
	"github.com/nestor-ai/nestor/pkg/config"
	"github.com/nestor-ai/nestor/pkg/orchestrator"
	"github.com/nestor-ai/nestor/pkg/rag"
	"github.com/nestor-ai/nestor/pkg/sqldb"
	"github.com/nestor-ai/nestor/pkg/store"
)

// Server wires the core components behind the REST API.
type Server struct {
	cfg    *config.Config
	store  *store.Store
	orch   *orchestrator.Orchestrator
	agents *agent.Registry
	cache  *rag.Cache
	sql    *sqldb.Service

	router chi.Router
	http   *http.Server
}

// New assembles the server. All collaborators are owned by the caller.
func New(cfg *config.Config, st *store.Store, orch *orchestrator.Orchestrator, agents *agent.Registry, cache *rag.Cache, sqlService *sqldb.Service) *Server {
	s := &Server{
		cfg:    cfg,
		store:  st,
		orch:   orch,
		agents: agents,
		cache:  cache,
		sql:    sqlService,
	}
	s.router = s.routes()
	s.http = &http.Server{
		Addr:              cfg.Server.Address(),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(s.corsMiddleware)
	r.Use(requestLogger)
	r.Use(userIdentity)

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/chat", s.handleChat)
		r.Post("/chat/stream", s.handleChatStream)

		r.Route("/conversations", func(r chi.Router) {
			r.Get("/", s.handleListConversations)
			r.Post("/", s.handleCreateConversation)
			r.Get("/{id}", s.handleGetConversation)
			r.Delete("/{id}", s.handleDeleteConversation)
			r.Get("/{id}/messages", s.handleListMessages)
		})

		r.Route("/documents", func(r chi.Router) {
			r.Get("/", s.handleListDocuments)
			r.Post("/", s.handleUploadDocument)
			r.Delete("/{id}", s.handleDeleteDocument)
		})

		r.Route("/database", func(r chi.Router) {
			r.Get("/connection", s.handleGetConnection)
			r.Put("/connection", s.handlePutConnection)
			r.Post("/upload", s.handleUploadDatabase)
			r.Post("/test", s.handleTestConnection)
			r.Get("/schema", s.handleGetSchema)
		})

		r.Route("/sql", func(r chi.Router) {
			r.Post("/suggest", s.handleSQLSuggest)
			r.Post("/execute", s.handleSQLExecute)
		})

		r.Get("/preferences", s.handleGetPreferences)
		r.Put("/preferences", s.handlePutPreferences)

		r.Get("/models", s.handleListModels)
		r.Put("/models/current", s.handleSetCurrentModel)
		r.Post("/agent/reset", s.handleAgentReset)

		r.Post("/messages/{id}/feedback", s.handleFeedback)
	})

	return r
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

// Start serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "address", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.http.Shutdown(shutdownCtx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"index_resident": s.cache.Resident(),
		"current_model":  s.agents.CurrentModel().ID,
	})
}

// Package server provides the HTTP API for Warraq.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/warraq/warraq/internal/answer"
	"github.com/warraq/warraq/internal/config"
	"github.com/warraq/warraq/internal/extract"
	"github.com/warraq/warraq/internal/indexer"
	"github.com/warraq/warraq/internal/storage"
	"go.uber.org/zap"
)

// Server is the HTTP server for the Warraq API.
type Server struct {
	store     *storage.SQLiteStore
	builder   *indexer.Builder
	answerer  *answer.Answerer
	extractor *extract.Extractor
	config    *config.Config
	logger    *zap.Logger
	server    *http.Server

	// indexMu serializes index replacement against index loads so a query
	// never observes a partially written file. Last full upload still wins.
	indexMu sync.RWMutex
}

// NewServer creates a server with the given dependencies.
func NewServer(
	store *storage.SQLiteStore,
	builder *indexer.Builder,
	answerer *answer.Answerer,
	extractor *extract.Extractor,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	return &Server{
		store:     store,
		builder:   builder,
		answerer:  answerer,
		extractor: extractor,
		config:    cfg,
		logger:    logger,
	}
}

// Router builds the chi router with all routes and middleware.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))
	// Any frontend may call the API, matching the permissive CORS policy of
	// the upload UI.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: false,
	}))

	r.Post("/upload", s.handleUpload)
	r.Post("/ask", s.handleAsk)
	r.Post("/login", s.handleLogin)
	r.Post("/register", s.handleRegister)
	r.Get("/users", s.handleListUsers)
	r.Get("/documents", s.handleListDocuments)
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// Package server provides the HTTP API for ragapi.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/ragapi/internal/config"
	"github.com/hyperjump/ragapi/internal/indexer"
	"github.com/hyperjump/ragapi/internal/search"
	"github.com/hyperjump/ragapi/internal/storage"
)

const requestTimeout = 120 * time.Second

// WatchService manages the watched directories. *watcher.Watcher implements it.
type WatchService interface {
	Directories() []string
	AddDirectory(path string, syncExisting bool) error
	RemoveDirectory(path string) error
}

// Server is the HTTP server for the ragapi API.
type Server struct {
	engine     *search.Engine
	indexer    *indexer.Indexer
	staging    *storage.Staging
	config     *config.Config
	logger     *zap.Logger
	watch      WatchService // nil when watching is disabled
	configPath string       // watch changes are persisted here when set
	configMu   sync.Mutex
	server     *http.Server
}

// NewServer creates a server with the given dependencies. watch may be nil.
func NewServer(
	engine *search.Engine,
	idx *indexer.Indexer,
	staging *storage.Staging,
	cfg *config.Config,
	logger *zap.Logger,
	watch WatchService,
	configPath string,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		engine:     engine,
		indexer:    idx,
		staging:    staging,
		config:     cfg,
		logger:     logger,
		watch:      watch,
		configPath: configPath,
	}
}

// Handler returns the router with all routes and middleware installed.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(middleware.Compress(5))

	r.Get("/healthz", s.handleHealth)
	r.Get("/health", s.handleHealth)
	r.Get("/status", s.handleStatus)
	r.Post("/ingest", s.handleIngest)
	r.Post("/query", s.handleQuery)
	r.Delete("/documents/{docId}", s.handleDeleteDocument)

	r.Get("/watch/directories", s.handleWatchDirectoriesList)
	r.Post("/watch/directories", s.handleWatchDirectoriesAdd)
	r.Delete("/watch/directories", s.handleWatchDirectoriesRemove)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr), zap.String("collection", s.indexer.Collection()))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

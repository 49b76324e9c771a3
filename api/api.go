package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/recall/pkg/storage"
)

// Server is the API server for ingesting and querying recall memory.
type Server struct {
	config Config
	memory Memory
	store  storage.Driver
	queue  Enqueuer
	logger *slog.Logger
	app    *fiber.App
}

// NewServer creates a new API server.
// The store receives ingested messages. When queue is nil, ingestion stores
// and indexes synchronously within the request.
func NewServer(config Config, memory Memory, store storage.Driver, queue Enqueuer, logger *slog.Logger) (*Server, error) {
	if memory == nil {
		return nil, errors.New("memory is required")
	}
	if store == nil {
		return nil, errors.New("message store is required")
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config: config,
		memory: memory,
		store:  store,
		queue:  queue,
		logger: logger,
		app:    app,
	}

	app.Get("/ping", s.handlePing)

	v1 := app.Group("/v1")
	v1.Post("/messages", s.handleIngestMessages)
	v1.Post("/index", s.handleIndexMessages)
	v1.Get("/search", s.handleSearchEndpoint)
	v1.Get("/sessions/:id/summary", s.handleSessionSummary)
	v1.Post("/sessions/:id/reindex", s.handleReindexSession)
	v1.Get("/conversations/:id/similar", s.handleSimilarConversations)
	v1.Get("/stats", s.handleStats)
	v1.Post("/save", s.handleSave)

	if config.MCPHandler != nil {
		app.All("/mcp", adaptor.HTTPHandler(config.MCPHandler))
	}

	return s, nil
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server", "listen", s.config.ListenAddr)
	return s.app.Listen(s.config.ListenAddr)
}

// Handler exposes the server as a net/http handler.
func (s *Server) Handler() http.Handler {
	return adaptor.FiberApp(s.app)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

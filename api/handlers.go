package api

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/recall/pkg/indexer"
	"github.com/papercomputeco/recall/pkg/semantic"
	"github.com/papercomputeco/recall/pkg/storage"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// MessagesRequest is the body of POST /v1/messages and POST /v1/index.
type MessagesRequest struct {
	Messages []*storage.Message `json:"messages"`
}

// IngestResponse is returned by POST /v1/messages.
type IngestResponse struct {
	// Accepted is the number of messages stored or queued.
	Accepted int `json:"accepted"`

	// Queued is true when indexing happens in the background.
	Queued bool `json:"queued"`

	// Index is set when indexing ran within the request.
	Index *semantic.BatchIndexResult `json:"index,omitempty"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleIngestMessages stores messages and indexes them, in the background
// when a queue is configured.
func (s *Server) handleIngestMessages(c *fiber.Ctx) error {
	msgs, err := parseMessages(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
	}

	if s.queue != nil {
		if !s.queue.Enqueue(indexer.Job{Messages: msgs}) {
			return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{Error: "indexing queue is full"})
		}
		return c.Status(fiber.StatusAccepted).JSON(IngestResponse{Accepted: len(msgs), Queued: true})
	}

	ctx := c.UserContext()
	if err := s.store.Put(ctx, msgs...); err != nil {
		s.logger.Error("failed to store messages", "count", len(msgs), "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to store messages"})
	}

	res, err := s.memory.IndexBatchMessages(ctx, msgs)
	if err != nil {
		return c.Status(statusFor(err)).JSON(ErrorResponse{Error: err.Error()})
	}

	return c.JSON(IngestResponse{Accepted: len(msgs), Index: res})
}

// handleIndexMessages indexes messages without storing them.
func (s *Server) handleIndexMessages(c *fiber.Ctx) error {
	msgs, err := parseMessages(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
	}

	res, err := s.memory.IndexBatchMessages(c.UserContext(), msgs)
	if err != nil {
		return c.Status(statusFor(err)).JSON(ErrorResponse{Error: err.Error()})
	}

	return c.JSON(res)
}

// handleReindexSession rebuilds the index entries of one session.
func (s *Server) handleReindexSession(c *fiber.Ctx) error {
	res, err := s.memory.ReindexSession(c.UserContext(), c.Params("id"))
	if err != nil {
		return c.Status(statusFor(err)).JSON(ErrorResponse{Error: err.Error()})
	}
	return c.JSON(res)
}

// handleSessionSummary returns the most representative messages of a session.
// Query parameters:
//   - top_k (optional, default 5): number of summary messages
func (s *Server) handleSessionSummary(c *fiber.Ctx) error {
	topK, err := positiveQueryInt(c, "top_k", semantic.DefaultSummaryTopK)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
	}

	return c.JSON(s.memory.GetSemanticSummary(c.UserContext(), c.Params("id"), topK))
}

// handleSimilarConversations ranks other conversations against one.
// Query parameters:
//   - k (optional, default 5): number of conversations
func (s *Server) handleSimilarConversations(c *fiber.Ctx) error {
	k, err := positiveQueryInt(c, "k", semantic.DefaultSimilarK)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
	}

	return c.JSON(s.memory.FindSimilarConversations(c.UserContext(), c.Params("id"), k))
}

// StatsResponse is returned by GET /v1/stats.
type StatsResponse struct {
	*semantic.Stats

	// Pending is the number of queued indexing jobs.
	Pending int `json:"pending"`
}

// handleStats returns cache and index statistics.
func (s *Server) handleStats(c *fiber.Ctx) error {
	stats, err := s.memory.Stats(c.UserContext())
	if err != nil {
		return c.Status(statusFor(err)).JSON(ErrorResponse{Error: err.Error()})
	}

	resp := StatsResponse{Stats: stats}
	if s.queue != nil {
		resp.Pending = s.queue.Pending()
	}
	return c.JSON(resp)
}

// handleSave flushes the embedding cache and persists the index.
func (s *Server) handleSave(c *fiber.Ctx) error {
	if err := s.memory.Save(c.UserContext()); err != nil {
		s.logger.Error("failed to save memory", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: err.Error()})
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func parseMessages(c *fiber.Ctx) ([]*storage.Message, error) {
	var req MessagesRequest
	if err := c.BodyParser(&req); err != nil {
		return nil, errors.New("invalid request body")
	}
	if len(req.Messages) == 0 {
		return nil, errors.New("messages are required")
	}
	for _, msg := range req.Messages {
		if msg == nil {
			return nil, semantic.ErrNilMessage
		}
		if err := msg.Validate(); err != nil {
			return nil, err
		}
	}
	return req.Messages, nil
}

func positiveQueryInt(c *fiber.Ctx, name string, def int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, errors.New(name + " must be a positive integer")
	}
	return n, nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, semantic.ErrNilMessage),
		errors.Is(err, semantic.ErrMissingMessageID),
		errors.Is(err, storage.ErrInvalidMessage):
		return fiber.StatusBadRequest
	case errors.Is(err, semantic.ErrNoGenerator):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

package api

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/recall/pkg/semantic"
)

// handleSearchEndpoint handles GET /v1/search requests.
// Query parameters:
//   - query (required): the search query text
//   - k (optional, default 10): number of results to return
//   - session_id (optional): restrict results to one session
//   - min_relevance (optional): similarity floor, negative disables it
//   - from, to (optional, RFC 3339): creation time bounds
//
// A failed search still answers 200 with the error set on the response.
func (s *Server) handleSearchEndpoint(c *fiber.Ctx) error {
	query := c.Query("query")
	if query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error: "query parameter is required",
		})
	}

	opts := semantic.SearchOptions{SessionID: c.Query("session_id")}

	if kStr := c.Query("k"); kStr != "" {
		parsed, err := strconv.Atoi(kStr)
		if err != nil || parsed <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
				Error: "k must be a positive integer",
			})
		}
		opts.K = parsed
	}

	if mrStr := c.Query("min_relevance"); mrStr != "" {
		parsed, err := strconv.ParseFloat(mrStr, 64)
		if err != nil || parsed > 1 {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
				Error: "min_relevance must be a number no greater than 1",
			})
		}
		opts.MinRelevance = parsed
	}

	for name, dst := range map[string]*time.Time{"from": &opts.TimeRange.From, "to": &opts.TimeRange.To} {
		raw := c.Query(name)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
				Error: name + " must be an RFC 3339 timestamp",
			})
		}
		*dst = t
	}

	resp := s.memory.SearchRelevantMemory(c.UserContext(), query, opts)
	if resp.Error != "" {
		s.logger.Warn("search failed", "query", query, "error", resp.Error)
	}

	return c.JSON(resp)
}

// Package client calls a running recall API server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/papercomputeco/recall/api"
	"github.com/papercomputeco/recall/pkg/semantic"
	"github.com/papercomputeco/recall/pkg/storage"
)

const defaultTimeout = 60 * time.Second

// Client is an HTTP client for the recall API.
type Client struct {
	target string
	http   *http.Client
}

// New creates a client for the API at target, e.g. "http://localhost:8081".
func New(target string) (*Client, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("invalid API target URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid API target URL: %q", target)
	}

	return &Client{
		target: target,
		http:   &http.Client{Timeout: defaultTimeout},
	}, nil
}

// SearchParams are the optional parameters of Search.
type SearchParams struct {
	SessionID    string
	K            int
	MinRelevance float64
	From, To     time.Time
}

// Search calls GET /v1/search.
func (c *Client) Search(ctx context.Context, query string, p SearchParams) (*semantic.SearchResponse, error) {
	q := url.Values{}
	q.Set("query", query)
	if p.SessionID != "" {
		q.Set("session_id", p.SessionID)
	}
	if p.K > 0 {
		q.Set("k", strconv.Itoa(p.K))
	}
	if p.MinRelevance != 0 {
		q.Set("min_relevance", strconv.FormatFloat(p.MinRelevance, 'g', -1, 64))
	}
	if !p.From.IsZero() {
		q.Set("from", p.From.Format(time.RFC3339))
	}
	if !p.To.IsZero() {
		q.Set("to", p.To.Format(time.RFC3339))
	}

	var out semantic.SearchResponse
	if err := c.do(ctx, http.MethodGet, "/v1/search", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Summary calls GET /v1/sessions/:id/summary.
func (c *Client) Summary(ctx context.Context, sessionID string, topK int) (*semantic.SummaryResponse, error) {
	q := url.Values{}
	if topK > 0 {
		q.Set("top_k", strconv.Itoa(topK))
	}

	var out semantic.SummaryResponse
	if err := c.do(ctx, http.MethodGet, "/v1/sessions/"+url.PathEscape(sessionID)+"/summary", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Similar calls GET /v1/conversations/:id/similar.
func (c *Client) Similar(ctx context.Context, conversationID string, k int) (*semantic.SimilarConversationsResponse, error) {
	q := url.Values{}
	if k > 0 {
		q.Set("k", strconv.Itoa(k))
	}

	var out semantic.SimilarConversationsResponse
	if err := c.do(ctx, http.MethodGet, "/v1/conversations/"+url.PathEscape(conversationID)+"/similar", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Reindex calls POST /v1/sessions/:id/reindex.
func (c *Client) Reindex(ctx context.Context, sessionID string) (*semantic.ReindexResult, error) {
	var out semantic.ReindexResult
	if err := c.do(ctx, http.MethodPost, "/v1/sessions/"+url.PathEscape(sessionID)+"/reindex", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Ingest calls POST /v1/messages.
func (c *Client) Ingest(ctx context.Context, msgs []*storage.Message) (*api.IngestResponse, error) {
	var out api.IngestResponse
	if err := c.do(ctx, http.MethodPost, "/v1/messages", nil, api.MessagesRequest{Messages: msgs}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Stats calls GET /v1/stats.
func (c *Client) Stats(ctx context.Context) (*api.StatsResponse, error) {
	var out api.StatsResponse
	if err := c.do(ctx, http.MethodGet, "/v1/stats", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Save calls POST /v1/save.
func (c *Client) Save(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/v1/save", nil, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	u, err := url.Parse(c.target)
	if err != nil {
		return fmt.Errorf("invalid API target URL: %w", err)
	}
	u.Path = path
	u.RawQuery = query.Encode()

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to recall API at %s: %w", c.target, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr api.ErrorResponse
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s failed (HTTP %d): %s", method, path, resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("%s %s failed (HTTP %d): %s", method, path, resp.StatusCode, string(data))
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

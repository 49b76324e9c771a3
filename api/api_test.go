package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/recall/pkg/embeddings/generator"
	"github.com/papercomputeco/recall/pkg/indexer"
	"github.com/papercomputeco/recall/pkg/logger"
	"github.com/papercomputeco/recall/pkg/semantic"
	"github.com/papercomputeco/recall/pkg/storage"
	"github.com/papercomputeco/recall/pkg/storage/inmemory"
	testutils "github.com/papercomputeco/recall/pkg/utils/test"
	"github.com/papercomputeco/recall/pkg/vector/flat"
)

const testDims = 4

var testNow = time.Date(2025, 1, 2, 12, 0, 0, 0, time.UTC)

// fakeQueue records jobs instead of running them.
type fakeQueue struct {
	jobs []indexer.Job
	full bool
}

func (q *fakeQueue) Enqueue(job indexer.Job) bool {
	if q.full {
		return false
	}
	q.jobs = append(q.jobs, job)
	return true
}

func (q *fakeQueue) Pending() int {
	return len(q.jobs)
}

// testServer wires a Server over in-memory storage, a flat index and a
// mock embedder.
type testServer struct {
	server   *Server
	store    *inmemory.Driver
	memory   *semantic.Memory
	embedder *testutils.MockEmbedder
}

func newTestServer(queue Enqueuer) *testServer {
	embedder := testutils.NewMockEmbedder(testDims)
	store := inmemory.NewDriver()

	gen, err := generator.New(generator.Config{
		Embedder:   embedder,
		Dimensions: testDims,
		BaseDelay:  time.Millisecond,
	}, logger.Nop())
	Expect(err).NotTo(HaveOccurred())

	index, err := flat.NewFlatDriver(flat.Config{Dimensions: testDims}, logger.Nop())
	Expect(err).NotTo(HaveOccurred())

	mem := semantic.New(semantic.Config{
		Store:     store,
		Generator: gen,
		Index:     index,
		Now:       func() time.Time { return testNow },
	}, logger.Nop())

	server, err := NewServer(Config{ListenAddr: ":0"}, mem, store, queue, logger.Nop())
	Expect(err).NotTo(HaveOccurred())

	return &testServer{server: server, store: store, memory: mem, embedder: embedder}
}

func doRequest(s *Server, method, target string, body any) (*http.Response, []byte) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		Expect(err).NotTo(HaveOccurred())
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, target, reader)
	Expect(err).NotTo(HaveOccurred())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.app.Test(req)
	Expect(err).NotTo(HaveOccurred())

	data, err := io.ReadAll(resp.Body)
	Expect(err).NotTo(HaveOccurred())
	return resp, data
}

var _ = Describe("NewServer", func() {
	It("requires memory", func() {
		_, err := NewServer(Config{}, nil, inmemory.NewDriver(), nil, logger.Nop())
		Expect(err).To(MatchError("memory is required"))
	})

	It("requires a message store", func() {
		mem := semantic.New(semantic.Config{}, logger.Nop())
		_, err := NewServer(Config{}, mem, nil, nil, logger.Nop())
		Expect(err).To(MatchError("message store is required"))
	})

	It("mounts the MCP handler at /mcp", func() {
		var gotMethod string
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotMethod = r.Method
			w.WriteHeader(http.StatusAccepted)
			_, _ = w.Write([]byte("mcp"))
		})

		mem := semantic.New(semantic.Config{}, logger.Nop())
		server, err := NewServer(Config{MCPHandler: handler}, mem, inmemory.NewDriver(), nil, logger.Nop())
		Expect(err).NotTo(HaveOccurred())

		resp, body := doRequest(server, http.MethodPost, "/mcp", map[string]any{"jsonrpc": "2.0"})
		Expect(resp.StatusCode).To(Equal(http.StatusAccepted))
		Expect(string(body)).To(Equal("mcp"))
		Expect(gotMethod).To(Equal(http.MethodPost))
	})

	It("leaves /mcp unrouted without a handler", func() {
		mem := semantic.New(semantic.Config{}, logger.Nop())
		server, err := NewServer(Config{}, mem, inmemory.NewDriver(), nil, logger.Nop())
		Expect(err).NotTo(HaveOccurred())

		resp, _ := doRequest(server, http.MethodPost, "/mcp", nil)
		Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
	})
})

var _ = Describe("handlers", func() {
	var (
		ts  *testServer
		ctx context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		ts = newTestServer(nil)
	})

	Describe("GET /ping", func() {
		It("returns pong", func() {
			resp, body := doRequest(ts.server, http.MethodGet, "/ping", nil)
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
			Expect(string(body)).To(Equal(`"pong"`))
		})
	})

	Describe("POST /v1/messages", func() {
		It("stores and indexes messages synchronously without a queue", func() {
			msgs := []*storage.Message{
				testutils.NewTestMessage("m1", "s1", "c1", "hello there", 0),
				testutils.NewTestMessage("m2", "s1", "c1", "", 1),
			}

			resp, body := doRequest(ts.server, http.MethodPost, "/v1/messages", MessagesRequest{Messages: msgs})
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var out IngestResponse
			Expect(json.Unmarshal(body, &out)).To(Succeed())
			Expect(out.Accepted).To(Equal(2))
			Expect(out.Queued).To(BeFalse())
			Expect(out.Index.Indexed).To(Equal(1))
			Expect(out.Index.Skipped).To(Equal(1))

			stored, err := ts.store.Get(ctx, "m2")
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.SessionID).To(Equal("s1"))
		})

		It("rejects an empty body", func() {
			resp, body := doRequest(ts.server, http.MethodPost, "/v1/messages", MessagesRequest{})
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
			Expect(string(body)).To(ContainSubstring("messages are required"))
		})

		It("rejects messages without a session", func() {
			msg := testutils.NewTestMessage("m1", "", "c1", "hello", 0)
			resp, _ := doRequest(ts.server, http.MethodPost, "/v1/messages", MessagesRequest{Messages: []*storage.Message{msg}})
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})

		It("rejects malformed JSON", func() {
			req, err := http.NewRequest(http.MethodPost, "/v1/messages", bytes.NewBufferString("{"))
			Expect(err).NotTo(HaveOccurred())
			req.Header.Set("Content-Type", "application/json")

			resp, err := ts.server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})

		It("returns 500 when the embedding provider rejects credentials", func() {
			ts.embedder.FailOn = "secret"
			msg := testutils.NewTestMessage("m1", "s1", "c1", "secret", 0)

			resp, _ := doRequest(ts.server, http.MethodPost, "/v1/messages", MessagesRequest{Messages: []*storage.Message{msg}})
			Expect(resp.StatusCode).To(Equal(fiber.StatusInternalServerError))
		})

		Context("with a queue", func() {
			var queue *fakeQueue

			BeforeEach(func() {
				queue = &fakeQueue{}
				ts = newTestServer(queue)
			})

			It("enqueues messages and answers 202", func() {
				msg := testutils.NewTestMessage("m1", "s1", "c1", "hello", 0)
				resp, body := doRequest(ts.server, http.MethodPost, "/v1/messages", MessagesRequest{Messages: []*storage.Message{msg}})
				Expect(resp.StatusCode).To(Equal(fiber.StatusAccepted))

				var out IngestResponse
				Expect(json.Unmarshal(body, &out)).To(Succeed())
				Expect(out.Queued).To(BeTrue())
				Expect(queue.jobs).To(HaveLen(1))
				Expect(queue.jobs[0].Messages[0].ID).To(Equal("m1"))
				Expect(ts.embedder.Calls()).To(BeZero())
			})

			It("answers 503 when the queue is full", func() {
				queue.full = true
				msg := testutils.NewTestMessage("m1", "s1", "c1", "hello", 0)
				resp, body := doRequest(ts.server, http.MethodPost, "/v1/messages", MessagesRequest{Messages: []*storage.Message{msg}})
				Expect(resp.StatusCode).To(Equal(fiber.StatusServiceUnavailable))
				Expect(string(body)).To(ContainSubstring("queue is full"))
			})

			It("reports pending jobs in stats", func() {
				msg := testutils.NewTestMessage("m1", "s1", "c1", "hello", 0)
				doRequest(ts.server, http.MethodPost, "/v1/messages", MessagesRequest{Messages: []*storage.Message{msg}})

				resp, body := doRequest(ts.server, http.MethodGet, "/v1/stats", nil)
				Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
				Expect(string(body)).To(ContainSubstring(`"pending":1`))
			})
		})
	})

	Describe("POST /v1/index", func() {
		It("indexes without storing", func() {
			msg := testutils.NewTestMessage("m1", "s1", "c1", "hello", 0)
			resp, body := doRequest(ts.server, http.MethodPost, "/v1/index", MessagesRequest{Messages: []*storage.Message{msg}})
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var out semantic.BatchIndexResult
			Expect(json.Unmarshal(body, &out)).To(Succeed())
			Expect(out.Indexed).To(Equal(1))

			_, err := ts.store.Get(ctx, "m1")
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("session endpoints", func() {
		BeforeEach(func() {
			Expect(ts.store.Put(ctx,
				testutils.NewTestMessage("m1", "s1", "c1", "deploy the service", 0),
				testutils.NewTestMessage("m2", "s1", "c1", "rollback the service", 1),
				testutils.NewTestMessage("m3", "s2", "c2", "deploy the api", 2),
			)).To(Succeed())
		})

		It("reindexes a session", func() {
			resp, body := doRequest(ts.server, http.MethodPost, "/v1/sessions/s1/reindex", nil)
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var out semantic.ReindexResult
			Expect(json.Unmarshal(body, &out)).To(Succeed())
			Expect(out.MessagesProcessed).To(Equal(2))
			Expect(out.Indexed).To(Equal(2))
		})

		It("summarizes a session", func() {
			resp, body := doRequest(ts.server, http.MethodGet, "/v1/sessions/s1/summary?top_k=1", nil)
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var out semantic.SummaryResponse
			Expect(json.Unmarshal(body, &out)).To(Succeed())
			Expect(out.Error).To(BeEmpty())
			Expect(out.TotalMessages).To(Equal(2))
			Expect(out.Summary).To(HaveLen(1))
		})

		It("rejects a non-positive top_k", func() {
			resp, body := doRequest(ts.server, http.MethodGet, "/v1/sessions/s1/summary?top_k=0", nil)
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
			Expect(string(body)).To(ContainSubstring("top_k must be a positive integer"))
		})

		It("finds similar conversations", func() {
			doRequest(ts.server, http.MethodPost, "/v1/sessions/s1/reindex", nil)
			doRequest(ts.server, http.MethodPost, "/v1/sessions/s2/reindex", nil)

			resp, body := doRequest(ts.server, http.MethodGet, "/v1/conversations/c1/similar?k=3", nil)
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var out semantic.SimilarConversationsResponse
			Expect(json.Unmarshal(body, &out)).To(Succeed())
			Expect(out.Error).To(BeEmpty())
			for _, conv := range out.Conversations {
				Expect(conv.ConversationID).NotTo(Equal("c1"))
			}
		})
	})

	Describe("GET /v1/stats", func() {
		It("reports index size and model", func() {
			msg := testutils.NewTestMessage("m1", "s1", "c1", "hello", 0)
			doRequest(ts.server, http.MethodPost, "/v1/messages", MessagesRequest{Messages: []*storage.Message{msg}})

			resp, body := doRequest(ts.server, http.MethodGet, "/v1/stats", nil)
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var out StatsResponse
			Expect(json.Unmarshal(body, &out)).To(Succeed())
			Expect(out.Documents).To(Equal(1))
			Expect(out.Dimensions).To(Equal(testDims))
			Expect(out.Model).To(Equal(ts.embedder.Model()))
		})
	})

	Describe("POST /v1/save", func() {
		It("answers 204", func() {
			resp, _ := doRequest(ts.server, http.MethodPost, "/v1/save", nil)
			Expect(resp.StatusCode).To(Equal(fiber.StatusNoContent))
		})
	})
})

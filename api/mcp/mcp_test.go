package mcp_test

import (
	"context"
	"encoding/json"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/recall/api/mcp"
	"github.com/papercomputeco/recall/pkg/logger"
	"github.com/papercomputeco/recall/pkg/semantic"
	testutils "github.com/papercomputeco/recall/pkg/utils/test"
)

// fakeMemory answers with canned responses and records what it was asked.
type fakeMemory struct {
	query     string
	opts      semantic.SearchOptions
	sessionID string
	topK      int
	convID    string
	k         int

	search  *semantic.SearchResponse
	summary *semantic.SummaryResponse
	similar *semantic.SimilarConversationsResponse
}

func (f *fakeMemory) SearchRelevantMemory(_ context.Context, query string, opts semantic.SearchOptions) *semantic.SearchResponse {
	f.query, f.opts = query, opts
	return f.search
}

func (f *fakeMemory) GetSemanticSummary(_ context.Context, sessionID string, topK int) *semantic.SummaryResponse {
	f.sessionID, f.topK = sessionID, topK
	return f.summary
}

func (f *fakeMemory) FindSimilarConversations(_ context.Context, conversationID string, k int) *semantic.SimilarConversationsResponse {
	f.convID, f.k = conversationID, k
	return f.similar
}

var _ = Describe("MCP Server", func() {
	var (
		ctx    context.Context
		memory *fakeMemory
		server *mcp.Server
	)

	BeforeEach(func() {
		ctx = context.Background()
		memory = &fakeMemory{}

		var err error
		server, err = mcp.NewServer(mcp.Config{Memory: memory, Logger: logger.Nop()})
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("NewServer", func() {
		It("returns an error when memory is nil", func() {
			_, err := mcp.NewServer(mcp.Config{Logger: logger.Nop()})
			Expect(err).To(MatchError(ContainSubstring("memory is required")))
		})

		It("returns an error when logger is nil", func() {
			_, err := mcp.NewServer(mcp.Config{Memory: memory})
			Expect(err).To(MatchError(ContainSubstring("logger is required")))
		})

		It("allows a noop server without memory", func() {
			noop, err := mcp.NewServer(mcp.Config{Noop: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(noop.Handler()).NotTo(BeNil())
		})

		It("returns an HTTP handler", func() {
			Expect(server.Handler()).NotTo(BeNil())
		})
	})

	Context("with a connected client", func() {
		var session *sdk.ClientSession

		BeforeEach(func() {
			clientTransport, serverTransport := sdk.NewInMemoryTransports()

			ss, err := server.Connect(ctx, serverTransport)
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(func() { _ = ss.Close() })

			client := sdk.NewClient(&sdk.Implementation{Name: "recall-test", Version: "v0.0.1"}, nil)
			session, err = client.Connect(ctx, clientTransport, nil)
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(func() { _ = session.Close() })
		})

		call := func(name string, args map[string]any) *sdk.CallToolResult {
			res, err := session.CallTool(ctx, &sdk.CallToolParams{Name: name, Arguments: args})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Content).NotTo(BeEmpty())
			return res
		}

		text := func(res *sdk.CallToolResult) string {
			tc, ok := res.Content[0].(*sdk.TextContent)
			Expect(ok).To(BeTrue())
			return tc.Text
		}

		It("lists the memory tools", func() {
			res, err := session.ListTools(ctx, &sdk.ListToolsParams{})
			Expect(err).NotTo(HaveOccurred())

			var names []string
			for _, t := range res.Tools {
				names = append(names, t.Name)
			}
			Expect(names).To(ConsistOf("search_memory", "session_summary", "similar_conversations"))
		})

		It("searches memory and returns ranked messages", func() {
			msg := testutils.NewTestMessage("m1", "s1", "c1", "deploy the billing service", 0)
			memory.search = &semantic.SearchResponse{
				Results: []semantic.SearchResult{{
					Message:       msg,
					Similarity:    0.9,
					Recency:       0.5,
					CombinedScore: 0.78,
				}},
				TotalMatches: 3,
			}

			res := call("search_memory", map[string]any{"query": "billing", "k": 2, "session_id": "s1"})
			Expect(res.IsError).To(BeFalse())
			Expect(memory.query).To(Equal("billing"))
			Expect(memory.opts.K).To(Equal(2))
			Expect(memory.opts.SessionID).To(Equal("s1"))

			var out mcp.SearchOutput
			Expect(json.Unmarshal([]byte(text(res)), &out)).To(Succeed())
			Expect(out.Query).To(Equal("billing"))
			Expect(out.TotalMatches).To(Equal(3))
			Expect(out.Results).To(HaveLen(1))
			Expect(out.Results[0].ID).To(Equal("m1"))
			Expect(out.Results[0].ConversationID).To(Equal("c1"))
			Expect(out.Results[0].Content).To(Equal("deploy the billing service"))
			Expect(out.Results[0].Score).To(BeNumerically("~", 0.78, 1e-9))
			Expect(out.Results[0].CreatedAt).To(Equal(msg.CreatedAt.UTC().Format(time.RFC3339)))
		})

		It("reports a failed search as a tool error", func() {
			memory.search = &semantic.SearchResponse{Error: "embedding provider unavailable"}

			res := call("search_memory", map[string]any{"query": "billing"})
			Expect(res.IsError).To(BeTrue())
			Expect(text(res)).To(ContainSubstring("embedding provider unavailable"))
		})

		It("rejects an empty query", func() {
			res := call("search_memory", map[string]any{"query": ""})
			Expect(res.IsError).To(BeTrue())
			Expect(text(res)).To(ContainSubstring("query is required"))
			Expect(memory.query).To(BeEmpty())
		})

		It("summarizes a session", func() {
			memory.summary = &semantic.SummaryResponse{
				Summary: []semantic.SummaryItem{{
					Message:    testutils.NewTestMessage("m2", "s1", "c1", "the rollout plan", 1),
					Centrality: 0.8,
					Importance: 0.5,
					Score:      0.71,
				}},
				TotalMessages: 4,
			}

			res := call("session_summary", map[string]any{"session_id": "s1", "top_k": 1})
			Expect(res.IsError).To(BeFalse())
			Expect(memory.sessionID).To(Equal("s1"))
			Expect(memory.topK).To(Equal(1))

			var out mcp.SummaryOutput
			Expect(json.Unmarshal([]byte(text(res)), &out)).To(Succeed())
			Expect(out.TotalMessages).To(Equal(4))
			Expect(out.Summary).To(HaveLen(1))
			Expect(out.Summary[0].ID).To(Equal("m2"))
			Expect(out.Summary[0].Centrality).To(BeNumerically("~", 0.8, 1e-9))
		})

		It("requires a session id for summaries", func() {
			res := call("session_summary", map[string]any{"session_id": ""})
			Expect(res.IsError).To(BeTrue())
			Expect(text(res)).To(ContainSubstring("session_id is required"))
		})

		It("finds similar conversations", func() {
			memory.similar = &semantic.SimilarConversationsResponse{
				Conversations: []semantic.SimilarConversation{
					{ConversationID: "c2", Similarity: 0.93, MatchingMessages: 2},
					{ConversationID: "c3", Similarity: 0.41, MatchingMessages: 1},
				},
			}

			res := call("similar_conversations", map[string]any{"conversation_id": "c1"})
			Expect(res.IsError).To(BeFalse())
			Expect(memory.convID).To(Equal("c1"))
			Expect(memory.k).To(BeZero())

			var out mcp.SimilarOutput
			Expect(json.Unmarshal([]byte(text(res)), &out)).To(Succeed())
			Expect(out.Conversations).To(HaveLen(2))
			Expect(out.Conversations[0].ConversationID).To(Equal("c2"))
			Expect(out.Conversations[1].MatchingMessages).To(Equal(1))
		})

		It("reports a failed lookup of similar conversations", func() {
			memory.similar = &semantic.SimilarConversationsResponse{Error: "conversation not indexed"}

			res := call("similar_conversations", map[string]any{"conversation_id": "c9"})
			Expect(res.IsError).To(BeTrue())
			Expect(text(res)).To(ContainSubstring("conversation not indexed"))
		})
	})
})

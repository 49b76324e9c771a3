package openai_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/recall/pkg/embeddings"
	"github.com/papercomputeco/recall/pkg/embeddings/openai"
)

var _ = Describe("OpenAI Embedder", func() {
	var (
		server     *httptest.Server
		status     int
		authHeader string
		embedder   *openai.Embedder
		ctx        context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		status = http.StatusOK

		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			Expect(r.URL.Path).To(Equal("/v1/embeddings"))
			authHeader = r.Header.Get("Authorization")

			if status != http.StatusOK {
				w.WriteHeader(status)
				return
			}

			var req struct {
				Input []string `json:"input"`
			}
			Expect(json.NewDecoder(r.Body).Decode(&req)).To(Succeed())

			// Respond out of order to exercise index sorting.
			data := []map[string]any{}
			for i := len(req.Input) - 1; i >= 0; i-- {
				data = append(data, map[string]any{
					"index":     i,
					"embedding": []float32{float32(len(req.Input[i]))},
				})
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
		}))

		var err error
		embedder, err = openai.NewEmbedder(openai.EmbedderConfig{BaseURL: server.URL, APIKey: "sk-test"})
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		server.Close()
	})

	It("is unavailable without an API key", func() {
		_, err := openai.NewEmbedder(openai.EmbedderConfig{})
		Expect(err).To(MatchError(embeddings.ErrProviderUnavailable))
	})

	It("sends the bearer token", func() {
		_, err := embedder.Embed(ctx, "hello")
		Expect(err).NotTo(HaveOccurred())
		Expect(authHeader).To(Equal("Bearer sk-test"))
	})

	It("returns batch vectors in input order", func() {
		vecs, err := embedder.EmbedBatch(ctx, []string{"a", "abc", "ab"})
		Expect(err).NotTo(HaveOccurred())
		Expect(vecs).To(Equal([][]float32{{1}, {3}, {2}}))
	})

	It("maps 401 to ErrAuth", func() {
		status = http.StatusUnauthorized
		_, err := embedder.Embed(ctx, "hello")
		Expect(err).To(MatchError(embeddings.ErrAuth))
	})

	It("maps 429 to ErrProvider", func() {
		status = http.StatusTooManyRequests
		_, err := embedder.Embed(ctx, "hello")
		Expect(err).To(MatchError(embeddings.ErrProvider))
	})
})

package generator_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/recall/pkg/embeddings"
	"github.com/papercomputeco/recall/pkg/embeddings/generator"
	"github.com/papercomputeco/recall/pkg/logger"
	testutils "github.com/papercomputeco/recall/pkg/utils/test"
	"github.com/papercomputeco/recall/pkg/vector"
)

const dims = 8

var _ = Describe("Generator", func() {
	var (
		ctx      context.Context
		mock     *testutils.MockEmbedder
		gen      *generator.Generator
		delaysMu sync.Mutex
		delays   []time.Duration
	)

	newGenerator := func(mutate ...func(*generator.Config)) *generator.Generator {
		cfg := generator.Config{
			Embedder:   mock,
			Dimensions: dims,
			BaseDelay:  time.Millisecond,
			OnRetry: func(_ error, d time.Duration) {
				delaysMu.Lock()
				defer delaysMu.Unlock()
				delays = append(delays, d)
			},
		}
		for _, m := range mutate {
			m(&cfg)
		}
		g, err := generator.New(cfg, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		return g
	}

	BeforeEach(func() {
		ctx = context.Background()
		mock = testutils.NewMockEmbedder(dims)
		delays = nil
		gen = newGenerator()
	})

	Describe("New", func() {
		It("requires dimensions", func() {
			_, err := generator.New(generator.Config{Embedder: mock}, logger.Nop())
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Generate", func() {
		It("misses then hits with a bit-identical vector", func() {
			first, err := gen.Generate(ctx, "hello world")
			Expect(err).NotTo(HaveOccurred())
			Expect(first).To(HaveLen(dims))
			Expect(gen.Stats()).To(Equal(generator.Stats{Hits: 0, Misses: 1, Total: 1}))

			second, err := gen.Generate(ctx, "hello world")
			Expect(err).NotTo(HaveOccurred())
			Expect(second).To(Equal(first))
			Expect(gen.Stats()).To(Equal(generator.Stats{Hits: 1, Misses: 1, Total: 2}))
			Expect(mock.Calls()).To(Equal(1))
		})

		It("rejects empty and whitespace input without calling the provider", func() {
			_, err := gen.Generate(ctx, "")
			Expect(err).To(MatchError(embeddings.ErrEmptyInput))
			_, err = gen.Generate(ctx, "  \n\t")
			Expect(err).To(MatchError(embeddings.ErrEmptyInput))
			Expect(mock.Calls()).To(BeZero())
		})

		It("is unavailable without a provider", func() {
			g, err := generator.New(generator.Config{Dimensions: dims}, logger.Nop())
			Expect(err).NotTo(HaveOccurred())

			_, err = g.Generate(ctx, "hello")
			Expect(err).To(MatchError(embeddings.ErrProviderUnavailable))
		})

		It("retries transient failures with doubling delays", func() {
			mock.Errors = []error{
				fmt.Errorf("%w: 503", embeddings.ErrProvider),
				fmt.Errorf("%w: 503", embeddings.ErrProvider),
			}

			vec, err := gen.Generate(ctx, "flaky")
			Expect(err).NotTo(HaveOccurred())
			Expect(vec).To(HaveLen(dims))
			Expect(mock.Calls()).To(Equal(3))
			Expect(delays).To(Equal([]time.Duration{time.Millisecond, 2 * time.Millisecond}))
		})

		It("does not retry authorization failures", func() {
			mock.Errors = []error{fmt.Errorf("%w: 401", embeddings.ErrAuth)}

			_, err := gen.Generate(ctx, "secret")
			Expect(err).To(MatchError(embeddings.ErrAuth))
			Expect(mock.Calls()).To(Equal(1))
			Expect(delays).To(BeEmpty())
		})

		It("returns the last error once retries are exhausted", func() {
			g := newGenerator(func(c *generator.Config) { c.MaxRetries = 2 })
			mock.Errors = []error{
				errors.New("first"),
				errors.New("second"),
				errors.New("third"),
				errors.New("fourth"),
			}

			_, err := g.Generate(ctx, "down")
			Expect(err).To(MatchError("third"))
			Expect(mock.Calls()).To(Equal(3))
		})

		It("fails permanently on a dimension mismatch", func() {
			mock.Embeddings["short"] = []float32{1, 2}

			_, err := gen.Generate(ctx, "short")
			Expect(err).To(MatchError(vector.ErrDimensionMismatch))
			Expect(mock.Calls()).To(Equal(1))
		})

		It("logs slow provider calls", func() {
			var buf bytes.Buffer
			mock.Delay = 20 * time.Millisecond
			g, err := generator.New(generator.Config{
				Embedder:          mock,
				Dimensions:        dims,
				SlowCallThreshold: 5 * time.Millisecond,
			}, logger.New(logger.WithWriter(&buf), logger.WithJSON(true)))
			Expect(err).NotTo(HaveOccurred())

			_, err = g.Generate(ctx, "slow")
			Expect(err).NotTo(HaveOccurred())
			Expect(buf.String()).To(ContainSubstring("slow embedding provider call"))
		})
	})

	Describe("GenerateBatch", func() {
		It("returns an empty result for empty input", func() {
			vecs, err := gen.GenerateBatch(ctx, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(vecs).To(BeEmpty())
			Expect(mock.Calls()).To(BeZero())
		})

		It("matches single generation element-wise", func() {
			texts := []string{"alpha", "beta", "gamma"}
			batch, err := gen.GenerateBatch(ctx, texts)
			Expect(err).NotTo(HaveOccurred())

			fresh := newGenerator()
			for i, t := range texts {
				single, err := fresh.Generate(ctx, t)
				Expect(err).NotTo(HaveOccurred())
				Expect(batch[i]).To(Equal(single))
			}
		})

		It("preserves order and only sends uncached texts", func() {
			b, err := gen.Generate(ctx, "b")
			Expect(err).NotTo(HaveOccurred())
			d, err := gen.Generate(ctx, "d")
			Expect(err).NotTo(HaveOccurred())

			vecs, err := gen.GenerateBatch(ctx, []string{"a", "b", "c", "d", "e"})
			Expect(err).NotTo(HaveOccurred())
			Expect(vecs).To(HaveLen(5))
			Expect(vecs[1]).To(Equal(b))
			Expect(vecs[3]).To(Equal(d))

			Expect(mock.BatchCalls).To(Equal(1))
			Expect(mock.Batches[0]).To(Equal([]string{"a", "c", "e"}))

			for i, t := range []string{"a", "c", "e"} {
				again, _ := gen.Generate(ctx, t)
				Expect(vecs[[]int{0, 2, 4}[i]]).To(Equal(again))
			}
		})

		It("splits inputs into provider batches of BatchSize", func() {
			g := newGenerator(func(c *generator.Config) { c.BatchSize = 2 })

			vecs, err := g.GenerateBatch(ctx, []string{"1", "2", "3", "4", "5"})
			Expect(err).NotTo(HaveOccurred())
			Expect(vecs).To(HaveLen(5))
			Expect(mock.Batches).To(Equal([][]string{{"1", "2"}, {"3", "4"}, {"5"}}))
		})

		It("makes no provider call when every text is cached", func() {
			_, err := gen.GenerateBatch(ctx, []string{"x", "y"})
			Expect(err).NotTo(HaveOccurred())
			_, err = gen.GenerateBatch(ctx, []string{"y", "x"})
			Expect(err).NotTo(HaveOccurred())

			Expect(mock.BatchCalls).To(Equal(1))
			Expect(gen.Stats().Hits).To(Equal(uint64(2)))
		})

		It("rejects batches containing empty text", func() {
			_, err := gen.GenerateBatch(ctx, []string{"ok", " "})
			Expect(err).To(MatchError(embeddings.ErrEmptyInput))
			Expect(mock.Calls()).To(BeZero())
		})
	})
})

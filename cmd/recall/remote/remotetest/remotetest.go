// Package remotetest runs an in-process recall API server seeded with a
// small conversation history, for testing commands that talk to it.
package remotetest

import (
	"context"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/recall/api"
	"github.com/papercomputeco/recall/pkg/embeddings/generator"
	"github.com/papercomputeco/recall/pkg/logger"
	"github.com/papercomputeco/recall/pkg/semantic"
	"github.com/papercomputeco/recall/pkg/storage"
	"github.com/papercomputeco/recall/pkg/storage/inmemory"
	testutils "github.com/papercomputeco/recall/pkg/utils/test"
	"github.com/papercomputeco/recall/pkg/vector/flat"
)

const dims = 4

// FailingQuery is a text the server's embedder always fails on.
const FailingQuery = "broken query"

// Now is the clock of the seeded server.
var Now = time.Date(2025, 1, 2, 12, 0, 0, 0, time.UTC)

// Server is a running seeded API.
type Server struct {
	URL      string
	Embedder *testutils.MockEmbedder
	Memory   *semantic.Memory
}

// NewServer starts a server and registers its shutdown with DeferCleanup.
//
// Seeded messages:
//
//	m1 s1 c1 "deploy the service"
//	m2 s1 c1 "rollback the service"
//	m3 s2 c2 "deploy the api"
//	m4 s3 c3 "lunch plans"
//
// The query "deploy" matches m1, m3 and m2 in that order.
func NewServer() *Server {
	embedder := testutils.NewMockEmbedder(dims)
	embedder.Embeddings["deploy"] = []float32{1, 0, 0, 0}
	embedder.Embeddings["deploy the service"] = []float32{1, 0, 0, 0}
	embedder.Embeddings["rollback the service"] = []float32{0.8, 0.6, 0, 0}
	embedder.Embeddings["deploy the api"] = []float32{0.9, 0.1, 0, 0}
	embedder.Embeddings["lunch plans"] = []float32{0, 0, 1, 0}
	// Conversation c1 as FindSimilarConversations joins it.
	embedder.Embeddings["deploy the service\nrollback the service"] = []float32{0.9, 0.3, 0, 0}
	embedder.FailOn = FailingQuery

	gen, err := generator.New(generator.Config{Embedder: embedder, Dimensions: dims}, logger.Nop())
	ExpectWithOffset(1, err).NotTo(HaveOccurred())
	index, err := flat.NewFlatDriver(flat.Config{Dimensions: dims}, logger.Nop())
	ExpectWithOffset(1, err).NotTo(HaveOccurred())

	store := inmemory.NewDriver()
	mem := semantic.New(semantic.Config{
		Store:     store,
		Generator: gen,
		Index:     index,
		Now:       func() time.Time { return Now },
	}, logger.Nop())

	msgs := []*storage.Message{
		testutils.NewTestMessage("m1", "s1", "c1", "deploy the service", 0),
		testutils.NewTestMessage("m2", "s1", "c1", "rollback the service", 1),
		testutils.NewTestMessage("m3", "s2", "c2", "deploy the api", 2),
		testutils.NewTestMessage("m4", "s3", "c3", "lunch plans", 3),
	}
	ctx := context.Background()
	ExpectWithOffset(1, store.Put(ctx, msgs...)).To(Succeed())
	_, err = mem.IndexBatchMessages(ctx, msgs)
	ExpectWithOffset(1, err).NotTo(HaveOccurred())

	server, err := api.NewServer(api.Config{}, mem, store, nil, logger.Nop())
	ExpectWithOffset(1, err).NotTo(HaveOccurred())

	ts := httptest.NewServer(server.Handler())
	DeferCleanup(ts.Close)

	return &Server{URL: ts.URL, Embedder: embedder, Memory: mem}
}

// Prepare wires the root persistent flags a subcommand expects and points
// it at target. configDir keeps config resolution away from the user's home.
func Prepare(cmd *cobra.Command, target, configDir string, args ...string) {
	cmd.PersistentFlags().Bool("debug", false, "")
	cmd.PersistentFlags().String("config-dir", "", "")
	cmd.SetArgs(append(args, "--api-target", target, "--config-dir", configDir))
}

package ingestcmder_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	ingestcmder "github.com/papercomputeco/recall/cmd/recall/ingest"
	"github.com/papercomputeco/recall/cmd/recall/remote/remotetest"
)

const sample = `{"id":"m1","session_id":"s1","conversation_id":"c1","role":"user","content":"deploy the api"}
{"id":"m2","session_id":"s1","conversation_id":"c1","role":"assistant","content":"deploying now"}
{"id":"m3","session_id":"s1","conversation_id":"c1","role":"user","content":""}
`

var _ = Describe("Ingest Command", func() {
	var (
		tmpDir string
		out    *bytes.Buffer
	)

	newCmd := func(stdin string, args ...string) *cobra.Command {
		cmd := ingestcmder.NewIngestCmd()
		cmd.PersistentFlags().Bool("debug", false, "")
		cmd.PersistentFlags().String("config-dir", "", "")
		cmd.SetOut(out)
		cmd.SetIn(bytes.NewBufferString(stdin))
		cmd.SetArgs(append(args,
			"--config-dir", tmpDir,
			"--storage-provider", "memory",
			"--embedding-provider", "hashing",
			"--embedding-dimensions", "32",
		))
		return cmd
	}

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		out = &bytes.Buffer{}
	})

	It("requires at least one file", func() {
		cmd := ingestcmder.NewIngestCmd()
		Expect(cmd.Args(cmd, []string{})).NotTo(Succeed())
		Expect(cmd.Flags().Lookup("watch")).NotTo(BeNil())
		Expect(cmd.Flags().Lookup("batch-size").Shorthand).To(Equal("b"))
	})

	It("indexes messages from a file and persists the index", func() {
		path := filepath.Join(tmpDir, "messages.jsonl")
		Expect(os.WriteFile(path, []byte(sample), 0o644)).To(Succeed())

		Expect(newCmd("", path, "--batch-size", "2").Execute()).To(Succeed())

		Expect(out.String()).To(ContainSubstring("Indexing messages 1-2 of 3"))
		Expect(out.String()).To(ContainSubstring("Indexing messages 3-3 of 3"))
		Expect(out.String()).To(ContainSubstring("3 messages"))
		Expect(filepath.Join(tmpDir, "index.rclx")).To(BeAnExistingFile())
	})

	It("reads messages from stdin", func() {
		Expect(newCmd(sample, "-").Execute()).To(Succeed())
		Expect(out.String()).To(ContainSubstring("Reading stdin"))
	})

	It("fails on malformed input", func() {
		err := newCmd("{broken\n", "-").Execute()
		Expect(err).To(MatchError(ContainSubstring("line 1")))
	})

	It("fails for a missing file", func() {
		err := newCmd("", filepath.Join(tmpDir, "absent.jsonl")).Execute()
		Expect(err).To(MatchError(ContainSubstring("opening")))
	})

	It("rejects --watch on stdin", func() {
		err := newCmd("", "-", "--watch").Execute()
		Expect(err).To(MatchError(ContainSubstring("cannot follow stdin")))
	})

	It("rejects a non-positive batch size", func() {
		err := newCmd(sample, "-", "--batch-size", "0").Execute()
		Expect(err).To(MatchError(ContainSubstring("--batch-size")))
	})

	It("posts messages to a running server with --remote", func() {
		server := remotetest.NewServer()

		cmd := ingestcmder.NewIngestCmd()
		cmd.SetOut(out)
		cmd.SetIn(bytes.NewBufferString(sample))
		remotetest.Prepare(cmd, server.URL, tmpDir, "-", "--remote")
		Expect(cmd.Execute()).To(Succeed())

		Expect(out.String()).To(ContainSubstring("3 messages"))
		Expect(filepath.Join(tmpDir, "index.rclx")).NotTo(BeAnExistingFile())

		ctx := context.Background()
		store, err := server.Memory.Store(ctx)
		Expect(err).NotTo(HaveOccurred())
		msgs, err := store.FetchByIDs(ctx, []string{"m1"}, "")
		Expect(err).NotTo(HaveOccurred())
		Expect(msgs).To(HaveLen(1))
		Expect(msgs[0].Content).To(Equal("deploy the api"))
	})
})

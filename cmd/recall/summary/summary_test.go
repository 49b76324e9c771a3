package summarycmder_test

import (
	"bytes"
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/recall/cmd/recall/remote/remotetest"
	summarycmder "github.com/papercomputeco/recall/cmd/recall/summary"
	"github.com/papercomputeco/recall/pkg/semantic"
	"github.com/papercomputeco/recall/pkg/storage"
)

var _ = Describe("Summary Command", func() {
	var (
		server *remotetest.Server
		out    *bytes.Buffer
	)

	run := func(args ...string) error {
		cmd := summarycmder.NewSummaryCmd()
		cmd.SetOut(out)
		remotetest.Prepare(cmd, server.URL, GinkgoT().TempDir(), args...)
		return cmd.Execute()
	}

	BeforeEach(func() {
		server = remotetest.NewServer()
		out = &bytes.Buffer{}
	})

	It("prints a markdown summary of the session", func() {
		Expect(run("s1", "--plain")).To(Succeed())
		Expect(out.String()).To(HavePrefix("# Session s1"))
		Expect(out.String()).To(ContainSubstring("deploy the service"))
		Expect(out.String()).To(ContainSubstring("rollback the service"))
	})

	It("renders through the terminal markdown renderer", func() {
		Expect(run("s1")).To(Succeed())
		Expect(out.String()).To(ContainSubstring("Session s1"))
		Expect(out.String()).NotTo(HavePrefix("#"))
	})

	It("limits the number of messages", func() {
		Expect(run("s1", "--top", "1", "--json")).To(Succeed())

		var resp semantic.SummaryResponse
		Expect(json.Unmarshal(out.Bytes(), &resp)).To(Succeed())
		Expect(resp.Summary).To(HaveLen(1))
		Expect(resp.TotalMessages).To(Equal(2))
	})

	It("handles an unknown session", func() {
		Expect(run("nope", "--plain")).To(Succeed())
		Expect(out.String()).To(ContainSubstring("No indexed messages"))
	})

	It("rejects a negative --top", func() {
		Expect(run("s1", "--top", "-2")).To(MatchError(ContainSubstring("--top")))
	})
})

var _ = Describe("Markdown", func() {
	It("numbers items and collapses whitespace", func() {
		doc := summarycmder.Markdown("s9", &semantic.SummaryResponse{
			TotalMessages: 3,
			Summary: []semantic.SummaryItem{{
				Message: &storage.Message{ID: "m1", Role: "assistant", Content: "line one\n\nline   two"},
				Score:   0.9, Centrality: 1, Importance: 0.75,
			}},
		})
		Expect(doc).To(ContainSubstring("1 of 3 messages considered."))
		Expect(doc).To(ContainSubstring("1. **assistant** `m1` (score 0.90, centrality 1.00, importance 0.75)"))
		Expect(doc).To(ContainSubstring("> line one line two"))
	})
})

package searchcmder_test

import (
	"bytes"
	"encoding/json"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/recall/cmd/recall/remote/remotetest"
	searchcmder "github.com/papercomputeco/recall/cmd/recall/search"
	"github.com/papercomputeco/recall/pkg/semantic"
)

var _ = Describe("Search Command", func() {
	var (
		server *remotetest.Server
		out    *bytes.Buffer
	)

	run := func(args ...string) error {
		cmd := searchcmder.NewSearchCmd()
		cmd.SetOut(out)
		remotetest.Prepare(cmd, server.URL, GinkgoT().TempDir(), args...)
		return cmd.Execute()
	}

	BeforeEach(func() {
		server = remotetest.NewServer()
		out = &bytes.Buffer{}
	})

	It("requires exactly one query", func() {
		cmd := searchcmder.NewSearchCmd()
		Expect(cmd.Args(cmd, []string{})).NotTo(Succeed())
		Expect(cmd.Args(cmd, []string{"a", "b"})).NotTo(Succeed())
	})

	It("prints ranked results", func() {
		Expect(run("deploy")).To(Succeed())

		text := out.String()
		Expect(text).To(ContainSubstring(`"deploy"`))
		Expect(text).To(ContainSubstring("deploy the service"))
		Expect(strings.Index(text, "m1")).To(BeNumerically("<", strings.Index(text, "m3")))
		Expect(strings.Index(text, "m3")).To(BeNumerically("<", strings.Index(text, "m2")))
		Expect(text).NotTo(ContainSubstring("lunch plans"))
	})

	It("passes k through", func() {
		Expect(run("deploy", "-k", "1", "--json")).To(Succeed())

		var resp semantic.SearchResponse
		Expect(json.Unmarshal(out.Bytes(), &resp)).To(Succeed())
		Expect(resp.Results).To(HaveLen(1))
		Expect(resp.Results[0].Message.ID).To(Equal("m1"))
		Expect(resp.TotalMatches).To(Equal(2))
	})

	It("restricts results to a session", func() {
		Expect(run("deploy", "--session", "s1", "--json")).To(Succeed())

		var resp semantic.SearchResponse
		Expect(json.Unmarshal(out.Bytes(), &resp)).To(Succeed())
		ids := []string{}
		for _, r := range resp.Results {
			ids = append(ids, r.Message.ID)
		}
		Expect(ids).To(Equal([]string{"m1", "m2"}))
	})

	It("disables the threshold with a negative min relevance", func() {
		Expect(run("deploy", "--min-relevance", "-1", "--json")).To(Succeed())

		var resp semantic.SearchResponse
		Expect(json.Unmarshal(out.Bytes(), &resp)).To(Succeed())
		Expect(resp.Results).To(HaveLen(4))
	})

	It("reports when nothing matches", func() {
		Expect(run("deploy", "--from", "2030-01-01T00:00:00Z")).To(Succeed())
		Expect(out.String()).To(ContainSubstring("No results found."))
	})

	It("returns the server's search error", func() {
		err := run(remotetest.FailingQuery)
		Expect(err).To(MatchError(ContainSubstring("search failed")))
	})

	DescribeTable("rejects invalid flags",
		func(args []string, msg string) {
			Expect(run(append([]string{"deploy"}, args...)...)).To(MatchError(ContainSubstring(msg)))
		},
		Entry("negative k", []string{"-k", "-1"}, "--top"),
		Entry("since with from", []string{"--since", "1h", "--from", "2025-01-01T00:00:00Z"}, "mutually exclusive"),
		Entry("bad from", []string{"--from", "yesterday"}, "invalid --from"),
		Entry("bad to", []string{"--to", "tomorrow"}, "invalid --to"),
	)

	It("fails against an unreachable server", func() {
		cmd := searchcmder.NewSearchCmd()
		cmd.SetOut(out)
		remotetest.Prepare(cmd, "http://127.0.0.1:1", GinkgoT().TempDir(), "deploy")
		Expect(cmd.Execute()).To(MatchError(ContainSubstring("failed to connect")))
	})
})

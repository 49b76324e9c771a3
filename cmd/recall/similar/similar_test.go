package similarcmder_test

import (
	"bytes"
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/recall/cmd/recall/remote/remotetest"
	similarcmder "github.com/papercomputeco/recall/cmd/recall/similar"
	"github.com/papercomputeco/recall/pkg/semantic"
)

var _ = Describe("Similar Command", func() {
	var (
		server *remotetest.Server
		out    *bytes.Buffer
	)

	run := func(args ...string) error {
		cmd := similarcmder.NewSimilarCmd()
		cmd.SetOut(out)
		remotetest.Prepare(cmd, server.URL, GinkgoT().TempDir(), args...)
		return cmd.Execute()
	}

	BeforeEach(func() {
		server = remotetest.NewServer()
		out = &bytes.Buffer{}
	})

	It("ranks other conversations", func() {
		Expect(run("c1", "--json")).To(Succeed())

		var resp semantic.SimilarConversationsResponse
		Expect(json.Unmarshal(out.Bytes(), &resp)).To(Succeed())
		Expect(resp.Conversations).NotTo(BeEmpty())
		Expect(resp.Conversations[0].ConversationID).To(Equal("c2"))
		for _, c := range resp.Conversations {
			Expect(c.ConversationID).NotTo(Equal("c1"))
		}
	})

	It("prints a table", func() {
		Expect(run("c1", "-k", "1")).To(Succeed())
		Expect(out.String()).To(ContainSubstring("Conversations similar to"))
		Expect(out.String()).To(ContainSubstring("c2"))
	})

	It("reports when there is nothing to compare", func() {
		Expect(run("unknown")).To(Succeed())
		Expect(out.String()).To(ContainSubstring("No similar conversations found."))
	})
})

package testutils

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/recall/pkg/storage"
)

// NewTestMessage builds a message whose creation time is offset minutes after
// a fixed base time.
func NewTestMessage(id, sessionID, conversationID, content string, offset int) *storage.Message {
	return &storage.Message{
		ID:             id,
		SessionID:      sessionID,
		ConversationID: conversationID,
		Role:           "user",
		Content:        content,
		CreatedAt:      time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC).Add(time.Duration(offset) * time.Minute),
	}
}

// DescribeStorageDriver registers the behavior every storage.Driver shares.
// newDriver is called before each spec and the driver is closed after it.
func DescribeStorageDriver(newDriver func() storage.Driver) {
	var (
		driver storage.Driver
		ctx    context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		driver = newDriver()
		DeferCleanup(driver.Close)

		Expect(driver.Put(ctx,
			NewTestMessage("m1", "s1", "c1", "first", 0),
			NewTestMessage("m2", "s1", "c1", "second", 1),
			NewTestMessage("m3", "s1", "c2", "third", 2),
			NewTestMessage("m4", "s2", "c3", "other session", 3),
		)).To(Succeed())
	})

	ids := func(msgs []*storage.Message) []string {
		out := make([]string, len(msgs))
		for i, m := range msgs {
			out[i] = m.ID
		}
		return out
	}

	Describe("Put", func() {
		It("rejects a message without a session", func() {
			err := driver.Put(ctx, &storage.Message{ID: "bad"})
			Expect(err).To(MatchError(storage.ErrInvalidMessage))
		})

		It("upserts by id", func() {
			updated := NewTestMessage("m1", "s1", "c1", "rewritten", 0)
			updated.ImportanceScore = 0.9
			Expect(driver.Put(ctx, updated)).To(Succeed())

			got, err := driver.Get(ctx, "m1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Content).To(Equal("rewritten"))
			Expect(got.ImportanceScore).To(BeNumerically("~", 0.9, 1e-9))
		})
	})

	Describe("Get", func() {
		It("returns ErrNotFound for unknown ids", func() {
			_, err := driver.Get(ctx, "missing")
			Expect(err).To(MatchError(storage.ErrNotFound{ID: "missing"}))
		})

		It("round trips the creation time", func() {
			got, err := driver.Get(ctx, "m2")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.CreatedAt.Equal(time.Date(2025, 1, 1, 12, 1, 0, 0, time.UTC))).To(BeTrue())
		})
	})

	Describe("FetchByIDs", func() {
		It("skips unknown ids and orders by creation time", func() {
			msgs, err := driver.FetchByIDs(ctx, []string{"m3", "missing", "m1"}, "")
			Expect(err).NotTo(HaveOccurred())
			Expect(ids(msgs)).To(Equal([]string{"m1", "m3"}))
		})

		It("filters by session", func() {
			msgs, err := driver.FetchByIDs(ctx, []string{"m1", "m4"}, "s2")
			Expect(err).NotTo(HaveOccurred())
			Expect(ids(msgs)).To(Equal([]string{"m4"}))
		})

		It("returns nothing for no ids", func() {
			msgs, err := driver.FetchByIDs(ctx, nil, "")
			Expect(err).NotTo(HaveOccurred())
			Expect(msgs).To(BeEmpty())
		})
	})

	Describe("FetchBySession", func() {
		It("returns the session oldest first", func() {
			msgs, err := driver.FetchBySession(ctx, "s1", 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(ids(msgs)).To(Equal([]string{"m1", "m2", "m3"}))
		})

		It("keeps the most recent messages under a limit", func() {
			msgs, err := driver.FetchBySession(ctx, "s1", 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(ids(msgs)).To(Equal([]string{"m2", "m3"}))
		})

		It("returns an empty slice for an unknown session", func() {
			msgs, err := driver.FetchBySession(ctx, "nope", 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(msgs).To(BeEmpty())
		})
	})

	Describe("FetchByConversation", func() {
		It("returns the conversation oldest first", func() {
			msgs, err := driver.FetchByConversation(ctx, "c1", 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(ids(msgs)).To(Equal([]string{"m1", "m2"}))
		})
	})
}

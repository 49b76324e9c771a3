package ingestcmder

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/recall/pkg/storage"
)

var fixedNow = func() time.Time { return time.Date(2025, 1, 2, 12, 0, 0, 0, time.UTC) }

var _ = Describe("decodeMessages", func() {
	It("decodes one message per line and skips blank lines", func() {
		input := `{"id":"m1","session_id":"s1","content":"hello","created_at":"2025-01-01T00:00:00Z"}

{"id":"m2","session_id":"s1","content":"world"}
`
		msgs, err := decodeMessages(strings.NewReader(input), fixedNow)
		Expect(err).NotTo(HaveOccurred())
		Expect(msgs).To(HaveLen(2))
		Expect(msgs[0].CreatedAt).To(Equal(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)))
		Expect(msgs[1].CreatedAt).To(Equal(fixedNow()))
	})

	It("reports the line of malformed JSON", func() {
		input := `{"id":"m1","session_id":"s1"}
not json
`
		_, err := decodeMessages(strings.NewReader(input), fixedNow)
		Expect(err).To(MatchError(ContainSubstring("line 2")))
	})

	It("rejects messages without an id or session", func() {
		_, err := decodeMessages(strings.NewReader(`{"content":"orphan"}`), fixedNow)
		Expect(err).To(MatchError(storage.ErrInvalidMessage))
	})
})

var _ = Describe("tailer", func() {
	var path string

	BeforeEach(func() {
		dir := GinkgoT().TempDir()
		path = filepath.Join(dir, "messages.jsonl")
		Expect(os.WriteFile(path, []byte(`{"id":"old","session_id":"s1"}`+"\n"), 0o644)).To(Succeed())
	})

	appendTo := func(s string) {
		f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
		Expect(err).NotTo(HaveOccurred())
		_, err = f.WriteString(s)
		Expect(err).NotTo(HaveOccurred())
		Expect(f.Close()).To(Succeed())
	}

	size := func() int64 {
		info, err := os.Stat(path)
		Expect(err).NotTo(HaveOccurred())
		return info.Size()
	}

	It("returns only lines appended after the starting offset", func() {
		t := newTailer(path, size(), fixedNow)
		appendTo(`{"id":"new","session_id":"s1"}` + "\n")

		msgs, err := t.next()
		Expect(err).NotTo(HaveOccurred())
		Expect(msgs).To(HaveLen(1))
		Expect(msgs[0].ID).To(Equal("new"))

		msgs, err = t.next()
		Expect(err).NotTo(HaveOccurred())
		Expect(msgs).To(BeEmpty())
	})

	It("holds back a partial line until it is completed", func() {
		t := newTailer(path, size(), fixedNow)
		appendTo(`{"id":"half",`)

		msgs, err := t.next()
		Expect(err).NotTo(HaveOccurred())
		Expect(msgs).To(BeEmpty())

		appendTo(`"session_id":"s1"}` + "\n")
		msgs, err = t.next()
		Expect(err).NotTo(HaveOccurred())
		Expect(msgs).To(HaveLen(1))
		Expect(msgs[0].ID).To(Equal("half"))
	})

	It("starts over when the file is truncated", func() {
		t := newTailer(path, size(), fixedNow)
		Expect(os.Truncate(path, 0)).To(Succeed())
		appendTo(`{"id":"r","session_id":"s"}` + "\n")

		msgs, err := t.next()
		Expect(err).NotTo(HaveOccurred())
		Expect(msgs).To(HaveLen(1))
		Expect(msgs[0].ID).To(Equal("r"))
	})
})

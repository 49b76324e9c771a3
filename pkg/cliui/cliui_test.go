package cliui_test

import (
	"bytes"
	"errors"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/recall/pkg/cliui"
)

var _ = Describe("cliui", func() {
	Describe("FormatDuration", func() {
		It("formats sub-second durations in milliseconds", func() {
			Expect(cliui.FormatDuration(12 * time.Millisecond)).To(Equal("12ms"))
		})

		It("formats longer durations in seconds", func() {
			Expect(cliui.FormatDuration(3200 * time.Millisecond)).To(Equal("3.2s"))
		})
	})

	Describe("Mark", func() {
		It("returns the success mark for nil", func() {
			Expect(cliui.Mark(nil)).To(Equal(cliui.SuccessMark))
		})

		It("returns the fail mark for an error", func() {
			Expect(cliui.Mark(errors.New("boom"))).To(Equal(cliui.FailMark))
		})
	})

	Describe("Step", func() {
		It("returns the step's error and prints the message", func() {
			var buf bytes.Buffer
			err := cliui.Step(&buf, "indexing", func() error { return errors.New("boom") })
			Expect(err).To(MatchError("boom"))
			Expect(buf.String()).To(ContainSubstring("indexing"))
			Expect(buf.String()).To(HaveSuffix("\n"))
		})

		It("writes a single line when the output is not a terminal", func() {
			var buf bytes.Buffer
			Expect(cliui.Step(&buf, "saving", func() error {
				time.Sleep(200 * time.Millisecond)
				return nil
			})).To(Succeed())

			Expect(buf.String()).NotTo(ContainSubstring("⣾"))
			Expect(strings.Count(buf.String(), "saving")).To(Equal(1))
			Expect(buf.String()).To(ContainSubstring(cliui.SuccessMark))
		})
	})

	Describe("Rows", func() {
		It("pads keys to the widest one", func() {
			var buf bytes.Buffer
			cliui.Rows(&buf,
				cliui.Row{Key: "model", Value: "nomic-embed-text"},
				cliui.Row{Key: "dimensions", Value: "768"},
			)

			lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
			Expect(lines).To(HaveLen(2))
			Expect(lines[0]).To(ContainSubstring("model"))
			Expect(lines[0]).To(HaveSuffix("nomic-embed-text"))
			Expect(strings.Index(lines[0], "nomic")).To(Equal(strings.Index(lines[1], "768")))
		})
	})

	Describe("RenderMarkdown", func() {
		It("keeps the text of the document", func() {
			out, err := cliui.RenderMarkdown("# Summary\n\nrollback the service\n")
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(ContainSubstring("rollback the service"))
		})
	})

	Describe("DisableColor", func() {
		It("renders styles as plain text", func() {
			cliui.DisableColor()
			Expect(cliui.SuccessMark).To(Equal("✓"))
			Expect(cliui.KeyStyle.Render("model")).To(Equal("model"))
		})
	})
})

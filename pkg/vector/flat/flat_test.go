package flat_test

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/recall/pkg/logger"
	"github.com/papercomputeco/recall/pkg/vector"
	"github.com/papercomputeco/recall/pkg/vector/flat"
)

var _ = Describe("FlatDriver", func() {
	var (
		ctx    context.Context
		tmpDir string
		driver *flat.FlatDriver
	)

	BeforeEach(func() {
		ctx = context.Background()

		var err error
		tmpDir, err = os.MkdirTemp("", "flat-test-*")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() { os.RemoveAll(tmpDir) })

		driver, err = flat.NewFlatDriver(flat.Config{
			Path:       filepath.Join(tmpDir, "index.bin"),
			Dimensions: 3,
		}, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("NewFlatDriver", func() {
		It("requires dimensions", func() {
			_, err := flat.NewFlatDriver(flat.Config{}, logger.Nop())
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Add", func() {
		It("rejects vectors of the wrong length", func() {
			err := driver.Add(ctx, vector.Document{ID: "a", Embedding: []float32{1, 0}})
			Expect(err).To(MatchError(vector.ErrDimensionMismatch))
		})

		It("replaces a document with the same id", func() {
			Expect(driver.Add(ctx, vector.Document{ID: "a", Embedding: []float32{1, 0, 0}})).To(Succeed())
			Expect(driver.Add(ctx, vector.Document{ID: "a", Embedding: []float32{0, 1, 0}})).To(Succeed())

			n, err := driver.Count(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(1))

			results, err := driver.Query(ctx, []float32{0, 1, 0}, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(results[0].Score).To(BeNumerically("~", 1.0, 1e-6))
		})
	})

	Describe("AddBatch", func() {
		It("writes nothing when any vector is invalid", func() {
			err := driver.AddBatch(ctx, []vector.Document{
				{ID: "a", Embedding: []float32{1, 0, 0}},
				{ID: "b", Embedding: []float32{1, 0}},
			})
			Expect(err).To(MatchError(vector.ErrDimensionMismatch))

			n, _ := driver.Count(ctx)
			Expect(n).To(BeZero())
		})
	})

	Describe("Query", func() {
		BeforeEach(func() {
			Expect(driver.AddBatch(ctx, []vector.Document{
				{ID: "x", Embedding: []float32{1, 0, 0}},
				{ID: "b", Embedding: []float32{0, 1, 0}},
				{ID: "a", Embedding: []float32{0, 1, 0}},
				{ID: "near", Embedding: []float32{0.9, 0.1, 0}},
			})).To(Succeed())
		})

		It("returns min(k, n) results ordered by similarity", func() {
			results, err := driver.Query(ctx, []float32{1, 0, 0}, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(2))
			Expect(results[0].ID).To(Equal("x"))
			Expect(results[1].ID).To(Equal("near"))

			all, err := driver.Query(ctx, []float32{1, 0, 0}, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(HaveLen(4))
			for i := 1; i < len(all); i++ {
				Expect(all[i-1].Score).To(BeNumerically(">=", all[i].Score))
			}
		})

		It("breaks ties by ascending id", func() {
			results, err := driver.Query(ctx, []float32{0, 1, 0}, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(results[0].ID).To(Equal("a"))
			Expect(results[1].ID).To(Equal("b"))
		})

		It("returns nothing for k <= 0", func() {
			results, err := driver.Query(ctx, []float32{1, 0, 0}, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(BeEmpty())
		})

		It("scores zero-norm vectors as 0", func() {
			Expect(driver.Add(ctx, vector.Document{ID: "zero", Embedding: []float32{0, 0, 0}})).To(Succeed())
			results, err := driver.Query(ctx, []float32{0, 0, 1}, 10)
			Expect(err).NotTo(HaveOccurred())
			for _, r := range results {
				Expect(r.Score).To(BeNumerically("~", 0, 1e-6))
			}
		})
	})

	Describe("Save and load", func() {
		It("round-trips vectors bit for bit with metadata", func() {
			odd := []float32{float32(math.Pi), -0.0, math.SmallestNonzeroFloat32}
			Expect(driver.AddBatch(ctx, []vector.Document{
				{ID: "m1", Embedding: odd, Metadata: map[string]any{"role": "user", "content_length": 12.0}},
				{ID: "m2", Embedding: []float32{0.5, 0.25, 0.125}},
			})).To(Succeed())
			Expect(driver.Save(ctx)).To(Succeed())

			reloaded, err := flat.NewFlatDriver(flat.Config{
				Path:       filepath.Join(tmpDir, "index.bin"),
				Dimensions: 3,
			}, logger.Nop())
			Expect(err).NotTo(HaveOccurred())

			n, _ := reloaded.Count(ctx)
			Expect(n).To(Equal(2))

			results, err := reloaded.Query(ctx, odd, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(results[0].ID).To(Equal("m1"))
			Expect(results[0].Metadata).To(HaveKeyWithValue("role", "user"))
			Expect(results[0].Metadata).To(HaveKeyWithValue("content_length", 12.0))

			before, _ := driver.Query(ctx, []float32{0.3, 0.2, 0.1}, 2)
			after, _ := reloaded.Query(ctx, []float32{0.3, 0.2, 0.1}, 2)
			Expect(after[0].Score).To(Equal(before[0].Score))
			Expect(after[1].Score).To(Equal(before[1].Score))
		})

		It("rejects a snapshot written with other dimensions", func() {
			Expect(driver.Add(ctx, vector.Document{ID: "a", Embedding: []float32{1, 2, 3}})).To(Succeed())
			Expect(driver.Close()).To(Succeed())

			_, err := flat.NewFlatDriver(flat.Config{
				Path:       filepath.Join(tmpDir, "index.bin"),
				Dimensions: 4,
			}, logger.Nop())
			Expect(err).To(MatchError(vector.ErrDimensionMismatch))
		})

		It("rejects a snapshot written by another embedding model", func() {
			path := filepath.Join(tmpDir, "model.bin")
			a, err := flat.NewFlatDriver(flat.Config{Path: path, Dimensions: 3, Model: "model-a"}, logger.Nop())
			Expect(err).NotTo(HaveOccurred())
			Expect(a.Add(ctx, vector.Document{ID: "m1", Embedding: []float32{1, 0, 0}})).To(Succeed())
			Expect(a.Close()).To(Succeed())

			_, err = flat.NewFlatDriver(flat.Config{Path: path, Dimensions: 3, Model: "model-b"}, logger.Nop())
			Expect(err).To(MatchError(vector.ErrModelMismatch))
			var mismatch *vector.ModelMismatchError
			Expect(errors.As(err, &mismatch)).To(BeTrue())
			Expect(mismatch.Expected).To(Equal("model-b"))
			Expect(mismatch.Actual).To(Equal("model-a"))

			same, err := flat.NewFlatDriver(flat.Config{Path: path, Dimensions: 3, Model: "model-a"}, logger.Nop())
			Expect(err).NotTo(HaveOccurred())
			Expect(same.Count(ctx)).To(Equal(1))
		})

		It("loads version 1 snapshots only when no model is configured", func() {
			path := filepath.Join(tmpDir, "v1.bin")
			var buf bytes.Buffer
			buf.WriteString("RCLX")
			for _, v := range []uint32{1, 3, 0} {
				Expect(binary.Write(&buf, binary.LittleEndian, v)).To(Succeed())
			}
			Expect(os.WriteFile(path, buf.Bytes(), 0o644)).To(Succeed())

			_, err := flat.NewFlatDriver(flat.Config{Path: path, Dimensions: 3}, logger.Nop())
			Expect(err).NotTo(HaveOccurred())

			_, err = flat.NewFlatDriver(flat.Config{Path: path, Dimensions: 3, Model: "nomic-embed-text"}, logger.Nop())
			Expect(err).To(MatchError(vector.ErrModelMismatch))
		})

		It("rejects files that are not snapshots", func() {
			path := filepath.Join(tmpDir, "garbage.bin")
			Expect(os.WriteFile(path, []byte("not an index at all"), 0o644)).To(Succeed())

			_, err := flat.NewFlatDriver(flat.Config{Path: path, Dimensions: 3}, logger.Nop())
			Expect(err).To(MatchError(vector.ErrUnsupportedFormat))
		})

		It("keeps in-memory indexes out of the filesystem", func() {
			mem, err := flat.NewFlatDriver(flat.Config{Dimensions: 3}, logger.Nop())
			Expect(err).NotTo(HaveOccurred())
			Expect(mem.Add(ctx, vector.Document{ID: "a", Embedding: []float32{1, 2, 3}})).To(Succeed())
			Expect(mem.Save(ctx)).To(Succeed())
		})
	})
})

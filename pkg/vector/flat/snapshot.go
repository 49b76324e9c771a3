package flat

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/papercomputeco/recall/pkg/vector"
)

// Snapshot layout, all integers little-endian:
//
//	magic "RCLX" | version u32 | dimensions u32 | count u32 | modelLen u32 | model
//	per document: idLen u32 | id | metaLen u32 | metadata JSON | D x float32
//
// Version 1 snapshots have no model field.
const (
	snapshotMagic   = "RCLX"
	snapshotVersion = uint32(2)
)

// snapshotHeader is the decoded fixed part of a snapshot.
type snapshotHeader struct {
	version    uint32
	dimensions int
	count      uint32
	model      string
}

func writeSnapshot(path string, dimensions int, model string, docs map[string]vector.Document) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating index dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating index snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	if err := encodeSnapshot(w, dimensions, model, docs); err != nil {
		tmp.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("writing index snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing index snapshot: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing index snapshot: %w", err)
	}

	return nil
}

func encodeSnapshot(w io.Writer, dimensions int, model string, docs map[string]vector.Document) error {
	ids := make([]string, 0, len(docs))
	for id := range docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	if _, err := io.WriteString(w, snapshotMagic); err != nil {
		return err
	}
	for _, v := range []uint32{snapshotVersion, uint32(dimensions), uint32(len(ids))} {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return err
		}
	}
	if err := writeBytes(w, []byte(model)); err != nil {
		return err
	}

	for _, id := range ids {
		doc := docs[id]

		meta := []byte("null")
		if doc.Metadata != nil {
			var err error
			meta, err = json.Marshal(doc.Metadata)
			if err != nil {
				return fmt.Errorf("encoding metadata for %s: %w", id, err)
			}
		}

		if err := writeBytes(w, []byte(id)); err != nil {
			return err
		}
		if err := writeBytes(w, meta); err != nil {
			return err
		}

		buf := make([]byte, 4*len(doc.Embedding))
		for i, f := range doc.Embedding {
			binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
		}
		if _, err := w.Write(buf); err != nil {
			return err
		}
	}

	return nil
}

func readHeader(br *bufio.Reader) (*snapshotHeader, error) {
	magic := make([]byte, len(snapshotMagic))
	if _, err := io.ReadFull(br, magic); err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	if string(magic) != snapshotMagic {
		return nil, fmt.Errorf("%w: bad magic %q", vector.ErrUnsupportedFormat, magic)
	}

	var fixed [3]uint32
	if err := binary.Read(br, binary.LittleEndian, &fixed); err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	h := &snapshotHeader{version: fixed[0], dimensions: int(fixed[1]), count: fixed[2]}

	if h.version == 0 || h.version > snapshotVersion {
		return nil, fmt.Errorf("%w: version %d", vector.ErrUnsupportedFormat, h.version)
	}
	if h.version >= 2 {
		model, err := readBytes(br)
		if err != nil {
			return nil, fmt.Errorf("reading header model: %w", err)
		}
		h.model = string(model)
	}
	return h, nil
}

// readSnapshot decodes a snapshot, rejecting one written for another vector
// length or, when model is set, another embedding model.
func readSnapshot(r io.Reader, dimensions int, model string) ([]vector.Document, error) {
	br := bufio.NewReader(r)

	h, err := readHeader(br)
	if err != nil {
		return nil, err
	}
	if h.dimensions != dimensions {
		return nil, &vector.DimensionMismatchError{Expected: dimensions, Actual: h.dimensions}
	}
	if err := vector.CheckModel(model, h.model); err != nil {
		return nil, err
	}
	count := h.count

	docs := make([]vector.Document, 0, count)
	buf := make([]byte, 4*dimensions)
	for i := uint32(0); i < count; i++ {
		id, err := readBytes(br)
		if err != nil {
			return nil, fmt.Errorf("reading document %d id: %w", i, err)
		}
		meta, err := readBytes(br)
		if err != nil {
			return nil, fmt.Errorf("reading document %d metadata: %w", i, err)
		}
		if _, err := io.ReadFull(br, buf); err != nil {
			return nil, fmt.Errorf("reading document %d vector: %w", i, err)
		}

		doc := vector.Document{
			ID:        string(id),
			Embedding: make([]float32, dimensions),
		}
		for j := range doc.Embedding {
			doc.Embedding[j] = math.Float32frombits(binary.LittleEndian.Uint32(buf[j*4:]))
		}
		if err := json.Unmarshal(meta, &doc.Metadata); err != nil {
			return nil, fmt.Errorf("decoding document %s metadata: %w", doc.ID, err)
		}

		docs = append(docs, doc)
	}

	return docs, nil
}

func writeBytes(w io.Writer, b []byte) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func readBytes(r io.Reader) ([]byte, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}

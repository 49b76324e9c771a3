package ingestcmder

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/papercomputeco/recall/pkg/storage"
)

// maxLineSize bounds a single JSONL record.
const maxLineSize = 4 << 20

// decodeMessages reads one JSON message per line. Blank lines are skipped and
// messages without a creation time are stamped with now.
func decodeMessages(r io.Reader, now func() time.Time) ([]*storage.Message, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var msgs []*storage.Message
	line := 0
	for scanner.Scan() {
		line++
		msg, err := decodeLine(scanner.Bytes(), now)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if msg != nil {
			msgs = append(msgs, msg)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading messages: %w", err)
	}
	return msgs, nil
}

func decodeLine(raw []byte, now func() time.Time) (*storage.Message, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, nil
	}

	msg := &storage.Message{}
	if err := json.Unmarshal(raw, msg); err != nil {
		return nil, fmt.Errorf("decoding message: %w", err)
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = now()
	}
	return msg, nil
}

// tailer reads the lines appended to a file since the last call. A trailing
// line without a newline is held back until it is completed.
type tailer struct {
	path    string
	offset  int64
	partial []byte
	now     func() time.Time
}

func newTailer(path string, offset int64, now func() time.Time) *tailer {
	return &tailer{path: path, offset: offset, now: now}
}

func (t *tailer) next() ([]*storage.Message, error) {
	f, err := os.Open(t.path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", t.path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", t.path, err)
	}

	// Truncated or replaced, start over.
	if info.Size() < t.offset {
		t.offset = 0
		t.partial = nil
	}

	if _, err := f.Seek(t.offset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seeking %s: %w", t.path, err)
	}

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", t.path, err)
	}
	t.offset += int64(len(data))

	data = append(t.partial, data...)
	end := bytes.LastIndexByte(data, '\n')
	if end < 0 {
		t.partial = data
		return nil, nil
	}
	t.partial = append([]byte(nil), data[end+1:]...)

	var msgs []*storage.Message
	for _, raw := range bytes.Split(data[:end], []byte{'\n'}) {
		msg, err := decodeLine(raw, t.now)
		if err != nil {
			return msgs, err
		}
		if msg != nil {
			msgs = append(msgs, msg)
		}
	}
	return msgs, nil
}

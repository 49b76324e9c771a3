package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/papercomputeco/recall/pkg/vector"
)

const snapshotVersion = 1

type snapshot struct {
	Version    int                      `json:"version"`
	Model      string                   `json:"model"`
	Dimensions int                      `json:"dimensions"`
	Entries    map[string]snapshotEntry `json:"entries"`
}

type snapshotEntry struct {
	Vector    []float32 `json:"vector"`
	Timestamp int64     `json:"timestamp"`
	Model     string    `json:"model"`
}

func (c *Cache) writeSnapshot() error {
	snap := snapshot{
		Version:    snapshotVersion,
		Model:      c.model,
		Dimensions: c.dimensions,
		Entries:    make(map[string]snapshotEntry, c.lru.Len()),
	}
	for _, e := range c.lru.Values() {
		snap.Entries[e.hash] = snapshotEntry{
			Vector:    e.vector,
			Timestamp: e.insertedAt.UnixMilli(),
			Model:     c.model,
		}
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(c.path), filepath.Base(c.path)+".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), c.path)
}

func (c *Cache) load() error {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("reading embedding cache: %w", err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("parsing embedding cache %s: %w", c.path, err)
	}

	if snap.Version > snapshotVersion {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, snap.Version)
	}
	if c.model != "" && snap.Model != "" && snap.Model != c.model {
		return fmt.Errorf("%w: snapshot has %q, configured %q", ErrModelMismatch, snap.Model, c.model)
	}
	if c.dimensions > 0 && snap.Dimensions > 0 && snap.Dimensions != c.dimensions {
		return &vector.DimensionMismatchError{Expected: c.dimensions, Actual: snap.Dimensions}
	}

	loaded := make([]*entry, 0, len(snap.Entries))
	for hash, se := range snap.Entries {
		if c.dimensions > 0 && len(se.Vector) != c.dimensions {
			continue
		}
		e := &entry{
			hash:       hash,
			vector:     se.Vector,
			insertedAt: time.UnixMilli(se.Timestamp),
		}
		if c.expired(e) {
			continue
		}
		loaded = append(loaded, e)
	}

	// Oldest first, so the newest are the most recently used.
	sort.Slice(loaded, func(i, j int) bool {
		if loaded[i].insertedAt.Equal(loaded[j].insertedAt) {
			return loaded[i].hash < loaded[j].hash
		}
		return loaded[i].insertedAt.Before(loaded[j].insertedAt)
	})
	if len(loaded) > c.maxEntries {
		loaded = loaded[len(loaded)-c.maxEntries:]
	}

	for _, e := range loaded {
		c.lru.Add(e.hash, e)
	}

	c.logger.Debug("loaded embedding cache", "path", c.path, "entries", len(loaded))

	return nil
}

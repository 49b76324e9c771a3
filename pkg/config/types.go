package config

import (
	"fmt"
	"strconv"
	"time"
)

// Config represents the persistent recall configuration stored as config.toml
// in the .recall/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version     int               `toml:"version"`
	Storage     StorageConfig     `toml:"storage"`
	Embedding   EmbeddingConfig   `toml:"embedding"`
	Cache       CacheConfig       `toml:"cache"`
	VectorStore VectorStoreConfig `toml:"vector_store"`
	Memory      MemoryConfig      `toml:"memory"`
	API         APIConfig         `toml:"api"`
	Client      ClientConfig      `toml:"client"`
	EventStream EventStreamConfig `toml:"eventstream"`
}

// StorageConfig selects the message store.
type StorageConfig struct {
	Provider    string `toml:"provider,omitempty"`
	SQLitePath  string `toml:"sqlite_path,omitempty"`
	PostgresDSN string `toml:"postgres_dsn,omitempty"`
}

// EmbeddingConfig holds embedding provider and generator settings.
// Durations use Go duration syntax ("1s", "250ms").
type EmbeddingConfig struct {
	Provider          string `toml:"provider,omitempty"`
	Target            string `toml:"target,omitempty"`
	Model             string `toml:"model,omitempty"`
	Dimensions        uint   `toml:"dimensions,omitempty"`
	BatchSize         uint   `toml:"batch_size,omitempty"`
	MaxRetries        uint   `toml:"max_retries,omitempty"`
	BaseDelay         string `toml:"base_delay,omitempty"`
	SlowCallThreshold string `toml:"slow_call_threshold,omitempty"`
}

// CacheConfig holds embedding cache settings. A relative Path is resolved
// inside the .recall/ directory.
type CacheConfig struct {
	Path       string `toml:"path,omitempty"`
	TTL        string `toml:"ttl,omitempty"`
	FlushEvery uint   `toml:"flush_every,omitempty"`
	MaxEntries uint   `toml:"max_entries,omitempty"`
}

// VectorStoreConfig holds vector store settings. Path is used by the flat
// and sqlite drivers, Target and Collection by the remote ones.
type VectorStoreConfig struct {
	Provider   string `toml:"provider,omitempty"`
	Target     string `toml:"target,omitempty"`
	Path       string `toml:"path,omitempty"`
	Collection string `toml:"collection,omitempty"`
}

// MemoryConfig holds search and summary defaults.
type MemoryConfig struct {
	DefaultK      uint    `toml:"default_k,omitempty"`
	MinRelevance  float64 `toml:"min_relevance,omitempty"`
	SummaryWindow uint    `toml:"summary_window,omitempty"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// ClientConfig holds settings for CLI commands that connect to a running
// API server. Values are full URLs (scheme + host + port).
type ClientConfig struct {
	APITarget string `toml:"api_target,omitempty"`
}

// EventStreamConfig selects where indexing events are published. Brokers
// is a comma-separated list.
type EventStreamConfig struct {
	Provider string `toml:"provider,omitempty"`
	Brokers  string `toml:"brokers,omitempty"`
	Topic    string `toml:"topic,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func stringKey(field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error { *field(c) = v; return nil },
	}
}

func uintKey(name string, field func(c *Config) *uint) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			if *field(c) == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(*field(c)), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = uint(n)
			return nil
		},
	}
}

func floatKey(name string, field func(c *Config) *float64) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			if *field(c) == 0 {
				return ""
			}
			return strconv.FormatFloat(*field(c), 'g', -1, 64)
		},
		set: func(c *Config, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = f
			return nil
		},
	}
}

func durationKey(name string, field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error {
			if _, err := time.ParseDuration(v); err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = v
			return nil
		},
	}
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"storage.provider":     stringKey(func(c *Config) *string { return &c.Storage.Provider }),
	"storage.sqlite_path":  stringKey(func(c *Config) *string { return &c.Storage.SQLitePath }),
	"storage.postgres_dsn": stringKey(func(c *Config) *string { return &c.Storage.PostgresDSN }),

	"embedding.provider":            stringKey(func(c *Config) *string { return &c.Embedding.Provider }),
	"embedding.target":              stringKey(func(c *Config) *string { return &c.Embedding.Target }),
	"embedding.model":               stringKey(func(c *Config) *string { return &c.Embedding.Model }),
	"embedding.dimensions":          uintKey("embedding.dimensions", func(c *Config) *uint { return &c.Embedding.Dimensions }),
	"embedding.batch_size":          uintKey("embedding.batch_size", func(c *Config) *uint { return &c.Embedding.BatchSize }),
	"embedding.max_retries":         uintKey("embedding.max_retries", func(c *Config) *uint { return &c.Embedding.MaxRetries }),
	"embedding.base_delay":          durationKey("embedding.base_delay", func(c *Config) *string { return &c.Embedding.BaseDelay }),
	"embedding.slow_call_threshold": durationKey("embedding.slow_call_threshold", func(c *Config) *string { return &c.Embedding.SlowCallThreshold }),

	"cache.path":        stringKey(func(c *Config) *string { return &c.Cache.Path }),
	"cache.ttl":         durationKey("cache.ttl", func(c *Config) *string { return &c.Cache.TTL }),
	"cache.flush_every": uintKey("cache.flush_every", func(c *Config) *uint { return &c.Cache.FlushEvery }),
	"cache.max_entries": uintKey("cache.max_entries", func(c *Config) *uint { return &c.Cache.MaxEntries }),

	"vector_store.provider":   stringKey(func(c *Config) *string { return &c.VectorStore.Provider }),
	"vector_store.target":     stringKey(func(c *Config) *string { return &c.VectorStore.Target }),
	"vector_store.path":       stringKey(func(c *Config) *string { return &c.VectorStore.Path }),
	"vector_store.collection": stringKey(func(c *Config) *string { return &c.VectorStore.Collection }),

	"memory.default_k":      uintKey("memory.default_k", func(c *Config) *uint { return &c.Memory.DefaultK }),
	"memory.min_relevance":  floatKey("memory.min_relevance", func(c *Config) *float64 { return &c.Memory.MinRelevance }),
	"memory.summary_window": uintKey("memory.summary_window", func(c *Config) *uint { return &c.Memory.SummaryWindow }),

	"api.listen":        stringKey(func(c *Config) *string { return &c.API.Listen }),
	"client.api_target": stringKey(func(c *Config) *string { return &c.Client.APITarget }),

	"eventstream.provider": stringKey(func(c *Config) *string { return &c.EventStream.Provider }),
	"eventstream.brokers":  stringKey(func(c *Config) *string { return &c.EventStream.Brokers }),
	"eventstream.topic":    stringKey(func(c *Config) *string { return &c.EventStream.Topic }),
}

// orderedKeys lists configKeys in TOML section order.
var orderedKeys = []string{
	"storage.provider",
	"storage.sqlite_path",
	"storage.postgres_dsn",
	"embedding.provider",
	"embedding.target",
	"embedding.model",
	"embedding.dimensions",
	"embedding.batch_size",
	"embedding.max_retries",
	"embedding.base_delay",
	"embedding.slow_call_threshold",
	"cache.path",
	"cache.ttl",
	"cache.flush_every",
	"cache.max_entries",
	"vector_store.provider",
	"vector_store.target",
	"vector_store.path",
	"vector_store.collection",
	"memory.default_k",
	"memory.min_relevance",
	"memory.summary_window",
	"api.listen",
	"client.api_target",
	"eventstream.provider",
	"eventstream.brokers",
	"eventstream.topic",
}

package config

const (
	defaultStorageProvider = "sqlite"
	defaultSQLitePath      = "recall.sqlite"

	defaultEmbeddingProvider   = "ollama"
	defaultEmbeddingTarget     = "http://localhost:11434"
	defaultEmbeddingModel      = "nomic-embed-text"
	defaultEmbeddingDimensions = 768
	defaultBatchSize           = 100
	defaultMaxRetries          = 3
	defaultBaseDelay           = "1s"
	defaultSlowCallThreshold   = "2s"

	defaultCachePath       = "embedding-cache.json"
	defaultCacheTTL        = "24h"
	defaultCacheFlushEvery = 50
	defaultCacheMaxEntries = 1000

	defaultVectorProvider   = "flat"
	defaultVectorPath       = "index.rclx"
	defaultVectorCollection = "recall"

	defaultK             = 10
	defaultMinRelevance  = 0.7
	defaultSummaryWindow = 50

	defaultAPIListen       = ":8081"
	defaultClientAPITarget = "http://localhost:8081"

	defaultEventTopic = "recall.messages.indexed"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Storage: StorageConfig{
			Provider:   defaultStorageProvider,
			SQLitePath: defaultSQLitePath,
		},
		Embedding: EmbeddingConfig{
			Provider:          defaultEmbeddingProvider,
			Target:            defaultEmbeddingTarget,
			Model:             defaultEmbeddingModel,
			Dimensions:        defaultEmbeddingDimensions,
			BatchSize:         defaultBatchSize,
			MaxRetries:        defaultMaxRetries,
			BaseDelay:         defaultBaseDelay,
			SlowCallThreshold: defaultSlowCallThreshold,
		},
		Cache: CacheConfig{
			Path:       defaultCachePath,
			TTL:        defaultCacheTTL,
			FlushEvery: defaultCacheFlushEvery,
			MaxEntries: defaultCacheMaxEntries,
		},
		VectorStore: VectorStoreConfig{
			Provider:   defaultVectorProvider,
			Path:       defaultVectorPath,
			Collection: defaultVectorCollection,
		},
		Memory: MemoryConfig{
			DefaultK:      defaultK,
			MinRelevance:  defaultMinRelevance,
			SummaryWindow: defaultSummaryWindow,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		Client: ClientConfig{
			APITarget: defaultClientAPITarget,
		},
		EventStream: EventStreamConfig{
			Topic: defaultEventTopic,
		},
	}
}

package config

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline. This prevents flag drift
// when the same logical flag appears on multiple commands (e.g.,
// --embedding-provider on both "recall serve" and "recall search").
type Flag struct {
	// Name is the long flag name (e.g. "embedding-provider").
	Name string

	// Shorthand is the one-letter short flag (e.g. "e"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "embedding.provider").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of flag names to Flag structs that hold their name,
// shorthand, viper key, etc.
type FlagSet map[string]Flag

// Flag registry keys.
// Use these constants when calling AddStringFlag, AddUintFlag,
// and BindRegisteredFlags to avoid typos or drift from one command to another.
const (
	FlagAPIListen       = "api-listen"
	FlagAPITarget       = "api-target"
	FlagStorageProv     = "storage-provider"
	FlagSQLite          = "sqlite"
	FlagPostgres        = "postgres"
	FlagVectorStoreProv = "vector-store-provider"
	FlagVectorStoreTgt  = "vector-store-target"
	FlagVectorStorePath = "vector-store-path"
	FlagEmbeddingProv   = "embedding-provider"
	FlagEmbeddingTgt    = "embedding-target"
	FlagEmbeddingModel  = "embedding-model"
	FlagEmbeddingDims   = "embedding-dimensions"
	FlagCachePath       = "cache-path"
	FlagEventBrokers    = "kafka-brokers"
)

// SharedFlags holds the flags every command that builds semantic memory
// accepts.
var SharedFlags = FlagSet{
	FlagStorageProv: {
		Name:        "storage-provider",
		ViperKey:    "storage.provider",
		Description: "Message store: sqlite, postgres or memory",
	},
	FlagSQLite: {
		Name:        "sqlite",
		Shorthand:   "s",
		ViperKey:    "storage.sqlite_path",
		Description: "Path to the SQLite message database",
	},
	FlagPostgres: {
		Name:        "postgres",
		ViperKey:    "storage.postgres_dsn",
		Description: "PostgreSQL connection string",
	},
	FlagVectorStoreProv: {
		Name:        "vector-store-provider",
		ViperKey:    "vector_store.provider",
		Description: "Vector store: flat, sqlite, chroma or qdrant",
	},
	FlagVectorStoreTgt: {
		Name:        "vector-store-target",
		ViperKey:    "vector_store.target",
		Description: "Vector store URL for chroma or qdrant",
	},
	FlagVectorStorePath: {
		Name:        "vector-store-path",
		ViperKey:    "vector_store.path",
		Description: "Vector index file for flat or sqlite",
	},
	FlagEmbeddingProv: {
		Name:        "embedding-provider",
		Shorthand:   "e",
		ViperKey:    "embedding.provider",
		Description: "Embedding provider: ollama, openai or hashing",
	},
	FlagEmbeddingTgt: {
		Name:        "embedding-target",
		ViperKey:    "embedding.target",
		Description: "Embedding provider URL",
	},
	FlagEmbeddingModel: {
		Name:        "embedding-model",
		ViperKey:    "embedding.model",
		Description: "Embedding model name",
	},
	FlagEmbeddingDims: {
		Name:        "embedding-dimensions",
		ViperKey:    "embedding.dimensions",
		Description: "Embedding vector dimensions",
	},
	FlagCachePath: {
		Name:        "cache-path",
		ViperKey:    "cache.path",
		Description: "Embedding cache snapshot file",
	},
}

// ServeFlags holds the flags only "recall serve" accepts.
var ServeFlags = FlagSet{
	FlagAPIListen: {
		Name:        "listen",
		Shorthand:   "l",
		ViperKey:    "api.listen",
		Description: "Address for the API server to listen on",
	},
	FlagEventBrokers: {
		Name:        "kafka-brokers",
		ViperKey:    "eventstream.brokers",
		Description: "Comma-separated Kafka brokers for indexing events",
	},
}

// ClientFlags holds the flags for commands talking to a running server.
var ClientFlags = FlagSet{
	FlagAPITarget: {
		Name:        "api-target",
		Shorthand:   "a",
		ViperKey:    "client.api_target",
		Description: "recall API server URL",
	},
}

// SharedFlagKeys lists every key in SharedFlags.
var SharedFlagKeys = []string{
	FlagStorageProv,
	FlagSQLite,
	FlagPostgres,
	FlagVectorStoreProv,
	FlagVectorStoreTgt,
	FlagVectorStorePath,
	FlagEmbeddingProv,
	FlagEmbeddingTgt,
	FlagEmbeddingModel,
	FlagEmbeddingDims,
	FlagCachePath,
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// The flag's name, shorthand, default, and description all come from the
// FlagSet entry so they cannot drift across commands.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddUintFlag registers a uint flag on cmd from the given FlagSet.
func AddUintFlag(cmd *cobra.Command, fs FlagSet, registryKey string, target *uint) {
	def, ok := fs[registryKey]
	if !ok {
		return
	}

	defaultVal := defaultUint(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().UintVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().UintVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddSharedFlags registers every SharedFlags entry on cmd. Values are read
// back through viper after BindRegisteredFlags.
func AddSharedFlags(cmd *cobra.Command) {
	for _, key := range SharedFlagKeys {
		if key == FlagEmbeddingDims {
			var dims uint
			AddUintFlag(cmd, SharedFlags, key, &dims)
			continue
		}
		var s string
		AddStringFlag(cmd, SharedFlags, key, &s)
	}
}

// BindRegisteredFlags binds already-registered flags to viper using definitions
// from the given FlagSet. Call this in PreRunE after InitViper to connect flags
// to the viper precedence chain (flag > env > config file > default).
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

// defaultString returns the default string value for a viper key from NewDefaultConfig.
func defaultString(viperKey string) string {
	v := viper.New()
	setViperDefaults(v)
	return v.GetString(viperKey)
}

// defaultUint returns the default uint value for a viper key from NewDefaultConfig.
func defaultUint(viperKey string) uint {
	v := viper.New()
	setViperDefaults(v)
	return v.GetUint(viperKey)
}

// Binding pairs a FlagSet with the registry keys a command registered from it.
type Binding struct {
	Flags FlagSet
	Keys  []string
}

// LoadCommandConfig resolves the effective Config for cmd: it reads the
// --config-dir flag, initializes viper, binds each Binding and resolves.
func LoadCommandConfig(cmd *cobra.Command, bindings ...Binding) (*Config, error) {
	configDir, _ := cmd.Flags().GetString("config-dir")

	v, err := InitViper(configDir)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	for _, b := range bindings {
		BindRegisteredFlags(v, cmd, b.Flags, b.Keys)
	}

	return Resolve(v)
}

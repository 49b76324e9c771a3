// Package vectorutils is the vector driver utility package
package vectorutils

import (
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"

	"github.com/papercomputeco/recall/pkg/vector"
	"github.com/papercomputeco/recall/pkg/vector/chroma"
	"github.com/papercomputeco/recall/pkg/vector/flat"
	"github.com/papercomputeco/recall/pkg/vector/qdrant"
	"github.com/papercomputeco/recall/pkg/vector/sqlitevec"
)

const (
	ProviderFlat   = "flat"
	ProviderSQLite = "sqlite"
	ProviderChroma = "chroma"
	ProviderQdrant = "qdrant"
)

type NewVectorDriverOpts struct {
	ProviderType string

	// TargetURL addresses remote stores (chroma, qdrant).
	TargetURL string

	// Path is the local file for flat snapshots and sqlite databases.
	Path string

	Collection string
	APIKey     string
	Dimensions int

	// Model is the embedding model the index is built for. Local drivers
	// record it and refuse to reopen an index built by another model.
	Model string

	Logger *slog.Logger
}

func NewVectorDriver(o *NewVectorDriverOpts) (vector.VectorDriver, error) {
	switch o.ProviderType {
	case ProviderFlat, "":
		return flat.NewFlatDriver(flat.Config{
			Path:       o.Path,
			Dimensions: o.Dimensions,
			Model:      o.Model,
		}, o.Logger)
	case ProviderSQLite:
		return sqlitevec.NewSQLiteVecDriver(sqlitevec.Config{
			DBPath:     o.Path,
			Dimensions: o.Dimensions,
			Model:      o.Model,
		}, o.Logger)
	case ProviderChroma:
		return chroma.NewDriver(chroma.Config{
			URL:            o.TargetURL,
			CollectionName: o.Collection,
			Dimensions:     o.Dimensions,
		}, o.Logger)
	case ProviderQdrant:
		host, port, tls, err := splitQdrantTarget(o.TargetURL)
		if err != nil {
			return nil, err
		}
		return qdrant.NewDriver(qdrant.Config{
			Host:           host,
			Port:           port,
			UseTLS:         tls,
			APIKey:         o.APIKey,
			CollectionName: o.Collection,
			Dimensions:     o.Dimensions,
		}, o.Logger)
	default:
		return nil, fmt.Errorf("unsupported vector store provider: %s", o.ProviderType)
	}
}

// splitQdrantTarget accepts "host", "host:port" or a URL such as
// "https://host:6334".
func splitQdrantTarget(target string) (string, int, bool, error) {
	if target == "" {
		return "", 0, false, fmt.Errorf("qdrant target is required")
	}

	tls := false
	if u, err := url.Parse(target); err == nil && u.Host != "" {
		tls = u.Scheme == "https"
		target = u.Host
	}

	host, portStr, err := net.SplitHostPort(target)
	if err != nil {
		return target, 0, tls, nil
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, false, fmt.Errorf("invalid qdrant port %q: %w", portStr, err)
	}

	return host, port, tls, nil
}

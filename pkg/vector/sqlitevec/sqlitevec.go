// Package sqlitevec provides a SQLite-backed vector driver using sqlite-vec.
package sqlitevec

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strconv"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/papercomputeco/recall/pkg/vector"
)

// SQLiteVecDriver implements vector.VectorDriver using SQLite with sqlite-vec.
type SQLiteVecDriver struct {
	db         *sql.DB
	dimensions int
	logger     *slog.Logger
}

// Config holds configuration for the SQLite vec driver.
type Config struct {
	// DBPath is the path to the SQLite database file.
	// Use ":memory:" for an in-memory database.
	DBPath string

	// Dimensions is the number of dimensions for the embedding vectors.
	Dimensions int

	// Model names the embedding model the vectors come from. It is recorded
	// in the database and a database built by another model is rejected.
	// Empty disables the check.
	Model string
}

// NewSQLiteVecDriver creates a new SQLite vector driver backed by sqlite-vec.
func NewSQLiteVecDriver(c Config, logger *slog.Logger) (*SQLiteVecDriver, error) {
	// enable connection to have sqlite-vec extension
	sqlite_vec.Auto()

	if c.DBPath == "" {
		return nil, errors.New("database path is required")
	}

	if c.Dimensions <= 0 {
		return nil, errors.New("sqlite-vec embedding dimensions cannot be 0, must be configured")
	}

	db, err := sql.Open("sqlite3", c.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// :memory: databases are per connection.
	db.SetMaxOpenConns(1)

	var vecVersion string
	if err := db.QueryRow("SELECT vec_version()").Scan(&vecVersion); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite-vec not available: %w", err)
	}

	// vec0 virtual tables use integer rowids, so string document IDs and
	// their metadata live in a mapping table.
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS vec_documents (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			doc_id TEXT NOT NULL UNIQUE,
			metadata TEXT NOT NULL DEFAULT 'null'
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating documents table: %w", err)
	}

	if err := checkSchema(db, c); err != nil {
		db.Close()
		return nil, err
	}

	createVec := fmt.Sprintf(
		`CREATE VIRTUAL TABLE IF NOT EXISTS vec_embeddings USING vec0(embedding float[%d] distance_metric=cosine)`,
		c.Dimensions,
	)
	if _, err := db.Exec(createVec); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating vec0 table: %w", err)
	}

	if err := writeMeta(db, c); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("sqlite-vec vector driver initialized",
		"db_path", c.DBPath,
		"dimensions", c.Dimensions,
		"vec_version", vecVersion,
	)

	return &SQLiteVecDriver{
		db:         db,
		dimensions: c.Dimensions,
		logger:     logger,
	}, nil
}

var vecDimensionsRe = regexp.MustCompile(`float\[(\d+)\]`)

// checkSchema compares an existing database with c. The vector length comes
// from vec_meta or, for databases created before it existed, from the vec0
// table definition. A vec0 table keeps the length it was created with, so a
// mismatch is reported here instead of failing every later statement.
func checkSchema(db *sql.DB, c Config) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS vec_meta (key TEXT PRIMARY KEY, value TEXT NOT NULL)`); err != nil {
		return fmt.Errorf("creating meta table: %w", err)
	}

	meta, err := readMeta(db)
	if err != nil {
		return err
	}

	stored := meta["dimensions"]
	if stored == "" {
		var ddl string
		err := db.QueryRow(`SELECT sql FROM sqlite_master WHERE name = 'vec_embeddings'`).Scan(&ddl)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil
		case err != nil:
			return fmt.Errorf("reading vec0 schema: %w", err)
		}
		if m := vecDimensionsRe.FindStringSubmatch(ddl); m != nil {
			stored = m[1]
		}
	}
	if stored != "" {
		dims, err := strconv.Atoi(stored)
		if err != nil {
			return fmt.Errorf("invalid stored dimensions %q: %w", stored, err)
		}
		if dims != c.Dimensions {
			return &vector.DimensionMismatchError{Expected: c.Dimensions, Actual: dims}
		}
	}

	if c.Model == "" {
		return nil
	}
	if model, ok := meta["model"]; ok {
		return vector.CheckModel(c.Model, model)
	}

	// Vectors written before the model was recorded cannot be attributed.
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM vec_documents`).Scan(&n); err != nil {
		return fmt.Errorf("counting documents: %w", err)
	}
	if n > 0 {
		return &vector.ModelMismatchError{Expected: c.Model}
	}
	return nil
}

// readMeta drains vec_meta before returning; the pool holds one connection.
func readMeta(db *sql.DB) (map[string]string, error) {
	rows, err := db.Query(`SELECT key, value FROM vec_meta`)
	if err != nil {
		return nil, fmt.Errorf("reading meta table: %w", err)
	}
	defer rows.Close()

	meta := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("reading meta table: %w", err)
		}
		meta[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading meta table: %w", err)
	}
	return meta, nil
}

func writeMeta(db *sql.DB, c Config) error {
	values := map[string]string{"dimensions": strconv.Itoa(c.Dimensions)}
	if c.Model != "" {
		values["model"] = c.Model
	}
	for k, v := range values {
		if _, err := db.Exec(`INSERT OR REPLACE INTO vec_meta(key, value) VALUES (?, ?)`, k, v); err != nil {
			return fmt.Errorf("writing meta table: %w", err)
		}
	}
	return nil
}

// serializeFloat32 converts a float32 slice to a little-endian byte slice
// suitable for sqlite-vec BLOB format.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// Add stores a single document.
func (d *SQLiteVecDriver) Add(ctx context.Context, doc vector.Document) error {
	return d.AddBatch(ctx, []vector.Document{doc})
}

// AddBatch stores documents in one transaction. If a document with the same
// ID already exists, it is replaced.
func (d *SQLiteVecDriver) AddBatch(ctx context.Context, docs []vector.Document) error {
	if len(docs) == 0 {
		return nil
	}

	for _, doc := range docs {
		if err := vector.CheckDimensions(doc.Embedding, d.dimensions); err != nil {
			return fmt.Errorf("document %s: %w", doc.ID, err)
		}
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, doc := range docs {
		meta, err := json.Marshal(doc.Metadata)
		if err != nil {
			return fmt.Errorf("encoding metadata for doc %s: %w", doc.ID, err)
		}
		embBlob := serializeFloat32(doc.Embedding)

		var existingRowID int64
		err = tx.QueryRowContext(ctx,
			`SELECT rowid FROM vec_documents WHERE doc_id = ?`, doc.ID,
		).Scan(&existingRowID)

		switch {
		case err == nil:
			if _, err := tx.ExecContext(ctx,
				`UPDATE vec_documents SET metadata = ? WHERE rowid = ?`,
				string(meta), existingRowID,
			); err != nil {
				return fmt.Errorf("updating document %s: %w", doc.ID, err)
			}

			// vec0 does not support UPDATE
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM vec_embeddings WHERE rowid = ?`, existingRowID,
			); err != nil {
				return fmt.Errorf("deleting old embedding for doc %s: %w", doc.ID, err)
			}

			if _, err := tx.ExecContext(ctx,
				`INSERT INTO vec_embeddings(rowid, embedding) VALUES (?, ?)`,
				existingRowID, embBlob,
			); err != nil {
				return fmt.Errorf("re-inserting embedding for doc %s: %w", doc.ID, err)
			}
		case errors.Is(err, sql.ErrNoRows):
			result, err := tx.ExecContext(ctx,
				`INSERT INTO vec_documents(doc_id, metadata) VALUES (?, ?)`,
				doc.ID, string(meta),
			)
			if err != nil {
				return fmt.Errorf("inserting document %s: %w", doc.ID, err)
			}

			rowID, err := result.LastInsertId()
			if err != nil {
				return fmt.Errorf("getting rowid for doc %s: %w", doc.ID, err)
			}

			if _, err := tx.ExecContext(ctx,
				`INSERT INTO vec_embeddings(rowid, embedding) VALUES (?, ?)`,
				rowID, embBlob,
			); err != nil {
				return fmt.Errorf("inserting embedding for doc %s: %w", doc.ID, err)
			}
		default:
			return fmt.Errorf("checking for existing document %s: %w", doc.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	d.logger.Debug("added documents to sqlite-vec", "count", len(docs))

	return nil
}

// Query runs a vec0 KNN match. The cosine distance reported by sqlite-vec is
// converted back to similarity.
//
// vec0 cuts at k before the ID tie-break applies, so the match is widened
// until the row after position topK scores strictly lower. Documents tied at
// the boundary are then ordered by ID like every other driver.
func (d *SQLiteVecDriver) Query(ctx context.Context, embedding []float32, topK int) ([]vector.QueryResult, error) {
	if err := vector.CheckDimensions(embedding, d.dimensions); err != nil {
		return nil, err
	}
	if topK <= 0 {
		return []vector.QueryResult{}, nil
	}

	blob := serializeFloat32(embedding)
	limit := topK + 1
	for {
		results, err := d.knn(ctx, blob, limit)
		if err != nil {
			return nil, err
		}
		if len(results) < limit || results[limit-1].Score != results[topK-1].Score {
			d.logger.Debug("queried sqlite-vec", "results", len(results), "k", limit)
			return vector.TopK(results, topK), nil
		}
		limit *= 2
	}
}

func (d *SQLiteVecDriver) knn(ctx context.Context, blob []byte, k int) ([]vector.QueryResult, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT
			d.doc_id,
			d.metadata,
			ve.distance
		FROM vec_embeddings ve
		INNER JOIN vec_documents d ON d.rowid = ve.rowid
		WHERE ve.embedding MATCH ?
			AND ve.k = ?
		ORDER BY ve.distance, d.doc_id
	`, blob, k)
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}
	defer rows.Close()

	results := []vector.QueryResult{}
	for rows.Next() {
		var (
			docID, meta string
			distance    float64
		)
		if err := rows.Scan(&docID, &meta, &distance); err != nil {
			return nil, fmt.Errorf("scanning query result: %w", err)
		}

		doc := vector.Document{ID: docID}
		if err := json.Unmarshal([]byte(meta), &doc.Metadata); err != nil {
			return nil, fmt.Errorf("decoding metadata for doc %s: %w", docID, err)
		}

		results = append(results, vector.QueryResult{
			Document: doc,
			Score:    float32(1.0 - distance),
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating query results: %w", err)
	}
	return results, nil
}

// Count returns the number of stored documents.
func (d *SQLiteVecDriver) Count(ctx context.Context) (int, error) {
	var n int
	if err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM vec_documents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting documents: %w", err)
	}
	return n, nil
}

// Save is a no-op: every AddBatch commits its own transaction.
func (d *SQLiteVecDriver) Save(_ context.Context) error {
	return nil
}

// Dimensions returns the configured vector length.
func (d *SQLiteVecDriver) Dimensions() int {
	return d.dimensions
}

// Close releases resources held by the driver.
func (d *SQLiteVecDriver) Close() error {
	return d.db.Close()
}

var _ vector.VectorDriver = (*SQLiteVecDriver)(nil)

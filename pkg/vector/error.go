package vector

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a document is not found in the vector store.
	ErrNotFound = errors.New("document not found")

	// ErrConnection is returned when the vector store connection fails.
	ErrConnection = errors.New("vector store connection failed")

	// ErrDimensionMismatch matches any DimensionMismatchError via errors.Is.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrUnsupportedFormat is returned when an index snapshot has an unknown
	// magic number or a newer format version.
	ErrUnsupportedFormat = errors.New("unsupported index snapshot format")

	// ErrModelMismatch matches any ModelMismatchError via errors.Is.
	ErrModelMismatch = errors.New("vector index model mismatch")
)

// DimensionMismatchError reports a vector whose length differs from the
// configured dimensionality. It is a configuration error and never retried.
type DimensionMismatchError struct {
	Expected int
	Actual   int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("vector dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

func (e *DimensionMismatchError) Is(target error) bool {
	return target == ErrDimensionMismatch
}

// CheckDimensions returns a DimensionMismatchError when len(v) != expected.
func CheckDimensions(v []float32, expected int) error {
	if len(v) != expected {
		return &DimensionMismatchError{Expected: expected, Actual: len(v)}
	}
	return nil
}

// ModelMismatchError reports a persisted index whose vectors were produced by
// another embedding model. Like a dimension mismatch it is a configuration
// error: the stored vectors live in a different space than new queries.
type ModelMismatchError struct {
	Expected string
	Actual   string
}

func (e *ModelMismatchError) Error() string {
	if e.Actual == "" {
		return fmt.Sprintf("vector index model mismatch: expected %q, index records no model", e.Expected)
	}
	return fmt.Sprintf("vector index model mismatch: expected %q, got %q", e.Expected, e.Actual)
}

func (e *ModelMismatchError) Is(target error) bool {
	return target == ErrModelMismatch
}

// CheckModel returns a ModelMismatchError when a configured model differs from
// the one recorded with a persisted index. An empty expected model skips the
// check.
func CheckModel(expected, recorded string) error {
	if expected != "" && expected != recorded {
		return &ModelMismatchError{Expected: expected, Actual: recorded}
	}
	return nil
}

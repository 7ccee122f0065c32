package vector

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a record is not found in the index.
	ErrNotFound = errors.New("record not found")

	// ErrEmbedding is returned when embedding generation fails.
	ErrEmbedding = errors.New("embedding failed")

	// ErrConnection is returned when the index connection fails.
	ErrConnection = errors.New("vector index connection failed")

	// ErrQuotaExhausted is returned when the embedding or index provider
	// rejects a request because the account's quota is spent. Callers
	// surface this to the user instead of retrying.
	ErrQuotaExhausted = errors.New("provider quota exhausted")

	// ErrDimensionMismatch is returned when record dimensions disagree with
	// the index configuration.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// DimensionMismatchError reports a startup mismatch between the configured
// embedding model and the index.
type DimensionMismatchError struct {
	IndexDims    int
	EmbedderDims int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("embedding dimension mismatch: index expects %d, embedder produces %d", e.IndexDims, e.EmbedderDims)
}

func (e *DimensionMismatchError) Unwrap() error {
	return ErrDimensionMismatch
}

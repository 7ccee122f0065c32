package vector

import "context"

// Index handles storage and similarity search of vector records. All
// operations are namespace-scoped; the empty namespace is valid.
type Index interface {
	// Upsert stores records, replacing any existing record with the same ID
	// in the namespace.
	Upsert(ctx context.Context, namespace string, records []Record) error

	// Query finds the topK most similar records to the given embedding.
	// Matches are returned in descending score order with metadata attached.
	Query(ctx context.Context, namespace string, embedding []float32, topK int) ([]Match, error)

	// Fetch retrieves records by their IDs. Missing IDs are silently
	// omitted from the result.
	Fetch(ctx context.Context, namespace string, ids []string) ([]Record, error)

	// Stats reports the index dimension and per-namespace vector counts.
	Stats(ctx context.Context) (*Stats, error)

	// DeleteAll removes every record in the namespace.
	DeleteAll(ctx context.Context, namespace string) error

	// Close releases any resources held by the index.
	Close() error
}

// ValidateDimensions checks that the embedding model's output dimensionality
// matches the index at startup, so a mismatch surfaces as one clear error
// instead of a failure on the first write.
func ValidateDimensions(ctx context.Context, index Index, embedderDims int) error {
	stats, err := index.Stats(ctx)
	if err != nil {
		return err
	}
	if stats.Dimension != 0 && stats.Dimension != embedderDims {
		return &DimensionMismatchError{
			IndexDims:    stats.Dimension,
			EmbedderDims: embedderDims,
		}
	}
	return nil
}

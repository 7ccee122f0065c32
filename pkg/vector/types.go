// Package vector provides interfaces and implementations for vector index
// storage and similarity search.
package vector

// Record is a single vector with its flat metadata payload, as written to an
// index.
type Record struct {
	// ID uniquely identifies the record within a namespace.
	ID string `json:"id"`

	// Values is the embedding vector.
	Values []float32 `json:"values"`

	// Metadata is the flat key/value payload stored alongside the vector.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Match is a single similarity search hit.
type Match struct {
	// ID is the matched record's id.
	ID string `json:"id"`

	// Score is the raw similarity score reported by the index
	// (higher = more similar).
	Score float64 `json:"score"`

	// Metadata is the record's stored payload, returned verbatim.
	Metadata map[string]any `json:"metadata,omitempty"`

	// AdjustedScore is set by multi-variant search and combines rank and
	// cross-variant agreement. Zero for plain searches.
	AdjustedScore float64 `json:"adjusted_score,omitempty"`

	// QueryVariant is the query text that produced this match in a
	// multi-variant search.
	QueryVariant string `json:"query_variant,omitempty"`

	// QueryRank is the 1-based rank of this match within its variant's
	// result list.
	QueryRank int `json:"query_rank,omitempty"`
}

// Stats describes the current state of an index.
type Stats struct {
	// Dimension is the vector dimensionality the index was created with.
	Dimension int `json:"dimension"`

	// TotalVectorCount is the number of vectors across all namespaces.
	TotalVectorCount int `json:"total_vector_count"`

	// Namespaces maps namespace name to its vector count.
	Namespaces map[string]int `json:"namespaces,omitempty"`

	// Metric is the index's similarity metric, e.g. "cosine".
	Metric string `json:"metric,omitempty"`
}

// Package api provides the HTTP API server for uploading documents and
// querying the retrieval index.
package api

import (
	"github.com/sumika-ai/sumika/pkg/embeddings"
	"github.com/sumika-ai/sumika/pkg/eventstream"
	"github.com/sumika-ai/sumika/pkg/tokens"
	"github.com/sumika-ai/sumika/pkg/vector"
)

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8081")
	ListenAddr string

	// Namespace is the default index namespace when a request does not
	// name one.
	Namespace string

	// Embedder converts text to vectors for both writes and queries.
	Embedder embeddings.Embedder

	// Index is the vector store backing search and uploads.
	Index vector.Index

	// Counter counts tokens for context reporting. Optional.
	Counter tokens.Counter

	// Publisher emits index events after uploads and clears. Optional;
	// nil disables event publication.
	Publisher eventstream.Publisher

	// TopK is the default result count for search requests.
	TopK int

	// Threshold is the default minimum similarity score.
	Threshold float64

	// BatchSize is the upsert batch size for uploads.
	BatchSize int
}

// ErrorResponse is the JSON error body returned by all handlers.
type ErrorResponse struct {
	Error string `json:"error"`
}

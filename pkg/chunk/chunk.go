// Package chunk defines the atomic unit of ingested text and the separator
// based segmenter that produces it.
//
// A Chunk is the unit of embedding and storage: a stable id, the immutable
// source text, and typed metadata. Ids are deterministic within one upload
// session (running index + session suffix) so that re-uploading the same
// logical unit during retries overwrites rather than duplicates.
package chunk

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Chunk is an atomic unit of source text plus its metadata.
type Chunk struct {
	// ID uniquely identifies the chunk within an upload session.
	ID string `json:"id"`

	// Text is the chunk content. Immutable once created.
	Text string `json:"text"`

	// Metadata carries the typed, well-known fields plus open extensions.
	Metadata Metadata `json:"metadata"`
}

// NewSessionID returns a fresh upload-session suffix. All chunks produced
// within one logical upload share the suffix so their ids stay stable across
// retries of that upload.
func NewSessionID() string {
	return strings.Split(uuid.NewString(), "-")[0]
}

// textChunkID builds the id for the i-th chunk of a session.
func textChunkID(index int, session string) string {
	return fmt.Sprintf("chunk_%d_%s", index, session)
}

// CSVChunkID builds the id for a CSV-imported row chunk.
func CSVChunkID(row int, session string) string {
	return fmt.Sprintf("csv_%d_%s", row, session)
}

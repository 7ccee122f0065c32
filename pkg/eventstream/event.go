// Package eventstream publishes index lifecycle events so downstream
// consumers (analytics, cache invalidation) can react to uploads and clears.
package eventstream

import (
	"time"

	"github.com/google/uuid"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeChunksUpserted is emitted after an upload writes chunks
	// into the index.
	EventTypeChunksUpserted = "sumika.index.chunks_upserted"

	// EventTypeIndexCleared is emitted after a namespace is cleared.
	EventTypeIndexCleared = "sumika.index.cleared"
)

// IndexEvent is a transport-neutral event payload for an index mutation.
type IndexEvent struct {
	SchemaVersion int       `json:"schema_version"`
	EventType     string    `json:"event_type"`
	EventID       string    `json:"event_id"`
	EmittedAt     time.Time `json:"emitted_at"`
	Namespace     string    `json:"namespace"`

	// UpsertedIDs lists the record ids written, for chunks-upserted events.
	UpsertedIDs []string `json:"upserted_ids,omitempty"`

	// FailedIDs lists the chunk ids that could not be embedded.
	FailedIDs []string `json:"failed_ids,omitempty"`
}

// NewChunksUpsertedEvent builds the event emitted after an upload.
func NewChunksUpsertedEvent(namespace string, upsertedIDs, failedIDs []string) *IndexEvent {
	return &IndexEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeChunksUpserted,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		Namespace:     namespace,
		UpsertedIDs:   upsertedIDs,
		FailedIDs:     failedIDs,
	}
}

// NewIndexClearedEvent builds the event emitted after a namespace clear.
func NewIndexClearedEvent(namespace string) *IndexEvent {
	return &IndexEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeIndexCleared,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		Namespace:     namespace,
	}
}

// Package chroma provides a Chroma-backed vector index driver using its
// v2 REST API.
package chroma

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sumika-ai/sumika/pkg/vector"
)

const (
	// DefaultCollectionName is the collection used when none is configured.
	DefaultCollectionName = "sumika"

	// namespaceKey is the reserved metadata key carrying the record's
	// namespace. Chroma has no namespace concept of its own, so every
	// record stores its namespace as metadata and reads filter on it.
	namespaceKey = "namespace"

	// payloadKey is the reserved metadata key holding the record's full
	// metadata as one JSON string. Chroma only accepts scalar metadata
	// values, so list-valued fields (valid_for, answer_examples) cannot be
	// stored as-is; the whole map round-trips through JSON instead, like
	// the sqlitevec driver's metadata column.
	payloadKey = "payload"
)

// ChromaDriver implements vector.Index against a Chroma collection.
type ChromaDriver struct {
	baseURL        string
	collectionName string
	collectionID   string
	httpClient     *http.Client
	logger         *zap.Logger
}

// Config holds configuration for the Chroma driver.
type Config struct {
	// URL is the Chroma server URL (e.g., "http://localhost:8000").
	URL string

	// CollectionName is the name of the collection to use.
	// Defaults to DefaultCollectionName if empty.
	CollectionName string
}

// NewChromaDriver creates a new Chroma index driver, getting or creating the
// configured collection.
func NewChromaDriver(c Config, logger *zap.Logger) (*ChromaDriver, error) {
	if c.URL == "" {
		return nil, fmt.Errorf("chroma URL is required")
	}

	collectionName := c.CollectionName
	if collectionName == "" {
		collectionName = DefaultCollectionName
	}

	d := &ChromaDriver{
		baseURL:        strings.TrimSuffix(c.URL, "/"),
		collectionName: collectionName,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: logger,
	}

	collection, err := d.getOrCreateCollection(context.Background())
	if err != nil {
		return nil, fmt.Errorf("%w: getting or creating collection %q: %v", vector.ErrConnection, collectionName, err)
	}
	d.collectionID = collection.ID

	logger.Info("connected to Chroma",
		zap.String("url", c.URL),
		zap.String("collection", collectionName),
		zap.String("collection_id", collection.ID),
	)

	return d, nil
}

// collectionPath returns the API path for this driver's collection,
// with the given suffix appended.
func (d *ChromaDriver) collectionPath(suffix string) string {
	return fmt.Sprintf("/api/v2/tenants/default_tenant/databases/default_database/collections/%s%s", d.collectionID, suffix)
}

// do issues a JSON request against the server and decodes the response into
// out when non-nil.
func (d *ChromaDriver) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, d.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: sending request: %v", vector.ErrConnection, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		raw, _ := io.ReadAll(resp.Body)
		return d.apiError(resp.StatusCode, raw)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

// apiError maps an error response to a package sentinel where the status or
// message identifies one.
func (d *ChromaDriver) apiError(status int, raw []byte) error {
	message := string(raw)

	if status == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %s", vector.ErrQuotaExhausted, message)
	}
	if status == http.StatusNotFound {
		return fmt.Errorf("%w: %s", vector.ErrNotFound, message)
	}
	if strings.Contains(message, "dimension") {
		return fmt.Errorf("%w: %s", vector.ErrDimensionMismatch, message)
	}

	return fmt.Errorf("chroma returned status %d: %s", status, message)
}

// getOrCreateCollection gets the configured collection or creates it.
func (d *ChromaDriver) getOrCreateCollection(ctx context.Context) (*collectionResponse, error) {
	var collection collectionResponse
	path := fmt.Sprintf("/api/v2/tenants/default_tenant/databases/default_database/collections/%s", d.collectionName)
	if err := d.do(ctx, http.MethodGet, path, nil, &collection); err == nil {
		return &collection, nil
	}

	createPath := "/api/v2/tenants/default_tenant/databases/default_database/collections"
	createBody := map[string]any{"name": d.collectionName}
	if err := d.do(ctx, http.MethodPost, createPath, createBody, &collection); err != nil {
		return nil, err
	}
	return &collection, nil
}

// namespaceFilter builds a where clause matching the namespace. The empty
// namespace is stored and matched like any other value.
func namespaceFilter(namespace string) map[string]any {
	return map[string]any{namespaceKey: map[string]any{"$eq": namespace}}
}

// Upsert stores records in the namespace, replacing records with the same ID.
func (d *ChromaDriver) Upsert(ctx context.Context, namespace string, records []vector.Record) error {
	if len(records) == 0 {
		return nil
	}

	ids := make([]string, len(records))
	embeddings := make([][]float32, len(records))
	metadatas := make([]map[string]any, len(records))
	for i, rec := range records {
		ids[i] = rec.ID
		embeddings[i] = rec.Values

		metadata := map[string]any{namespaceKey: namespace}
		if len(rec.Metadata) > 0 {
			payload, err := json.Marshal(rec.Metadata)
			if err != nil {
				return fmt.Errorf("marshaling metadata for record %s: %w", rec.ID, err)
			}
			metadata[payloadKey] = string(payload)
		}
		metadatas[i] = metadata
	}

	err := d.do(ctx, http.MethodPost, d.collectionPath("/upsert"), upsertRequest{
		IDs:        ids,
		Embeddings: embeddings,
		Metadatas:  metadatas,
	}, nil)
	if err != nil {
		return fmt.Errorf("upserting %d records: %w", len(records), err)
	}

	d.logger.Debug("upserted records to chroma",
		zap.Int("count", len(records)),
		zap.String("namespace", namespace),
	)

	return nil
}

// Query finds the topK most similar records to the given embedding. Chroma
// reports distances; they are converted to similarity scores so higher means
// more similar, matching the other drivers.
func (d *ChromaDriver) Query(ctx context.Context, namespace string, embedding []float32, topK int) ([]vector.Match, error) {
	if topK <= 0 {
		topK = 10
	}

	var resp queryResponse
	err := d.do(ctx, http.MethodPost, d.collectionPath("/query"), queryRequest{
		QueryEmbeddings: [][]float32{embedding},
		NResults:        topK,
		Where:           namespaceFilter(namespace),
		Include:         []string{"metadatas", "distances"},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("querying collection: %w", err)
	}

	if len(resp.IDs) == 0 || len(resp.IDs[0]) == 0 {
		return nil, nil
	}

	ids := resp.IDs[0]
	var distances []float64
	if len(resp.Distances) > 0 {
		distances = resp.Distances[0]
	}
	var metadatas []map[string]any
	if len(resp.Metadatas) > 0 {
		metadatas = resp.Metadatas[0]
	}

	matches := make([]vector.Match, 0, len(ids))
	for i, id := range ids {
		match := vector.Match{ID: id}
		if i < len(distances) {
			match.Score = 1.0 / (1.0 + distances[i])
		}
		if i < len(metadatas) && metadatas[i] != nil {
			meta, err := decodePayload(metadatas[i])
			if err != nil {
				return nil, fmt.Errorf("unmarshaling metadata for record %s: %w", id, err)
			}
			match.Metadata = meta
		}
		matches = append(matches, match)
	}

	d.logger.Debug("queried chroma",
		zap.Int("matches", len(matches)),
		zap.String("namespace", namespace),
	)

	return matches, nil
}

// Fetch retrieves records by their IDs. Missing IDs are omitted.
func (d *ChromaDriver) Fetch(ctx context.Context, namespace string, ids []string) ([]vector.Record, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var resp getResponse
	err := d.do(ctx, http.MethodPost, d.collectionPath("/get"), getRequest{
		IDs:     ids,
		Where:   namespaceFilter(namespace),
		Include: []string{"metadatas", "embeddings"},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("fetching records: %w", err)
	}

	found := make(map[string]vector.Record, len(resp.IDs))
	for i, id := range resp.IDs {
		rec := vector.Record{ID: id}
		if i < len(resp.Embeddings) {
			rec.Values = resp.Embeddings[i]
		}
		if i < len(resp.Metadatas) && resp.Metadatas[i] != nil {
			meta, err := decodePayload(resp.Metadatas[i])
			if err != nil {
				return nil, fmt.Errorf("unmarshaling metadata for record %s: %w", id, err)
			}
			rec.Metadata = meta
		}
		found[id] = rec
	}

	// Preserve the requested order for the ids that were found.
	records := make([]vector.Record, 0, len(found))
	for _, id := range ids {
		if rec, ok := found[id]; ok {
			records = append(records, rec)
		}
	}
	return records, nil
}

// Stats reports the collection dimension and total record count. Chroma
// cannot enumerate namespaces without scanning every record, so the
// per-namespace breakdown is left empty.
func (d *ChromaDriver) Stats(ctx context.Context) (*vector.Stats, error) {
	var collection collectionResponse
	path := fmt.Sprintf("/api/v2/tenants/default_tenant/databases/default_database/collections/%s", d.collectionName)
	if err := d.do(ctx, http.MethodGet, path, nil, &collection); err != nil {
		return nil, fmt.Errorf("describing collection: %w", err)
	}

	var count int
	if err := d.do(ctx, http.MethodGet, d.collectionPath("/count"), nil, &count); err != nil {
		return nil, fmt.Errorf("counting records: %w", err)
	}

	return &vector.Stats{
		Dimension:        collection.Dimension,
		TotalVectorCount: count,
	}, nil
}

// DeleteAll removes every record in the namespace.
func (d *ChromaDriver) DeleteAll(ctx context.Context, namespace string) error {
	err := d.do(ctx, http.MethodPost, d.collectionPath("/delete"), deleteRequest{
		Where: namespaceFilter(namespace),
	}, nil)
	if err != nil {
		return fmt.Errorf("deleting namespace %q: %w", namespace, err)
	}

	d.logger.Debug("cleared chroma namespace",
		zap.String("namespace", namespace),
	)

	return nil
}

// Close releases resources held by the driver.
func (d *ChromaDriver) Close() error {
	// HTTP client doesn't require explicit cleanup
	return nil
}

// decodePayload restores the record's metadata from the reserved payload
// key. Records written without metadata have no payload and decode to nil.
func decodePayload(stored map[string]any) (map[string]any, error) {
	raw, ok := stored[payloadKey].(string)
	if !ok || raw == "" {
		return nil, nil
	}
	var metadata map[string]any
	if err := json.Unmarshal([]byte(raw), &metadata); err != nil {
		return nil, err
	}
	return metadata, nil
}

var _ vector.Index = (*ChromaDriver)(nil)

// Package pinecone provides a Pinecone-backed vector index driver using its
// REST API.
package pinecone

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sumika-ai/sumika/pkg/vector"
)

// PineconeDriver implements vector.Index against a Pinecone index endpoint.
type PineconeDriver struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

// Config holds configuration for the Pinecone driver.
type Config struct {
	// Host is the index host URL, e.g.
	// "https://my-index-abc123.svc.us-east-1.pinecone.io".
	Host string

	// APIKey authenticates requests to the index.
	APIKey string
}

// NewPineconeDriver creates a new Pinecone index driver and verifies
// connectivity by describing the index.
func NewPineconeDriver(c Config, logger *zap.Logger) (*PineconeDriver, error) {
	if c.Host == "" {
		return nil, fmt.Errorf("pinecone host is required")
	}
	if c.APIKey == "" {
		return nil, fmt.Errorf("pinecone api key is required")
	}

	d := &PineconeDriver{
		baseURL: strings.TrimSuffix(c.Host, "/"),
		apiKey:  c.APIKey,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: logger,
	}

	stats, err := d.Stats(context.Background())
	if err != nil {
		return nil, fmt.Errorf("%w: describing index: %v", vector.ErrConnection, err)
	}

	logger.Info("connected to Pinecone",
		zap.String("host", c.Host),
		zap.Int("dimension", stats.Dimension),
		zap.Int("total_vectors", stats.TotalVectorCount),
	)

	return d, nil
}

// do issues a JSON request against the index and decodes the response into
// out when non-nil. API error bodies are mapped to the package sentinels.
func (d *PineconeDriver) do(ctx context.Context, method, path string, body, out any) error {
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
	req.Header.Set("Api-Key", d.apiKey)
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

// apiError maps an API error body to a sentinel error where the status or
// message identifies one.
func (d *PineconeDriver) apiError(status int, raw []byte) error {
	message := string(raw)
	var apiErr errorResponse
	if err := json.Unmarshal(raw, &apiErr); err == nil && apiErr.Message != "" {
		message = apiErr.Message
	}

	if status == http.StatusTooManyRequests || strings.Contains(message, "insufficient_quota") {
		return fmt.Errorf("%w: %s", vector.ErrQuotaExhausted, message)
	}
	if status == http.StatusNotFound {
		return fmt.Errorf("%w: %s", vector.ErrNotFound, message)
	}
	if strings.Contains(message, "dimension") {
		return fmt.Errorf("%w: %s", vector.ErrDimensionMismatch, message)
	}

	return fmt.Errorf("pinecone returned status %d: %s", status, message)
}

// Upsert stores records in the namespace, replacing records with the same ID.
func (d *PineconeDriver) Upsert(ctx context.Context, namespace string, records []vector.Record) error {
	if len(records) == 0 {
		return nil
	}

	var resp upsertResponse
	err := d.do(ctx, http.MethodPost, "/vectors/upsert", upsertRequest{
		Vectors:   records,
		Namespace: namespace,
	}, &resp)
	if err != nil {
		return fmt.Errorf("upserting %d records: %w", len(records), err)
	}

	d.logger.Debug("upserted records to pinecone",
		zap.Int("count", resp.UpsertedCount),
		zap.String("namespace", namespace),
	)

	return nil
}

// Query finds the topK most similar records to the given embedding.
func (d *PineconeDriver) Query(ctx context.Context, namespace string, embedding []float32, topK int) ([]vector.Match, error) {
	if topK <= 0 {
		topK = 10
	}

	var resp queryResponse
	err := d.do(ctx, http.MethodPost, "/query", queryRequest{
		Vector:          embedding,
		TopK:            topK,
		Namespace:       namespace,
		IncludeMetadata: true,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("querying index: %w", err)
	}

	matches := make([]vector.Match, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		matches = append(matches, vector.Match{
			ID:       m.ID,
			Score:    m.Score,
			Metadata: m.Metadata,
		})
	}

	d.logger.Debug("queried pinecone",
		zap.Int("matches", len(matches)),
		zap.String("namespace", namespace),
	)

	return matches, nil
}

// Fetch retrieves records by their IDs. Missing IDs are omitted.
func (d *PineconeDriver) Fetch(ctx context.Context, namespace string, ids []string) ([]vector.Record, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	params := url.Values{}
	for _, id := range ids {
		params.Add("ids", id)
	}
	if namespace != "" {
		params.Set("namespace", namespace)
	}

	var resp fetchResponse
	if err := d.do(ctx, http.MethodGet, "/vectors/fetch?"+params.Encode(), nil, &resp); err != nil {
		return nil, fmt.Errorf("fetching records: %w", err)
	}

	// Preserve the requested order for the ids that were found.
	records := make([]vector.Record, 0, len(resp.Vectors))
	for _, id := range ids {
		if rec, ok := resp.Vectors[id]; ok {
			records = append(records, rec)
		}
	}
	return records, nil
}

// Stats reports the index dimension and per-namespace vector counts.
func (d *PineconeDriver) Stats(ctx context.Context) (*vector.Stats, error) {
	var resp statsResponse
	if err := d.do(ctx, http.MethodPost, "/describe_index_stats", struct{}{}, &resp); err != nil {
		return nil, fmt.Errorf("describing index: %w", err)
	}

	namespaces := make(map[string]int, len(resp.Namespaces))
	for name, ns := range resp.Namespaces {
		namespaces[name] = ns.VectorCount
	}

	return &vector.Stats{
		Dimension:        resp.Dimension,
		TotalVectorCount: resp.TotalVectorCount,
		Namespaces:       namespaces,
		Metric:           resp.Metric,
	}, nil
}

// DeleteAll removes every record in the namespace.
func (d *PineconeDriver) DeleteAll(ctx context.Context, namespace string) error {
	err := d.do(ctx, http.MethodPost, "/vectors/delete", deleteRequest{
		DeleteAll: true,
		Namespace: namespace,
	}, nil)
	if err != nil {
		return fmt.Errorf("deleting namespace %q: %w", namespace, err)
	}

	d.logger.Debug("cleared pinecone namespace",
		zap.String("namespace", namespace),
	)

	return nil
}

// Close releases resources held by the driver.
func (d *PineconeDriver) Close() error {
	// HTTP client doesn't require explicit cleanup
	return nil
}

var _ vector.Index = (*PineconeDriver)(nil)

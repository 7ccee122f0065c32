// Package openai implements pkg/embeddings' Embedder against OpenAI's
// embeddings API.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/sumika-ai/sumika/pkg/embeddings"
	"github.com/sumika-ai/sumika/pkg/vector"
)

const (
	// DefaultEmbeddingModel is the default model used for embeddings.
	DefaultEmbeddingModel = "text-embedding-3-large"

	// DefaultDimensions is the vector length of DefaultEmbeddingModel.
	DefaultDimensions = 3072

	// DefaultBaseURL is the default OpenAI API URL.
	DefaultBaseURL = "https://api.openai.com/v1"

	// maxAttempts bounds retries per embedding request.
	maxAttempts = 3

	// initialRetryDelay is the first backoff interval; it doubles per
	// attempt.
	initialRetryDelay = 1 * time.Second
)

// Embedder wraps OpenAI's embeddings API with bounded retries.
type Embedder struct {
	baseURL    string
	apiKey     string
	model      string
	dimensions int
	retryDelay time.Duration
	httpClient *http.Client
}

// EmbedderConfig holds configuration for the OpenAI embedder.
type EmbedderConfig struct {
	// BaseURL is the API URL. Defaults to DefaultBaseURL if empty.
	BaseURL string

	// APIKey authenticates requests. Required.
	APIKey string

	// Model is the embedding model to use.
	// Defaults to DefaultEmbeddingModel if empty.
	Model string

	// Dimensions is the expected vector length.
	// Defaults to DefaultDimensions if zero.
	Dimensions int

	// RetryDelay is the initial backoff interval between attempts.
	// Defaults to one second if zero.
	RetryDelay time.Duration
}

// embedRequest is the request body for the embeddings API.
type embedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

// embedResponse is the response from the embeddings API.
type embedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Error *apiError `json:"error,omitempty"`
}

// apiError is the error object returned by the API.
type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

// NewEmbedder creates a new embedder using OpenAI's embeddings API.
func NewEmbedder(cfg EmbedderConfig) (*Embedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	model := cfg.Model
	if model == "" {
		model = DefaultEmbeddingModel
	}

	dimensions := cfg.Dimensions
	if dimensions == 0 {
		dimensions = DefaultDimensions
	}

	retryDelay := cfg.RetryDelay
	if retryDelay == 0 {
		retryDelay = initialRetryDelay
	}

	return &Embedder{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      model,
		dimensions: dimensions,
		retryDelay: retryDelay,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}, nil
}

// Embed converts text into a vector embedding. Transient failures are retried
// up to maxAttempts times with exponential backoff; quota exhaustion aborts
// immediately with vector.ErrQuotaExhausted.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	policy := backoff.WithContext(backoff.WithMaxRetries(
		backoff.NewExponentialBackOff(
			backoff.WithInitialInterval(e.retryDelay),
			backoff.WithMultiplier(2),
			backoff.WithRandomizationFactor(0),
		),
		maxAttempts-1,
	), ctx)

	var embedding []float32
	operation := func() error {
		var err error
		embedding, err = e.embedOnce(ctx, text)
		return err
	}

	if err := backoff.Retry(operation, policy); err != nil {
		if errors.Is(err, vector.ErrQuotaExhausted) {
			return nil, err
		}
		return nil, fmt.Errorf("embedding after %d attempts: %w", maxAttempts, err)
	}
	return embedding, nil
}

// embedOnce issues a single embedding request.
func (e *Embedder) embedOnce(ctx context.Context, text string) ([]float32, error) {
	jsonBody, err := json.Marshal(embedRequest{
		Model: e.model,
		Input: text,
	})
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("%w: marshaling request: %v", vector.ErrEmbedding, err))
	}

	req, err := http.NewRequestWithContext(ctx, "POST", e.baseURL+"/embeddings", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("%w: creating request: %v", vector.ErrEmbedding, err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: sending request: %v", vector.ErrEmbedding, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", vector.ErrEmbedding, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, e.statusError(resp.StatusCode, raw)
	}

	var embedResp embedResponse
	if err := json.Unmarshal(raw, &embedResp); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", vector.ErrEmbedding, err)
	}

	if len(embedResp.Data) == 0 {
		return nil, fmt.Errorf("%w: no embeddings returned", vector.ErrEmbedding)
	}

	embedding := embedResp.Data[0].Embedding
	if len(embedding) != e.dimensions {
		return nil, backoff.Permanent(fmt.Errorf("%w: model returned %d dimensions, expected %d",
			vector.ErrDimensionMismatch, len(embedding), e.dimensions))
	}

	return embedding, nil
}

// statusError maps a non-200 response to a retryable or permanent error.
// Quota exhaustion is permanent: retrying a spent account wastes the backoff.
func (e *Embedder) statusError(status int, raw []byte) error {
	message := string(raw)
	var embedResp embedResponse
	if err := json.Unmarshal(raw, &embedResp); err == nil && embedResp.Error != nil {
		message = embedResp.Error.Message
		if embedResp.Error.Code != "" {
			message = embedResp.Error.Code + ": " + message
		}
	}

	if strings.Contains(message, "insufficient_quota") {
		return backoff.Permanent(fmt.Errorf("%w: %s", vector.ErrQuotaExhausted, message))
	}
	if status == http.StatusUnauthorized || status == http.StatusBadRequest {
		return backoff.Permanent(fmt.Errorf("%w: openai returned status %d: %s", vector.ErrEmbedding, status, message))
	}

	return fmt.Errorf("%w: openai returned status %d: %s", vector.ErrEmbedding, status, message)
}

// Dimensions reports the vector length the embedder produces.
func (e *Embedder) Dimensions() int {
	return e.dimensions
}

// Close releases resources held by the embedder.
func (e *Embedder) Close() error {
	// HTTP client doesn't require explicit cleanup
	return nil
}

var _ embeddings.Embedder = (*Embedder)(nil)

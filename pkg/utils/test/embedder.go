package testutils

import (
	"context"
	"fmt"

	"github.com/sumika-ai/sumika/pkg/vector"
)

// MockEmbedder is a test embedder that returns predictable embeddings
type MockEmbedder struct {
	Embeddings map[string][]float32

	// FailCounts maps input text to how many times Embed should fail for
	// it before succeeding. Entries decrement on each failure.
	FailCounts map[string]int

	// QuotaExhausted causes every Embed call to return
	// vector.ErrQuotaExhausted.
	QuotaExhausted bool

	// Calls records every input text passed to Embed, in order.
	Calls []string

	// Dims is the reported dimensionality. Defaults to 3.
	Dims int
}

func NewMockEmbedder() *MockEmbedder {
	return &MockEmbedder{
		Embeddings: make(map[string][]float32),
		FailCounts: make(map[string]int),
	}
}

func (m *MockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	m.Calls = append(m.Calls, text)

	if m.QuotaExhausted {
		return nil, fmt.Errorf("%w: mock quota exhausted", vector.ErrQuotaExhausted)
	}

	if remaining, ok := m.FailCounts[text]; ok && remaining > 0 {
		m.FailCounts[text] = remaining - 1
		return nil, fmt.Errorf("%w: mock embedding failure for: %s", vector.ErrEmbedding, text)
	}

	if emb, ok := m.Embeddings[text]; ok {
		return emb, nil
	}

	// Return a default embedding for any text
	return []float32{0.1, 0.2, 0.3}, nil
}

func (m *MockEmbedder) Dimensions() int {
	if m.Dims == 0 {
		return 3
	}
	return m.Dims
}

func (m *MockEmbedder) Close() error {
	return nil
}

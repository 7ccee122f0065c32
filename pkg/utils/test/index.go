package testutils

import (
	"context"
	"fmt"

	"github.com/sumika-ai/sumika/pkg/vector"
)

// MockIndex is a test vector index that records writes and returns
// configurable query results. Upserts are last-write-wins per id, matching
// real index semantics.
type MockIndex struct {
	// Records accumulates upserted records per namespace, in write order.
	Records map[string][]vector.Record

	// Results is returned by Query for any embedding, truncated to topK.
	Results []vector.Match

	// FailUpserts causes the first N Upsert calls to fail.
	FailUpserts int

	// UpsertCalls counts Upsert invocations, including failed ones.
	UpsertCalls int

	// QueryCalls counts Query invocations.
	QueryCalls int

	// ClearedNamespaces records DeleteAll targets in order.
	ClearedNamespaces []string

	// StatsResult is returned by Stats when non-nil.
	StatsResult *vector.Stats
}

func NewMockIndex() *MockIndex {
	return &MockIndex{
		Records: make(map[string][]vector.Record),
	}
}

func (m *MockIndex) Upsert(_ context.Context, namespace string, records []vector.Record) error {
	m.UpsertCalls++
	if m.FailUpserts > 0 {
		m.FailUpserts--
		return fmt.Errorf("%w: mock upsert failure", vector.ErrConnection)
	}
	for _, rec := range records {
		replaced := false
		for i, existing := range m.Records[namespace] {
			if existing.ID == rec.ID {
				m.Records[namespace][i] = rec
				replaced = true
				break
			}
		}
		if !replaced {
			m.Records[namespace] = append(m.Records[namespace], rec)
		}
	}
	return nil
}

func (m *MockIndex) Query(_ context.Context, _ string, _ []float32, topK int) ([]vector.Match, error) {
	m.QueryCalls++
	if len(m.Results) < topK {
		return m.Results, nil
	}
	return m.Results[:topK], nil
}

func (m *MockIndex) Fetch(_ context.Context, namespace string, ids []string) ([]vector.Record, error) {
	var found []vector.Record
	for _, id := range ids {
		for _, rec := range m.Records[namespace] {
			if rec.ID == id {
				found = append(found, rec)
				break
			}
		}
	}
	return found, nil
}

func (m *MockIndex) Stats(_ context.Context) (*vector.Stats, error) {
	if m.StatsResult != nil {
		return m.StatsResult, nil
	}

	namespaces := make(map[string]int, len(m.Records))
	total := 0
	for ns, records := range m.Records {
		namespaces[ns] = len(records)
		total += len(records)
	}
	return &vector.Stats{
		TotalVectorCount: total,
		Namespaces:       namespaces,
	}, nil
}

func (m *MockIndex) DeleteAll(_ context.Context, namespace string) error {
	m.ClearedNamespaces = append(m.ClearedNamespaces, namespace)
	delete(m.Records, namespace)
	return nil
}

func (m *MockIndex) Close() error {
	return nil
}

// AllIDs returns the ids upserted into the namespace, in write order.
func (m *MockIndex) AllIDs(namespace string) []string {
	ids := make([]string, 0, len(m.Records[namespace]))
	for _, rec := range m.Records[namespace] {
		ids = append(ids, rec.ID)
	}
	return ids
}

package pinecone

import "github.com/sumika-ai/sumika/pkg/vector"

// upsertRequest is the request body for /vectors/upsert.
type upsertRequest struct {
	Vectors   []vector.Record `json:"vectors"`
	Namespace string          `json:"namespace,omitempty"`
}

// upsertResponse is the response from /vectors/upsert.
type upsertResponse struct {
	UpsertedCount int `json:"upsertedCount"`
}

// queryRequest is the request body for /query.
type queryRequest struct {
	Vector          []float32 `json:"vector"`
	TopK            int       `json:"topK"`
	Namespace       string    `json:"namespace,omitempty"`
	IncludeMetadata bool      `json:"includeMetadata"`
	IncludeValues   bool      `json:"includeValues"`
}

// queryResponse is the response from /query.
type queryResponse struct {
	Matches []queryMatch `json:"matches"`
}

// queryMatch is a single match in a query response.
type queryMatch struct {
	ID       string         `json:"id"`
	Score    float64        `json:"score"`
	Values   []float32      `json:"values,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// fetchResponse is the response from /vectors/fetch.
type fetchResponse struct {
	Vectors   map[string]vector.Record `json:"vectors"`
	Namespace string                   `json:"namespace"`
}

// deleteRequest is the request body for /vectors/delete.
type deleteRequest struct {
	IDs       []string `json:"ids,omitempty"`
	DeleteAll bool     `json:"deleteAll,omitempty"`
	Namespace string   `json:"namespace,omitempty"`
}

// statsResponse is the response from /describe_index_stats.
type statsResponse struct {
	Dimension        int                       `json:"dimension"`
	TotalVectorCount int                       `json:"totalVectorCount"`
	Namespaces       map[string]namespaceStats `json:"namespaces"`
	Metric           string                    `json:"metric,omitempty"`
}

// namespaceStats is the per-namespace summary in a stats response.
type namespaceStats struct {
	VectorCount int `json:"vectorCount"`
}

// errorResponse is the error body returned by the index API.
type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

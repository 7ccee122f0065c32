package chroma

// collectionResponse represents a Chroma collection.
type collectionResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Dimension int    `json:"dimension"`
}

// upsertRequest is the request body for upserting records.
type upsertRequest struct {
	IDs        []string         `json:"ids"`
	Embeddings [][]float32      `json:"embeddings"`
	Metadatas  []map[string]any `json:"metadatas,omitempty"`
}

// queryRequest is the request body for a similarity query.
type queryRequest struct {
	QueryEmbeddings [][]float32    `json:"query_embeddings"`
	NResults        int            `json:"n_results"`
	Where           map[string]any `json:"where,omitempty"`
	Include         []string       `json:"include"`
}

// queryResponse is the response from a similarity query. The outer slice is
// per query embedding; we always send exactly one.
type queryResponse struct {
	IDs       [][]string         `json:"ids"`
	Distances [][]float64        `json:"distances"`
	Metadatas [][]map[string]any `json:"metadatas"`
}

// getRequest is the request body for fetching records by id.
type getRequest struct {
	IDs     []string       `json:"ids"`
	Where   map[string]any `json:"where,omitempty"`
	Include []string       `json:"include"`
}

// getResponse is the response from fetching records.
type getResponse struct {
	IDs        []string         `json:"ids"`
	Metadatas  []map[string]any `json:"metadatas"`
	Embeddings [][]float32      `json:"embeddings"`
}

// deleteRequest is the request body for deleting records.
type deleteRequest struct {
	IDs   []string       `json:"ids,omitempty"`
	Where map[string]any `json:"where,omitempty"`
}

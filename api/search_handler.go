package api

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/sumika-ai/sumika/pkg/vector"
)

// SearchRequest is the body of POST /v1/search.
type SearchRequest struct {
	// Query is the search query text.
	Query string `json:"query"`

	// Variants are optional query rewrites searched alongside the query.
	Variants []string `json:"variants,omitempty"`

	// TopK overrides the server's default result count.
	TopK int `json:"top_k,omitempty"`

	// Threshold overrides the server's default minimum score.
	Threshold float64 `json:"threshold,omitempty"`

	// Namespace overrides the server's default namespace.
	Namespace string `json:"namespace,omitempty"`
}

// SearchResponse is the assembled context for a search request.
type SearchResponse struct {
	Query      string         `json:"query"`
	Context    string         `json:"context"`
	Details    []vector.Match `json:"details"`
	TokenCount int            `json:"token_count,omitempty"`
	Count      int            `json:"count"`
}

// handleSearch handles POST /v1/search requests.
func (s *Server) handleSearch(c *fiber.Ctx) error {
	var req SearchRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}
	if req.Query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "query is required"})
	}
	if req.TopK < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "top_k must be a positive integer"})
	}

	topK := req.TopK
	if topK == 0 {
		topK = s.config.TopK
	}
	threshold := req.Threshold
	if threshold == 0 {
		threshold = s.config.Threshold
	}

	result, err := s.retriever.GetContext(
		c.Context(),
		req.Query,
		req.Variants,
		topK,
		threshold,
		s.namespaceOr(req.Namespace),
	)
	if err != nil {
		s.logger.Error("search failed",
			zap.String("query", req.Query),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: err.Error()})
	}

	return c.JSON(SearchResponse{
		Query:      req.Query,
		Context:    result.Text,
		Details:    result.Details,
		TokenCount: result.TokenCount,
		Count:      len(result.Details),
	})
}

package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
)

var (
	searchToolName    = "search"
	searchDescription = "Search the neighborhood knowledge index using semantic search. Returns the most relevant facts for the query, including facility metadata such as category, location, and walking distance."
)

// SearchInput represents the input arguments for the search tool.
type SearchInput struct {
	Query    string   `json:"query" jsonschema:"the search query text to find relevant neighborhood information"`
	Variants []string `json:"variants,omitempty" jsonschema:"optional rewrites of the query searched alongside it"`
	TopK     int      `json:"top_k,omitempty" jsonschema:"number of results to return (default: 5)"`
}

// SearchResult represents a single search result.
type SearchResult struct {
	ID       string         `json:"id"`
	Score    float64        `json:"score"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// SearchOutput represents the output of the search tool.
type SearchOutput struct {
	Query   string         `json:"query"`
	Context string         `json:"context"`
	Results []SearchResult `json:"results"`
	Count   int            `json:"count"`
}

// handleSearch processes a search request.
func (s *Server) handleSearch(ctx context.Context, req *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, SearchOutput, error) {
	logger := s.config.Logger

	topK := input.TopK
	if topK <= 0 {
		topK = s.config.TopK
	}

	logger.Debug("MCP search request",
		zap.String("query", input.Query),
		zap.Int("topK", topK),
	)

	result, err := s.config.Retriever.GetContext(
		ctx,
		input.Query,
		input.Variants,
		topK,
		s.config.Threshold,
		s.config.Namespace,
	)
	if err != nil {
		logger.Error("failed to search index", zap.Error(err))
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("Failed to search index: %v", err)},
			},
		}, SearchOutput{}, nil
	}

	results := make([]SearchResult, 0, len(result.Details))
	for _, match := range result.Details {
		text, _ := match.Metadata["text"].(string)
		results = append(results, SearchResult{
			ID:       match.ID,
			Score:    match.Score,
			Text:     text,
			Metadata: match.Metadata,
		})
	}

	output := SearchOutput{
		Query:   input.Query,
		Context: result.Text,
		Results: results,
		Count:   len(results),
	}

	// Serialize the structured output as JSON for the text field
	// Per MCP spec: tools returning structured content should also return
	// serialized JSON in a TextContent block for backwards compatibility
	jsonBytes, err := json.Marshal(output)
	if err != nil {
		logger.Error("failed to marshal search output", zap.Error(err))
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("Failed to serialize results: %v", err)},
			},
		}, SearchOutput{}, nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(jsonBytes)},
		},
	}, output, nil
}

package api

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/sumika-ai/sumika/pkg/chunk"
	"github.com/sumika-ai/sumika/pkg/eventstream"
	"github.com/sumika-ai/sumika/pkg/ingest"
	"github.com/sumika-ai/sumika/pkg/vector"
)

// TextUploadRequest is the body of POST /v1/documents/text.
type TextUploadRequest struct {
	// Text is the raw document content.
	Text string `json:"text"`

	// Separators split the text into chunks, applied in order. Empty
	// means the whole text becomes one chunk.
	Separators []string `json:"separators,omitempty"`

	// Metadata is attached to every chunk produced from this document.
	Metadata chunk.Metadata `json:"metadata,omitempty"`

	// Namespace overrides the server's default namespace.
	Namespace string `json:"namespace,omitempty"`
}

// UploadResponse reports the outcome of a document upload.
type UploadResponse struct {
	Chunks   int      `json:"chunks"`
	Upserted []string `json:"upserted"`
	Failed   []string `json:"failed,omitempty"`
	Rejected []string `json:"rejected_rows,omitempty"`
}

// StatsResponse reports index-level statistics.
type StatsResponse struct {
	Dimension        int            `json:"dimension"`
	TotalVectorCount int            `json:"total_vector_count"`
	Namespaces       map[string]int `json:"namespaces"`
	Metric           string         `json:"metric,omitempty"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleStats returns index statistics.
func (s *Server) handleStats(c *fiber.Ctx) error {
	stats, err := s.config.Index.Stats(c.Context())
	if err != nil {
		s.logger.Error("failed to fetch index stats", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to fetch index stats"})
	}

	return c.JSON(StatsResponse{
		Dimension:        stats.Dimension,
		TotalVectorCount: stats.TotalVectorCount,
		Namespaces:       stats.Namespaces,
		Metric:           stats.Metric,
	})
}

// handleUploadText segments a text document and writes it to the index.
func (s *Server) handleUploadText(c *fiber.Ctx) error {
	var req TextUploadRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}
	if req.Text == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "text is required"})
	}
	if err := req.Metadata.Validate(chunk.DefaultTaxonomy); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
	}

	chunks := chunk.Segment(req.Text, req.Separators)
	if len(chunks) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "text produced no chunks"})
	}
	for i := range chunks {
		meta := req.Metadata
		meta.Source = "text"
		chunks[i].Metadata = meta
	}

	return s.upsertChunks(c, s.namespaceOr(req.Namespace), chunks, nil)
}

// handleUploadCSV imports a facility CSV posted as the raw request body
// and writes it to the index. The namespace query parameter overrides the
// server default.
func (s *Server) handleUploadCSV(c *fiber.Ctx) error {
	body := c.Body()
	if len(body) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "request body is required"})
	}

	report, err := ingest.ImportCSV(body, chunk.NewSessionID(), s.logger)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
	}

	rejected := make([]string, 0, len(report.Errors))
	for _, re := range report.Errors {
		rejected = append(rejected, re.Error())
	}

	return s.upsertChunks(c, s.namespaceOr(c.Query("namespace")), report.Chunks, rejected)
}

// upsertChunks runs the shared write path for both upload handlers and
// publishes the resulting index event.
func (s *Server) upsertChunks(c *fiber.Ctx, namespace string, chunks []chunk.Chunk, rejected []string) error {
	report, err := s.writer.Upsert(c.Context(), namespace, chunks, s.config.BatchSize)
	if err != nil {
		if errors.Is(err, vector.ErrQuotaExhausted) {
			return c.Status(fiber.StatusTooManyRequests).JSON(ErrorResponse{Error: "embedding quota exhausted"})
		}
		s.logger.Error("upload failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: err.Error()})
	}

	s.publishEvent(c.Context(), eventstream.NewChunksUpsertedEvent(namespace, report.Upserted, report.Failed))

	return c.JSON(UploadResponse{
		Chunks:   len(chunks),
		Upserted: report.Upserted,
		Failed:   report.Failed,
		Rejected: rejected,
	})
}

// handleClear removes every vector in the requested namespace.
func (s *Server) handleClear(c *fiber.Ctx) error {
	namespace := s.namespaceOr(c.Query("namespace"))

	if err := s.config.Index.DeleteAll(c.Context(), namespace); err != nil {
		s.logger.Error("failed to clear namespace",
			zap.String("namespace", namespace),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to clear namespace"})
	}

	s.publishEvent(c.Context(), eventstream.NewIndexClearedEvent(namespace))

	return c.JSON(map[string]any{
		"namespace": namespace,
		"cleared":   true,
	})
}

// publishEvent publishes an index event if a publisher is configured.
// Publication failures are logged, never surfaced to the client.
func (s *Server) publishEvent(ctx context.Context, event *eventstream.IndexEvent) {
	if s.config.Publisher == nil {
		return
	}
	if err := s.config.Publisher.PublishIndexEvent(ctx, event); err != nil {
		s.logger.Warn("failed to publish index event",
			zap.String("event_type", event.EventType),
			zap.Error(err),
		)
	}
}

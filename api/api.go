package api

import (
	"errors"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	apimcp "github.com/sumika-ai/sumika/api/mcp"
	"github.com/sumika-ai/sumika/pkg/retriever"
	"github.com/sumika-ai/sumika/pkg/writer"
)

// Server is the API server for the retrieval index.
type Server struct {
	config    Config
	retriever *retriever.Retriever
	writer    *writer.Writer
	logger    *zap.Logger
	app       *fiber.App
}

// NewServer creates a new API server. The embedder and index are injected
// so they can be shared with other components.
func NewServer(c Config, logger *zap.Logger) (*Server, error) {
	if c.Embedder == nil {
		return nil, errors.New("embedder is required")
	}
	if c.Index == nil {
		return nil, errors.New("vector index is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}
	if c.TopK <= 0 {
		c.TopK = retriever.DefaultTopK
	}
	if c.Threshold <= 0 {
		c.Threshold = retriever.DefaultThreshold
	}
	if c.BatchSize <= 0 {
		c.BatchSize = writer.DefaultBatchSize
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config:    c,
		retriever: retriever.NewRetriever(c.Embedder, c.Index, c.Counter, logger),
		writer:    writer.NewWriter(c.Embedder, c.Index, writer.Config{}, logger),
		logger:    logger,
		app:       app,
	}

	app.Get("/ping", s.handlePing)
	app.Get("/v1/stats", s.handleStats)
	app.Post("/v1/search", s.handleSearch)
	app.Post("/v1/documents/text", s.handleUploadText)
	app.Post("/v1/documents/csv", s.handleUploadCSV)
	app.Delete("/v1/vectors", s.handleClear)

	mcpServer, err := apimcp.NewServer(apimcp.Config{
		Retriever: s.retriever,
		Namespace: c.Namespace,
		TopK:      c.TopK,
		Threshold: c.Threshold,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}
	app.All("/mcp", adaptor.HTTPHandler(mcpServer.Handler()))

	return s, nil
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		zap.String("listen", s.config.ListenAddr),
		zap.String("namespace", s.config.Namespace),
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// namespaceOr resolves the effective namespace for a request.
func (s *Server) namespaceOr(requested string) string {
	if requested != "" {
		return requested
	}
	return s.config.Namespace
}

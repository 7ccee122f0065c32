// Package servecmder provides the serve command for running the sumika API
// server.
package servecmder

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/sumika-ai/sumika/api"
	"github.com/sumika-ai/sumika/pkg/config"
	embeddingutils "github.com/sumika-ai/sumika/pkg/embeddings/utils"
	eventstreamutils "github.com/sumika-ai/sumika/pkg/eventstream/utils"
	"github.com/sumika-ai/sumika/pkg/logger"
	"github.com/sumika-ai/sumika/pkg/tokens"
	"github.com/sumika-ai/sumika/pkg/vector"
	vectorutils "github.com/sumika-ai/sumika/pkg/vector/utils"
)

type ServeCommander struct {
	listen         string
	namespace      string
	vectorProvider string
	vectorTarget   string
	vectorAPIKey   string
	embedProvider  string
	embedTarget    string
	embedAPIKey    string
	embedModel     string
	embedDims      int
	topK           int
	threshold      float64
	batchSize      int

	viper  *viper.Viper
	debug  bool
	logger *zap.Logger
}

// serveFlags defines this command's flags once, keyed by registry constants.
var serveFlags = config.FlagSet{
	config.FlagAPIListen: {
		Name: "listen", Shorthand: "l",
		ViperKey:    "api.listen",
		Description: "Address for the API server to listen on",
	},
	config.FlagNamespace: {
		Name: "namespace", Shorthand: "n",
		ViperKey:    "vector_store.namespace",
		Description: "Default index namespace",
	},
	config.FlagVectorStoreProv: {
		Name:        "vector-store-provider",
		ViperKey:    "vector_store.provider",
		Description: "Vector store provider (pinecone, sqlite-vec, chroma)",
	},
	config.FlagVectorStoreTgt: {
		Name:        "vector-store-target",
		ViperKey:    "vector_store.target",
		Description: "Vector store host URL or database path",
	},
	config.FlagVectorStoreKey: {
		Name:        "vector-store-api-key",
		ViperKey:    "vector_store.api_key",
		Description: "Vector store API key",
	},
	config.FlagEmbeddingProv: {
		Name:        "embedding-provider",
		ViperKey:    "embedding.provider",
		Description: "Embedding provider (openai, ollama)",
	},
	config.FlagEmbeddingTgt: {
		Name:        "embedding-target",
		ViperKey:    "embedding.target",
		Description: "Embedding provider base URL",
	},
	config.FlagEmbeddingKey: {
		Name:        "embedding-api-key",
		ViperKey:    "embedding.api_key",
		Description: "Embedding provider API key",
	},
	config.FlagEmbeddingModel: {
		Name:        "embedding-model",
		ViperKey:    "embedding.model",
		Description: "Embedding model name",
	},
	config.FlagEmbeddingDims: {
		Name:        "embedding-dimensions",
		ViperKey:    "embedding.dimensions",
		Description: "Embedding vector dimensionality",
	},
	config.FlagTopK: {
		Name: "top-k", Shorthand: "k",
		ViperKey:    "search.top_k",
		Description: "Default number of search results",
	},
	config.FlagThreshold: {
		Name:        "threshold",
		ViperKey:    "search.threshold",
		Description: "Default minimum similarity score",
	},
	config.FlagBatchSize: {
		Name:        "batch-size",
		ViperKey:    "ingest.batch_size",
		Description: "Upsert batch size for uploads",
	},
}

var serveFlagKeys = []string{
	config.FlagAPIListen,
	config.FlagNamespace,
	config.FlagVectorStoreProv,
	config.FlagVectorStoreTgt,
	config.FlagVectorStoreKey,
	config.FlagEmbeddingProv,
	config.FlagEmbeddingTgt,
	config.FlagEmbeddingKey,
	config.FlagEmbeddingModel,
	config.FlagEmbeddingDims,
	config.FlagTopK,
	config.FlagThreshold,
	config.FlagBatchSize,
}

const serveLongDesc string = `Run the sumika API server.

The server exposes document upload, semantic search, index statistics, and
an MCP endpoint at /mcp. Configuration comes from flags, SUMIKA_* environment
variables, and the config.toml in the .sumika/ directory, in that order.

Examples:
  sumika serve
  sumika serve --listen :9090 --namespace yokohama
  SUMIKA_EMBEDDING_API_KEY=sk-... sumika serve`

const serveShortDesc string = "Run the sumika API server"

func NewServeCmd() *cobra.Command {
	cmder := &ServeCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(configDir)
			if err != nil {
				return err
			}
			config.BindRegisteredFlags(v, cmd, serveFlags, serveFlagKeys)
			cmder.viper = v
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %v", err)
			}
			cmder.resolve()
			return cmder.run()
		},
	}

	config.AddStringFlag(cmd, serveFlags, config.FlagAPIListen, &cmder.listen)
	config.AddStringFlag(cmd, serveFlags, config.FlagNamespace, &cmder.namespace)
	config.AddStringFlag(cmd, serveFlags, config.FlagVectorStoreProv, &cmder.vectorProvider)
	config.AddStringFlag(cmd, serveFlags, config.FlagVectorStoreTgt, &cmder.vectorTarget)
	config.AddStringFlag(cmd, serveFlags, config.FlagVectorStoreKey, &cmder.vectorAPIKey)
	config.AddStringFlag(cmd, serveFlags, config.FlagEmbeddingProv, &cmder.embedProvider)
	config.AddStringFlag(cmd, serveFlags, config.FlagEmbeddingTgt, &cmder.embedTarget)
	config.AddStringFlag(cmd, serveFlags, config.FlagEmbeddingKey, &cmder.embedAPIKey)
	config.AddStringFlag(cmd, serveFlags, config.FlagEmbeddingModel, &cmder.embedModel)
	config.AddIntFlag(cmd, serveFlags, config.FlagEmbeddingDims, &cmder.embedDims)
	config.AddIntFlag(cmd, serveFlags, config.FlagTopK, &cmder.topK)
	config.AddFloat64Flag(cmd, serveFlags, config.FlagThreshold, &cmder.threshold)
	config.AddIntFlag(cmd, serveFlags, config.FlagBatchSize, &cmder.batchSize)

	return cmd
}

// resolve reads the final values out of viper after flag binding so env
// vars and config file values apply when a flag was not passed.
func (c *ServeCommander) resolve() {
	v := c.viper
	if v == nil {
		return
	}
	c.listen = v.GetString("api.listen")
	c.namespace = v.GetString("vector_store.namespace")
	c.vectorProvider = v.GetString("vector_store.provider")
	c.vectorTarget = v.GetString("vector_store.target")
	c.vectorAPIKey = v.GetString("vector_store.api_key")
	c.embedProvider = v.GetString("embedding.provider")
	c.embedTarget = v.GetString("embedding.target")
	c.embedAPIKey = v.GetString("embedding.api_key")
	c.embedModel = v.GetString("embedding.model")
	c.embedDims = v.GetInt("embedding.dimensions")
	c.topK = v.GetInt("search.top_k")
	c.threshold = v.GetFloat64("search.threshold")
	c.batchSize = v.GetInt("ingest.batch_size")
}

func (c *ServeCommander) run() error {
	c.logger = logger.NewLogger(c.debug)
	defer func() { _ = c.logger.Sync() }()

	embedder, err := embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{
		ProviderType: c.embedProvider,
		TargetURL:    c.embedTarget,
		APIKey:       c.embedAPIKey,
		Model:        c.embedModel,
		Dimensions:   c.embedDims,
	})
	if err != nil {
		return fmt.Errorf("creating embedder: %w", err)
	}
	defer embedder.Close()

	index, err := vectorutils.NewIndex(&vectorutils.NewIndexOpts{
		ProviderType: c.vectorProvider,
		Target:       c.vectorTarget,
		APIKey:       c.vectorAPIKey,
		Dimensions:   c.embedDims,
		Logger:       c.logger,
	})
	if err != nil {
		return fmt.Errorf("creating vector index: %w", err)
	}
	defer index.Close()

	if err := vector.ValidateDimensions(context.Background(), index, embedder.Dimensions()); err != nil {
		return err
	}

	publisher, err := eventstreamutils.NewPublisher(&eventstreamutils.NewPublisherOpts{
		ProviderType: c.viper.GetString("events.provider"),
		Brokers:      c.viper.GetStringSlice("events.brokers"),
		Topic:        c.viper.GetString("events.topic"),
		Logger:       c.logger,
	})
	if err != nil {
		return fmt.Errorf("creating event publisher: %w", err)
	}
	defer publisher.Close()

	counter, err := tokens.NewCounter(c.viper.GetString("chat.model"))
	if err != nil {
		c.logger.Warn("token counting disabled", zap.Error(err))
	}

	serverConfig := api.Config{
		ListenAddr: c.listen,
		Namespace:  c.namespace,
		Embedder:   embedder,
		Index:      index,
		Publisher:  publisher,
		TopK:       c.topK,
		Threshold:  c.threshold,
		BatchSize:  c.batchSize,
	}
	if err == nil {
		serverConfig.Counter = counter
	}

	server, err := api.NewServer(serverConfig, c.logger)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	errChan := make(chan error, 1)
	go func() {
		if err := server.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		return server.Shutdown()
	}
}

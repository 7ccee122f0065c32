package config

const (
	defaultAPIListen       = ":8081"
	defaultClientAPITarget = "http://localhost:8081"

	defaultVectorProvider = "sqlite-vec"

	defaultEmbeddingProvider   = "openai"
	defaultEmbeddingModel      = "text-embedding-3-large"
	defaultEmbeddingDimensions = 3072

	defaultChatProvider     = "openai"
	defaultChatModel        = "gpt-4o-mini"
	defaultMaxHistoryTokens = 10000

	defaultSearchTopK      = 5
	defaultSearchThreshold = 0.4
	defaultSearchAdvanced  = true

	defaultIngestBatchSize = 50

	defaultEventsProvider = "none"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		Client: ClientConfig{
			APITarget: defaultClientAPITarget,
		},
		VectorStore: VectorStoreConfig{
			Provider: defaultVectorProvider,
		},
		Embedding: EmbeddingConfig{
			Provider:   defaultEmbeddingProvider,
			Model:      defaultEmbeddingModel,
			Dimensions: defaultEmbeddingDimensions,
		},
		Chat: ChatConfig{
			Provider:         defaultChatProvider,
			Model:            defaultChatModel,
			MaxHistoryTokens: defaultMaxHistoryTokens,
		},
		Search: SearchConfig{
			TopK:      defaultSearchTopK,
			Threshold: defaultSearchThreshold,
			Advanced:  defaultSearchAdvanced,
		},
		Ingest: IngestConfig{
			BatchSize: defaultIngestBatchSize,
		},
		Events: EventsConfig{
			Provider: defaultEventsProvider,
		},
	}
}

package chatcmder

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sumika-ai/sumika/pkg/config"
	"github.com/sumika-ai/sumika/pkg/vector"
)

func TestChatCmd(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Chat Cmd Suite")
}

var _ = Describe("chatCommander", func() {
	It("fails at startup when the index dimension disagrees with the embedder", func() {
		// Pinecone index declaring 8 dimensions against a 4-dimension
		// embedding config.
		indexServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{
				"dimension":        8,
				"totalVectorCount": 0,
			})
		}))
		defer indexServer.Close()

		embedServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			Fail("no embedding request should be made before dimension validation")
		}))
		defer embedServer.Close()

		cmder := &chatCommander{
			question: "nearest station",
			cfg: &config.Config{
				Embedding: config.EmbeddingConfig{
					Provider:   "openai",
					Target:     embedServer.URL,
					APIKey:     "k",
					Model:      "text-embedding-3-small",
					Dimensions: 4,
				},
				VectorStore: config.VectorStoreConfig{
					Provider: "pinecone",
					Target:   indexServer.URL,
					APIKey:   "k",
				},
			},
		}

		err := cmder.run()
		Expect(err).To(MatchError(vector.ErrDimensionMismatch))
	})
})

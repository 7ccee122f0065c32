package openai_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sumika-ai/sumika/pkg/embeddings/openai"
	"github.com/sumika-ai/sumika/pkg/vector"
)

func TestOpenAI(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "OpenAI Embedder Suite")
}

func embedBody(embedding []float32) map[string]any {
	return map[string]any{
		"data": []map[string]any{{"embedding": embedding}},
	}
}

var _ = Describe("Embedder", func() {
	newEmbedder := func(url string) *openai.Embedder {
		embedder, err := openai.NewEmbedder(openai.EmbedderConfig{
			BaseURL:    url,
			APIKey:     "test-key",
			Dimensions: 4,
			RetryDelay: 5 * time.Millisecond,
		})
		Expect(err).NotTo(HaveOccurred())
		return embedder
	}

	It("requires an api key", func() {
		_, err := openai.NewEmbedder(openai.EmbedderConfig{})
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("api key is required"))
	})

	It("returns the embedding and sends the bearer token", func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			Expect(r.Header.Get("Authorization")).To(Equal("Bearer test-key"))
			Expect(r.URL.Path).To(Equal("/embeddings"))
			json.NewEncoder(w).Encode(embedBody([]float32{0.1, 0.2, 0.3, 0.4}))
		}))
		defer server.Close()

		embedding, err := newEmbedder(server.URL).Embed(context.Background(), "hello")
		Expect(err).NotTo(HaveOccurred())
		Expect(embedding).To(Equal([]float32{0.1, 0.2, 0.3, 0.4}))
	})

	It("retries transient failures and succeeds", func() {
		var attempts atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if attempts.Add(1) <= 2 {
				http.Error(w, "service unavailable", http.StatusServiceUnavailable)
				return
			}
			json.NewEncoder(w).Encode(embedBody([]float32{1, 0, 0, 0}))
		}))
		defer server.Close()

		embedding, err := newEmbedder(server.URL).Embed(context.Background(), "hello")
		Expect(err).NotTo(HaveOccurred())
		Expect(embedding).To(HaveLen(4))
		Expect(attempts.Load()).To(Equal(int32(3)))
	})

	It("gives up after three attempts", func() {
		var attempts atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			attempts.Add(1)
			http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		}))
		defer server.Close()

		_, err := newEmbedder(server.URL).Embed(context.Background(), "hello")
		Expect(err).To(MatchError(vector.ErrEmbedding))
		Expect(err.Error()).To(ContainSubstring("after 3 attempts"))
		Expect(attempts.Load()).To(Equal(int32(3)))
	})

	It("does not retry quota exhaustion", func() {
		var attempts atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			attempts.Add(1)
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]any{
					"message": "You exceeded your current quota",
					"type":    "insufficient_quota",
					"code":    "insufficient_quota",
				},
			})
		}))
		defer server.Close()

		_, err := newEmbedder(server.URL).Embed(context.Background(), "hello")
		Expect(err).To(MatchError(vector.ErrQuotaExhausted))
		Expect(attempts.Load()).To(Equal(int32(1)))
	})

	It("does not retry authentication failures", func() {
		var attempts atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			attempts.Add(1)
			http.Error(w, "invalid api key", http.StatusUnauthorized)
		}))
		defer server.Close()

		_, err := newEmbedder(server.URL).Embed(context.Background(), "hello")
		Expect(err).To(MatchError(vector.ErrEmbedding))
		Expect(attempts.Load()).To(Equal(int32(1)))
	})

	It("rejects embeddings with the wrong dimensionality", func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(embedBody([]float32{1, 0}))
		}))
		defer server.Close()

		_, err := newEmbedder(server.URL).Embed(context.Background(), "hello")
		Expect(err).To(MatchError(vector.ErrDimensionMismatch))
	})

	It("reports its configured dimensions", func() {
		embedder, err := openai.NewEmbedder(openai.EmbedderConfig{APIKey: "k"})
		Expect(err).NotTo(HaveOccurred())
		Expect(embedder.Dimensions()).To(Equal(openai.DefaultDimensions))
	})
})

package pinecone_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/sumika-ai/sumika/pkg/vector"
	"github.com/sumika-ai/sumika/pkg/vector/pinecone"
)

func TestPinecone(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Pinecone Suite")
}

// statsHandler answers /describe_index_stats so the constructor's
// connectivity check passes.
func statsHandler(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"dimension":        4,
		"totalVectorCount": 2,
		"namespaces": map[string]any{
			"properties": map[string]any{"vectorCount": 2},
		},
	})
}

var _ = Describe("PineconeDriver", func() {
	var logger *zap.Logger

	BeforeEach(func() {
		logger = zap.NewNop()
	})

	Describe("NewPineconeDriver", func() {
		It("returns an error when host is empty", func() {
			_, err := pinecone.NewPineconeDriver(pinecone.Config{APIKey: "k"}, logger)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("host is required"))
		})

		It("returns an error when api key is empty", func() {
			_, err := pinecone.NewPineconeDriver(pinecone.Config{Host: "http://localhost"}, logger)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("api key is required"))
		})

		It("verifies connectivity by describing the index", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				Expect(r.Header.Get("Api-Key")).To(Equal("secret"))
				Expect(r.URL.Path).To(Equal("/describe_index_stats"))
				statsHandler(w)
			}))
			defer server.Close()

			driver, err := pinecone.NewPineconeDriver(pinecone.Config{
				Host:   server.URL,
				APIKey: "secret",
			}, logger)
			Expect(err).NotTo(HaveOccurred())
			Expect(driver).NotTo(BeNil())
		})

		It("wraps connection failures in ErrConnection", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			}))
			defer server.Close()

			_, err := pinecone.NewPineconeDriver(pinecone.Config{
				Host:   server.URL,
				APIKey: "secret",
			}, logger)
			Expect(err).To(MatchError(vector.ErrConnection))
		})
	})

	Describe("Query", func() {
		It("returns matches in order with metadata attached", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path == "/describe_index_stats" {
					statsHandler(w)
					return
				}
				Expect(r.URL.Path).To(Equal("/query"))

				var req map[string]any
				Expect(json.NewDecoder(r.Body).Decode(&req)).To(Succeed())
				Expect(req["namespace"]).To(Equal("properties"))
				Expect(req["topK"]).To(BeEquivalentTo(2))
				Expect(req["includeMetadata"]).To(Equal(true))

				json.NewEncoder(w).Encode(map[string]any{
					"matches": []map[string]any{
						{"id": "chunk_0_a", "score": 0.91, "metadata": map[string]any{"city": "Osaka"}},
						{"id": "chunk_1_a", "score": 0.72},
					},
				})
			}))
			defer server.Close()

			driver, err := pinecone.NewPineconeDriver(pinecone.Config{Host: server.URL, APIKey: "k"}, logger)
			Expect(err).NotTo(HaveOccurred())

			matches, err := driver.Query(context.Background(), "properties", []float32{1, 0, 0, 0}, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(matches).To(HaveLen(2))
			Expect(matches[0].ID).To(Equal("chunk_0_a"))
			Expect(matches[0].Score).To(BeNumerically("~", 0.91, 1e-9))
			Expect(matches[0].Metadata).To(HaveKeyWithValue("city", "Osaka"))
			Expect(matches[1].ID).To(Equal("chunk_1_a"))
		})

		It("maps quota errors to ErrQuotaExhausted", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path == "/describe_index_stats" {
					statsHandler(w)
					return
				}
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(map[string]any{"code": 429, "message": "insufficient_quota"})
			}))
			defer server.Close()

			driver, err := pinecone.NewPineconeDriver(pinecone.Config{Host: server.URL, APIKey: "k"}, logger)
			Expect(err).NotTo(HaveOccurred())

			_, err = driver.Query(context.Background(), "", []float32{1, 0, 0, 0}, 3)
			Expect(err).To(MatchError(vector.ErrQuotaExhausted))
		})
	})

	Describe("Upsert", func() {
		It("sends records with the namespace", func() {
			var got map[string]any
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path == "/describe_index_stats" {
					statsHandler(w)
					return
				}
				Expect(r.URL.Path).To(Equal("/vectors/upsert"))
				Expect(json.NewDecoder(r.Body).Decode(&got)).To(Succeed())
				json.NewEncoder(w).Encode(map[string]any{"upsertedCount": 1})
			}))
			defer server.Close()

			driver, err := pinecone.NewPineconeDriver(pinecone.Config{Host: server.URL, APIKey: "k"}, logger)
			Expect(err).NotTo(HaveOccurred())

			err = driver.Upsert(context.Background(), "properties", []vector.Record{
				{ID: "chunk_0_a", Values: []float32{1, 0, 0, 0}, Metadata: map[string]any{"city": "Osaka"}},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(got["namespace"]).To(Equal("properties"))
			vectors := got["vectors"].([]any)
			Expect(vectors).To(HaveLen(1))
		})

		It("is a no-op for an empty batch", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path == "/describe_index_stats" {
					statsHandler(w)
					return
				}
				Fail("unexpected request " + r.URL.Path)
			}))
			defer server.Close()

			driver, err := pinecone.NewPineconeDriver(pinecone.Config{Host: server.URL, APIKey: "k"}, logger)
			Expect(err).NotTo(HaveOccurred())
			Expect(driver.Upsert(context.Background(), "properties", nil)).To(Succeed())
		})
	})

	Describe("Fetch", func() {
		It("preserves requested order and omits missing ids", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path == "/describe_index_stats" {
					statsHandler(w)
					return
				}
				Expect(r.URL.Path).To(Equal("/vectors/fetch"))
				Expect(r.URL.Query()["ids"]).To(Equal([]string{"b", "missing", "a"}))
				json.NewEncoder(w).Encode(map[string]any{
					"vectors": map[string]any{
						"a": map[string]any{"id": "a", "values": []float32{1, 0, 0, 0}},
						"b": map[string]any{"id": "b", "values": []float32{0, 1, 0, 0}},
					},
				})
			}))
			defer server.Close()

			driver, err := pinecone.NewPineconeDriver(pinecone.Config{Host: server.URL, APIKey: "k"}, logger)
			Expect(err).NotTo(HaveOccurred())

			records, err := driver.Fetch(context.Background(), "", []string{"b", "missing", "a"})
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(2))
			Expect(records[0].ID).To(Equal("b"))
			Expect(records[1].ID).To(Equal("a"))
		})
	})

	Describe("DeleteAll", func() {
		It("issues a deleteAll for the namespace", func() {
			var got map[string]any
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path == "/describe_index_stats" {
					statsHandler(w)
					return
				}
				Expect(r.URL.Path).To(Equal("/vectors/delete"))
				Expect(json.NewDecoder(r.Body).Decode(&got)).To(Succeed())
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("{}"))
			}))
			defer server.Close()

			driver, err := pinecone.NewPineconeDriver(pinecone.Config{Host: server.URL, APIKey: "k"}, logger)
			Expect(err).NotTo(HaveOccurred())

			Expect(driver.DeleteAll(context.Background(), "properties")).To(Succeed())
			Expect(got["deleteAll"]).To(Equal(true))
			Expect(got["namespace"]).To(Equal("properties"))
		})
	})

	Describe("Stats", func() {
		It("reports dimension and namespace counts", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				statsHandler(w)
			}))
			defer server.Close()

			driver, err := pinecone.NewPineconeDriver(pinecone.Config{Host: server.URL, APIKey: "k"}, logger)
			Expect(err).NotTo(HaveOccurred())

			stats, err := driver.Stats(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.Dimension).To(Equal(4))
			Expect(stats.TotalVectorCount).To(Equal(2))
			Expect(stats.Namespaces).To(HaveKeyWithValue("properties", 2))
		})
	})
})

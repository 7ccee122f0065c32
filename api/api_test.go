package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/sumika-ai/sumika/pkg/eventstream"
	testutils "github.com/sumika-ai/sumika/pkg/utils/test"
	"github.com/sumika-ai/sumika/pkg/vector"
)

func TestAPI(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "API Suite")
}

// capturePublisher records published events for assertions.
type capturePublisher struct {
	events []*eventstream.IndexEvent
}

func (p *capturePublisher) PublishIndexEvent(_ context.Context, event *eventstream.IndexEvent) error {
	p.events = append(p.events, event)
	return nil
}

func (p *capturePublisher) Close() error { return nil }

func jsonRequest(method, target string, body any) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		Expect(json.NewEncoder(&buf).Encode(body)).To(Succeed())
	}
	req, err := http.NewRequest(method, target, &buf)
	Expect(err).NotTo(HaveOccurred())
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeBody[T any](resp *http.Response) T {
	defer resp.Body.Close()
	var out T
	Expect(json.NewDecoder(resp.Body).Decode(&out)).To(Succeed())
	return out
}

var _ = Describe("Server", func() {
	var (
		server    *Server
		index     *testutils.MockIndex
		embedder  *testutils.MockEmbedder
		publisher *capturePublisher
	)

	BeforeEach(func() {
		index = testutils.NewMockIndex()
		embedder = testutils.NewMockEmbedder()
		publisher = &capturePublisher{}

		var err error
		server, err = NewServer(Config{
			ListenAddr: ":0",
			Namespace:  "default",
			Embedder:   embedder,
			Index:      index,
			Publisher:  publisher,
		}, zap.NewNop())
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("NewServer", func() {
		It("requires an embedder", func() {
			_, err := NewServer(Config{Index: index}, zap.NewNop())
			Expect(err).To(MatchError(ContainSubstring("embedder is required")))
		})

		It("requires a vector index", func() {
			_, err := NewServer(Config{Embedder: embedder}, zap.NewNop())
			Expect(err).To(MatchError(ContainSubstring("vector index is required")))
		})
	})

	Describe("GET /ping", func() {
		It("returns pong", func() {
			req, _ := http.NewRequest(http.MethodGet, "/ping", nil)
			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			body, _ := io.ReadAll(resp.Body)
			Expect(string(body)).To(ContainSubstring("pong"))
		})
	})

	Describe("GET /v1/stats", func() {
		It("returns index statistics", func() {
			index.StatsResult = &vector.Stats{
				Dimension:        3072,
				TotalVectorCount: 42,
				Namespaces:       map[string]int{"default": 42},
				Metric:           "cosine",
			}

			req, _ := http.NewRequest(http.MethodGet, "/v1/stats", nil)
			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			stats := decodeBody[StatsResponse](resp)
			Expect(stats.Dimension).To(Equal(3072))
			Expect(stats.TotalVectorCount).To(Equal(42))
			Expect(stats.Namespaces).To(HaveKeyWithValue("default", 42))
		})
	})

	Describe("POST /v1/search", func() {
		It("returns 400 when query is missing", func() {
			resp, err := server.app.Test(jsonRequest(http.MethodPost, "/v1/search", SearchRequest{}))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})

		It("returns the assembled context", func() {
			index.Results = []vector.Match{
				{ID: "a", Score: 0.9, Metadata: map[string]any{"text": "The station is 480m away."}},
				{ID: "b", Score: 0.6, Metadata: map[string]any{"text": "A supermarket is nearby."}},
			}

			resp, err := server.app.Test(jsonRequest(http.MethodPost, "/v1/search", SearchRequest{
				Query: "how far is the station",
			}))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			out := decodeBody[SearchResponse](resp)
			Expect(out.Count).To(Equal(2))
			Expect(out.Context).To(ContainSubstring("480m"))
			Expect(out.Details[0].ID).To(Equal("a"))
		})

		It("applies the request threshold over the default", func() {
			index.Results = []vector.Match{
				{ID: "a", Score: 0.9, Metadata: map[string]any{"text": "strong"}},
				{ID: "b", Score: 0.5, Metadata: map[string]any{"text": "weak"}},
			}

			resp, err := server.app.Test(jsonRequest(http.MethodPost, "/v1/search", SearchRequest{
				Query:     "station",
				Threshold: 0.8,
			}))
			Expect(err).NotTo(HaveOccurred())

			out := decodeBody[SearchResponse](resp)
			Expect(out.Count).To(Equal(1))
			Expect(out.Details[0].ID).To(Equal("a"))
		})
	})

	Describe("POST /v1/documents/text", func() {
		It("segments, upserts, and publishes an event", func() {
			resp, err := server.app.Test(jsonRequest(http.MethodPost, "/v1/documents/text", TextUploadRequest{
				Text:       "first part\n---\nsecond part",
				Separators: []string{"---"},
			}))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			out := decodeBody[UploadResponse](resp)
			Expect(out.Chunks).To(Equal(2))
			Expect(out.Upserted).To(HaveLen(2))
			Expect(index.AllIDs("default")).To(HaveLen(2))

			Expect(publisher.events).To(HaveLen(1))
			Expect(publisher.events[0].EventType).To(Equal(eventstream.EventTypeChunksUpserted))
			Expect(publisher.events[0].Namespace).To(Equal("default"))
			Expect(publisher.events[0].UpsertedIDs).To(HaveLen(2))
		})

		It("rejects an invalid category pair", func() {
			resp, err := server.app.Test(jsonRequest(http.MethodPost, "/v1/documents/text", map[string]any{
				"text":     "some text",
				"metadata": map[string]any{"main_category": "transport"},
			}))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})

		It("returns 429 when the embedding quota is exhausted", func() {
			embedder.QuotaExhausted = true

			resp, err := server.app.Test(jsonRequest(http.MethodPost, "/v1/documents/text", TextUploadRequest{
				Text: "some text",
			}))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusTooManyRequests))
		})
	})

	Describe("POST /v1/documents/csv", func() {
		It("imports rows and reports rejects", func() {
			csv := "交通,駅,桜木町駅,35.45,139.63,480,6,420\n" +
				"買い物,スーパー,まいばすけっと,bad,139.63,200,3,180\n"
			req, err := http.NewRequest(http.MethodPost, "/v1/documents/csv?namespace=yokohama", bytes.NewBufferString(csv))
			Expect(err).NotTo(HaveOccurred())
			req.Header.Set("Content-Type", "text/csv")

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			out := decodeBody[UploadResponse](resp)
			Expect(out.Chunks).To(Equal(1))
			Expect(out.Rejected).To(HaveLen(1))
			Expect(index.AllIDs("yokohama")).To(HaveLen(1))
		})

		It("returns 400 for an empty body", func() {
			req, _ := http.NewRequest(http.MethodPost, "/v1/documents/csv", nil)
			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})
	})

	Describe("DELETE /v1/vectors", func() {
		It("clears the namespace and publishes an event", func() {
			req, _ := http.NewRequest(http.MethodDelete, "/v1/vectors?namespace=yokohama", nil)
			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			Expect(index.ClearedNamespaces).To(ContainElement("yokohama"))
			Expect(publisher.events).To(HaveLen(1))
			Expect(publisher.events[0].EventType).To(Equal(eventstream.EventTypeIndexCleared))
		})

		It("falls back to the default namespace", func() {
			req, _ := http.NewRequest(http.MethodDelete, "/v1/vectors", nil)
			_, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(index.ClearedNamespaces).To(ContainElement("default"))
		})
	})
})

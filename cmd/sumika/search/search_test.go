package searchcmder

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sumika-ai/sumika/api"
	"github.com/sumika-ai/sumika/pkg/vector"
)

func TestSearchCmd(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Search Command Suite")
}

var _ = Describe("NewSearchCmd", func() {
	It("requires exactly one argument", func() {
		cmd := NewSearchCmd()
		cmd.SetArgs([]string{})
		Expect(cmd.Execute()).To(HaveOccurred())
	})
})

var _ = Describe("SearchAPI", func() {
	It("posts the request and decodes the response", func() {
		var got api.SearchRequest
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			Expect(r.Method).To(Equal(http.MethodPost))
			Expect(r.URL.Path).To(Equal("/v1/search"))
			Expect(json.NewDecoder(r.Body).Decode(&got)).To(Succeed())

			_ = json.NewEncoder(w).Encode(api.SearchResponse{
				Query:   got.Query,
				Context: "The station is 480m away.",
				Details: []vector.Match{{ID: "csv_0_abc", Score: 0.91}},
				Count:   1,
			})
		}))
		defer server.Close()

		out, err := SearchAPI(server.URL, api.SearchRequest{
			Query:    "nearest station",
			Variants: []string{"closest train stop"},
			TopK:     3,
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Query).To(Equal("nearest station"))
		Expect(got.Variants).To(ConsistOf("closest train stop"))
		Expect(got.TopK).To(Equal(3))
		Expect(out.Count).To(Equal(1))
		Expect(out.Details[0].ID).To(Equal("csv_0_abc"))
	})

	It("surfaces API error bodies", func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(api.ErrorResponse{Error: "index unavailable"})
		}))
		defer server.Close()

		_, err := SearchAPI(server.URL, api.SearchRequest{Query: "q"})
		Expect(err).To(MatchError(ContainSubstring("index unavailable")))
	})

	It("reports the status code when the body is not an error payload", func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		_, err := SearchAPI(server.URL, api.SearchRequest{Query: "q"})
		Expect(err).To(MatchError(ContainSubstring("502")))
	})
})

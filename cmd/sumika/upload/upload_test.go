package uploadcmder

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sumika-ai/sumika/api"
)

func TestUploadCmd(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Upload Cmd Suite")
}

var _ = Describe("NewUploadCmd", func() {
	It("requires exactly one file argument", func() {
		cmd := NewUploadCmd()
		cmd.SetArgs([]string{})
		Expect(cmd.Execute()).To(HaveOccurred())
	})
})

var _ = Describe("uploadText", func() {
	It("sends separators and metadata with the document", func() {
		var got api.TextUploadRequest
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			Expect(r.URL.Path).To(Equal("/v1/documents/text"))
			Expect(json.NewDecoder(r.Body).Decode(&got)).To(Succeed())
			json.NewEncoder(w).Encode(api.UploadResponse{
				Chunks:   2,
				Upserted: []string{"chunk_0_a", "chunk_1_a"},
			})
		}))
		defer server.Close()

		cmder := &uploadCommander{
			path:       "notes.txt",
			separators: []string{"---"},
			namespace:  "yokohama",
			city:       "Yokohama",
			apiTarget:  server.URL,
		}

		out, err := cmder.uploadText([]byte("first\n---\nsecond"))
		Expect(err).NotTo(HaveOccurred())
		Expect(out.Upserted).To(HaveLen(2))
		Expect(got.Text).To(Equal("first\n---\nsecond"))
		Expect(got.Separators).To(Equal([]string{"---"}))
		Expect(got.Namespace).To(Equal("yokohama"))
		Expect(got.Metadata.City).To(Equal("Yokohama"))
		Expect(got.Metadata.Filename).To(Equal("notes.txt"))
	})
})

var _ = Describe("uploadCSV", func() {
	It("posts the raw body with the namespace as a query parameter", func() {
		var gotBody string
		var gotNamespace string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			Expect(r.URL.Path).To(Equal("/v1/documents/csv"))
			Expect(r.Header.Get("Content-Type")).To(Equal("text/csv"))
			gotNamespace = r.URL.Query().Get("namespace")
			raw, _ := io.ReadAll(r.Body)
			gotBody = string(raw)
			json.NewEncoder(w).Encode(api.UploadResponse{Chunks: 1, Upserted: []string{"csv_0_a"}})
		}))
		defer server.Close()

		cmder := &uploadCommander{
			path:      "facilities.csv",
			namespace: "横浜",
			apiTarget: server.URL,
		}

		out, err := cmder.uploadCSV([]byte("買い物,スーパー,マルエツ,35.4,139.6,480,6,420\n"))
		Expect(err).NotTo(HaveOccurred())
		Expect(out.Chunks).To(Equal(1))
		Expect(gotNamespace).To(Equal("横浜"))
		Expect(gotBody).To(ContainSubstring("マルエツ"))
	})
})

var _ = Describe("decodeUploadResponse", func() {
	It("extracts the error message from a failed response", func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(api.ErrorResponse{Error: "unknown main category"})
		}))
		defer server.Close()

		resp, err := http.Get(server.URL)
		Expect(err).NotTo(HaveOccurred())

		_, err = decodeUploadResponse(resp)
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("unknown main category"))
	})

	It("reports the status code when the body is not an API error", func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		resp, err := http.Get(server.URL)
		Expect(err).NotTo(HaveOccurred())

		_, err = decodeUploadResponse(resp)
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("status 502"))
	})
})

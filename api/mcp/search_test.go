package mcp

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/sumika-ai/sumika/pkg/retriever"
	testutils "github.com/sumika-ai/sumika/pkg/utils/test"
	"github.com/sumika-ai/sumika/pkg/vector"
)

var _ = Describe("Search tool", func() {
	var (
		server *Server
		index  *testutils.MockIndex
		ctx    context.Context
	)

	BeforeEach(func() {
		index = testutils.NewMockIndex()
		embedder := testutils.NewMockEmbedder()
		search := retriever.NewRetriever(embedder, index, nil, zap.NewNop())

		var err error
		server, err = NewServer(Config{
			Retriever: search,
			Namespace: "default",
			Logger:    zap.NewNop(),
		})
		Expect(err).NotTo(HaveOccurred())
		ctx = context.Background()
	})

	Describe("handleSearch", func() {
		It("returns matching results with their metadata", func() {
			index.Results = []vector.Match{
				{ID: "csv_0_abc", Score: 0.9, Metadata: map[string]any{
					"text":          "桜木町駅は交通の駅です。",
					"main_category": "交通",
				}},
				{ID: "csv_1_abc", Score: 0.6, Metadata: map[string]any{
					"text": "A supermarket is a 3 minute walk away.",
				}},
			}

			result, output, err := server.handleSearch(ctx, nil, SearchInput{Query: "nearest station"})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeFalse())

			Expect(output.Count).To(Equal(2))
			Expect(output.Results[0].ID).To(Equal("csv_0_abc"))
			Expect(output.Results[0].Text).To(Equal("桜木町駅は交通の駅です。"))
			Expect(output.Results[0].Metadata).To(HaveKeyWithValue("main_category", "交通"))
			Expect(output.Context).To(ContainSubstring("supermarket"))
		})

		It("filters results below the threshold", func() {
			index.Results = []vector.Match{
				{ID: "a", Score: 0.9, Metadata: map[string]any{"text": "strong"}},
				{ID: "b", Score: 0.2, Metadata: map[string]any{"text": "weak"}},
			}

			_, output, err := server.handleSearch(ctx, nil, SearchInput{Query: "q"})
			Expect(err).NotTo(HaveOccurred())
			Expect(output.Count).To(Equal(1))
			Expect(output.Results[0].ID).To(Equal("a"))
		})

		It("returns an empty result set when nothing matches", func() {
			_, output, err := server.handleSearch(ctx, nil, SearchInput{Query: "q"})
			Expect(err).NotTo(HaveOccurred())
			Expect(output.Count).To(BeZero())
			Expect(output.Results).To(BeEmpty())
		})
	})
})

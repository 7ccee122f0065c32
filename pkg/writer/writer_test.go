package writer_test

import (
	"context"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/sumika-ai/sumika/pkg/chunk"
	testutils "github.com/sumika-ai/sumika/pkg/utils/test"
	"github.com/sumika-ai/sumika/pkg/vector"
	"github.com/sumika-ai/sumika/pkg/writer"
)

func TestWriter(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Writer Suite")
}

var _ = Describe("Writer", func() {
	var (
		embedder *testutils.MockEmbedder
		index    *testutils.MockIndex
		w        *writer.Writer
		ctx      context.Context
	)

	makeChunks := func(texts ...string) []chunk.Chunk {
		chunks := make([]chunk.Chunk, len(texts))
		for i, text := range texts {
			chunks[i] = chunk.Chunk{ID: "chunk_" + text, Text: text}
		}
		return chunks
	}

	BeforeEach(func() {
		embedder = testutils.NewMockEmbedder()
		index = testutils.NewMockIndex()
		w = writer.NewWriter(embedder, index, writer.Config{
			UpsertRetryDelay: time.Millisecond,
		}, zap.NewNop())
		ctx = context.Background()
	})

	It("upserts all chunks in input order", func() {
		report, err := w.Upsert(ctx, "properties", makeChunks("a", "b", "c"), 2)
		Expect(err).NotTo(HaveOccurred())
		Expect(report.Upserted).To(Equal([]string{"chunk_a", "chunk_b", "chunk_c"}))
		Expect(report.Failed).To(BeEmpty())
		Expect(index.AllIDs("properties")).To(Equal([]string{"chunk_a", "chunk_b", "chunk_c"}))
	})

	It("embeds the answer examples ahead of the chunk text", func() {
		c := chunk.Chunk{
			ID:   "x",
			Text: "The gym opens at 7am.",
			Metadata: chunk.Metadata{
				AnswerExamples: []chunk.AnswerExample{
					{Question: "Is there a gym?", Answer: "Yes."},
				},
			},
		}

		_, err := w.Upsert(ctx, "", []chunk.Chunk{c}, 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(embedder.Calls).To(Equal([]string{"Q: Is there a gym?\nA: Yes.\nThe gym opens at 7am."}))

		records := index.Records[""]
		Expect(records).To(HaveLen(1))
		Expect(records[0].Metadata["text"]).To(Equal("The gym opens at 7am."))
		Expect(records[0].Metadata["search_text"]).To(Equal("Q: Is there a gym?\nA: Yes.\nThe gym opens at 7am."))
	})

	It("retries a chunk whose embedding fails and keeps the others", func() {
		chunks := makeChunks("a", "b", "c", "d", "e")
		searchText := "c"
		embedder.FailCounts[searchText] = 2

		report, err := w.Upsert(ctx, "", chunks, 5)
		Expect(err).NotTo(HaveOccurred())
		Expect(report.Failed).To(BeEmpty())
		Expect(report.Upserted).To(ConsistOf("chunk_a", "chunk_b", "chunk_c", "chunk_d", "chunk_e"))

		embedCallsForC := 0
		for _, call := range embedder.Calls {
			if call == searchText {
				embedCallsForC++
			}
		}
		Expect(embedCallsForC).To(Equal(3))
		Expect(index.AllIDs("")).To(ConsistOf("chunk_a", "chunk_b", "chunk_c", "chunk_d", "chunk_e"))
	})

	It("reports chunks that fail embedding in every round", func() {
		chunks := makeChunks("a", "b")
		embedder.FailCounts["b"] = 10

		report, err := w.Upsert(ctx, "", chunks, 5)
		Expect(err).NotTo(HaveOccurred())
		Expect(report.Upserted).To(Equal([]string{"chunk_a"}))
		Expect(report.Failed).To(Equal([]string{"chunk_b"}))
	})

	It("retries a failed batch upsert and succeeds", func() {
		index.FailUpserts = 2

		report, err := w.Upsert(ctx, "", makeChunks("a", "b"), 5)
		Expect(err).NotTo(HaveOccurred())
		Expect(report.Upserted).To(Equal([]string{"chunk_a", "chunk_b"}))
		Expect(index.UpsertCalls).To(Equal(3))
	})

	It("aborts when a batch upsert exhausts its retries", func() {
		index.FailUpserts = 10

		_, err := w.Upsert(ctx, "", makeChunks("a", "b"), 5)
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("after 3 attempts"))
		Expect(index.UpsertCalls).To(Equal(3))
	})

	It("aborts immediately on quota exhaustion", func() {
		embedder.QuotaExhausted = true

		_, err := w.Upsert(ctx, "", makeChunks("a", "b"), 5)
		Expect(err).To(MatchError(vector.ErrQuotaExhausted))
		Expect(embedder.Calls).To(HaveLen(1))
	})

	It("overwrites records re-upserted with the same id", func() {
		first := []chunk.Chunk{{ID: "same", Text: "old"}}
		second := []chunk.Chunk{{ID: "same", Text: "new"}}

		_, err := w.Upsert(ctx, "ns", first, 5)
		Expect(err).NotTo(HaveOccurred())
		_, err = w.Upsert(ctx, "ns", second, 5)
		Expect(err).NotTo(HaveOccurred())

		records, err := index.Fetch(ctx, "ns", []string{"same"})
		Expect(err).NotTo(HaveOccurred())
		Expect(records[0].Metadata["text"]).To(Equal("new"))
	})
})

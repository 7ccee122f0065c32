// Package writer uploads chunks into a vector index: it batches them,
// requests embeddings, assembles records, and upserts with bounded retries.
package writer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/sumika-ai/sumika/pkg/chunk"
	"github.com/sumika-ai/sumika/pkg/embeddings"
	"github.com/sumika-ai/sumika/pkg/vector"
)

const (
	// DefaultBatchSize is the number of chunks embedded and upserted per
	// batch when the caller does not specify one.
	DefaultBatchSize = 50

	// maxRounds bounds how many passes a single Upsert invocation makes
	// over chunks whose embedding failed. A chunk failing in every round
	// is reported as permanently failed instead of retried forever.
	maxRounds = 3

	// upsertMaxAttempts bounds retries for a single batch upsert call.
	upsertMaxAttempts = 3

	// upsertRetryDelay is the first backoff interval for a failed batch
	// upsert; it doubles per attempt.
	upsertRetryDelay = 2 * time.Second
)

// Writer uploads chunks into a vector index namespace.
type Writer struct {
	embedder   embeddings.Embedder
	index      vector.Index
	retryDelay time.Duration
	logger     *zap.Logger
}

// Config holds configuration for the writer.
type Config struct {
	// UpsertRetryDelay is the initial backoff interval for failed batch
	// upserts. Defaults to two seconds if zero.
	UpsertRetryDelay time.Duration
}

// Report summarizes one Upsert invocation.
type Report struct {
	// Upserted lists the ids written to the index, in input order.
	Upserted []string

	// Failed lists the ids whose embedding kept failing after all retry
	// rounds. Empty on full success.
	Failed []string
}

// NewWriter creates a writer over the given embedder and index.
func NewWriter(embedder embeddings.Embedder, index vector.Index, c Config, logger *zap.Logger) *Writer {
	retryDelay := c.UpsertRetryDelay
	if retryDelay == 0 {
		retryDelay = upsertRetryDelay
	}

	return &Writer{
		embedder:   embedder,
		index:      index,
		retryDelay: retryDelay,
		logger:     logger,
	}
}

// Upsert embeds and writes chunks into the namespace in input-order batches.
//
// A chunk whose embedding call fails is set aside and re-attempted in a later
// round rather than aborting its batch; after maxRounds rounds the survivors
// are reported in Report.Failed. A batch upsert that exhausts its own retries
// aborts the whole operation, since the index itself is unhealthy at that
// point. Re-upserting an id overwrites the stored record, so re-running an
// upload is always safe.
func (w *Writer) Upsert(ctx context.Context, namespace string, chunks []chunk.Chunk, batchSize int) (*Report, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	report := &Report{}
	pending := chunks

	for round := 0; len(pending) > 0; round++ {
		retrySet, err := w.runRound(ctx, namespace, pending, batchSize, report)
		if err != nil {
			return nil, err
		}
		if len(retrySet) == 0 {
			break
		}

		if round+1 >= maxRounds {
			for _, c := range retrySet {
				report.Failed = append(report.Failed, c.ID)
			}
			w.logger.Warn("giving up on chunks after retry rounds",
				zap.Int("count", len(retrySet)),
				zap.Int("rounds", maxRounds),
			)
			break
		}

		w.logger.Info("retrying failed chunks",
			zap.Int("count", len(retrySet)),
			zap.Int("round", round+1),
		)
		pending = retrySet
	}

	w.logger.Info("upload finished",
		zap.Int("upserted", len(report.Upserted)),
		zap.Int("failed", len(report.Failed)),
		zap.String("namespace", namespace),
	)

	return report, nil
}

// runRound processes one pass over the pending chunks and returns the chunks
// whose embedding failed.
func (w *Writer) runRound(ctx context.Context, namespace string, pending []chunk.Chunk, batchSize int, report *Report) ([]chunk.Chunk, error) {
	var retrySet []chunk.Chunk

	for start := 0; start < len(pending); start += batchSize {
		end := start + batchSize
		if end > len(pending) {
			end = len(pending)
		}
		batch := pending[start:end]

		records := make([]vector.Record, 0, len(batch))
		for _, c := range batch {
			values, err := w.embedder.Embed(ctx, SearchText(c))
			if err != nil {
				// Quota exhaustion is not recoverable by retrying;
				// anything else earns the chunk another round.
				if errors.Is(err, vector.ErrQuotaExhausted) {
					return nil, fmt.Errorf("embedding chunk %s: %w", c.ID, err)
				}
				w.logger.Warn("embedding failed, will retry chunk",
					zap.String("chunk_id", c.ID),
					zap.Error(err),
				)
				retrySet = append(retrySet, c)
				continue
			}

			records = append(records, vector.Record{
				ID:       c.ID,
				Values:   values,
				Metadata: recordMetadata(c),
			})
		}

		if err := w.upsertBatch(ctx, namespace, records); err != nil {
			return nil, err
		}
		for _, rec := range records {
			report.Upserted = append(report.Upserted, rec.ID)
		}
	}

	return retrySet, nil
}

// upsertBatch writes one batch with its own bounded backoff.
func (w *Writer) upsertBatch(ctx context.Context, namespace string, records []vector.Record) error {
	if len(records) == 0 {
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(
		backoff.NewExponentialBackOff(
			backoff.WithInitialInterval(w.retryDelay),
			backoff.WithMultiplier(2),
			backoff.WithRandomizationFactor(0),
		),
		upsertMaxAttempts-1,
	), ctx)

	operation := func() error {
		err := w.index.Upsert(ctx, namespace, records)
		if err != nil && errors.Is(err, vector.ErrQuotaExhausted) {
			return backoff.Permanent(err)
		}
		return err
	}

	if err := backoff.Retry(operation, policy); err != nil {
		return fmt.Errorf("upserting batch of %d after %d attempts: %w", len(records), upsertMaxAttempts, err)
	}

	w.logger.Debug("upserted batch",
		zap.Int("count", len(records)),
		zap.String("namespace", namespace),
	)

	return nil
}

// SearchText builds the text actually embedded for a chunk: the chunk text,
// prefixed with the rendered answer examples so retrieval is biased toward
// example answers.
func SearchText(c chunk.Chunk) string {
	examples := chunk.RenderAnswerExamples(c.Metadata.AnswerExamples)
	if examples == "" {
		return c.Text
	}
	return examples + "\n" + c.Text
}

// recordMetadata assembles the flat payload stored alongside the vector. The
// chunk text and the embedded search text are included so the retriever can
// assemble context and the embedding input stays auditable.
func recordMetadata(c chunk.Chunk) map[string]any {
	meta := c.Metadata.Flatten()
	meta["text"] = c.Text
	meta["search_text"] = SearchText(c)
	return meta
}

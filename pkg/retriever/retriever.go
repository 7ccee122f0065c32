// Package retriever executes similarity searches against a vector index and
// assembles the retrieved chunks into a bounded textual context.
package retriever

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/sumika-ai/sumika/pkg/embeddings"
	"github.com/sumika-ai/sumika/pkg/tokens"
	"github.com/sumika-ai/sumika/pkg/vector"
)

const (
	// DefaultTopK is the number of candidates requested per query when the
	// caller does not specify one.
	DefaultTopK = 5

	// DefaultThreshold is the minimum similarity score a candidate must
	// meet to be considered relevant.
	DefaultThreshold = 0.4

	// QuotaSentinelID marks the sentinel match returned in place of real
	// results when the provider's quota is exhausted.
	QuotaSentinelID = "quota_exhausted"

	// QuotaSentinelText is the user-facing remediation text carried by the
	// sentinel match.
	QuotaSentinelText = "The assistant's API quota is exhausted. Please check the account's billing settings and try again later."

	// EmptyContextInstruction tells a downstream generator how to behave
	// when retrieval found nothing relevant.
	EmptyContextInstruction = "No relevant information was found for this question. Say so explicitly instead of guessing an answer."

	// rankDecay shrinks a match's score per rank position within its
	// variant's result list.
	rankDecay = 0.95

	// agreementBonus is added once per additional query variant that also
	// returned the same id.
	agreementBonus = 0.05
)

// Result is the outcome of one search.
type Result struct {
	// Matches are the candidates that survived the threshold, best first.
	Matches []vector.Match `json:"matches"`

	// TotalMatches counts all candidates the index returned, pre-filter.
	TotalMatches int `json:"total_matches"`

	// FilteredMatches counts the surviving candidates.
	FilteredMatches int `json:"filtered_matches"`
}

// Context is an assembled retrieval context for a downstream generator.
type Context struct {
	// Text is the newline-joined text of the surviving matches, in ranking
	// order. Empty means "no relevant information", not a failure.
	Text string `json:"text"`

	// Details carries the surviving matches verbatim so the caller can
	// render citations.
	Details []vector.Match `json:"details"`

	// TokenCount is the token count of Text.
	TokenCount int `json:"token_count"`
}

// Retriever runs similarity searches over an embedder and index pair.
type Retriever struct {
	embedder embeddings.Embedder
	index    vector.Index
	counter  tokens.Counter
	logger   *zap.Logger
}

// NewRetriever creates a retriever. The token counter may be nil, in which
// case assembled contexts report a zero token count.
func NewRetriever(embedder embeddings.Embedder, index vector.Index, counter tokens.Counter, logger *zap.Logger) *Retriever {
	return &Retriever{
		embedder: embedder,
		index:    index,
		counter:  counter,
		logger:   logger,
	}
}

// Search embeds the query once, asks the index for topK candidates, and drops
// any candidate below the threshold.
//
// Quota exhaustion does not surface as an error: the result carries a single
// sentinel match describing the condition, so callers can render a
// remediation message. Other failures propagate.
func (r *Retriever) Search(ctx context.Context, query string, topK int, threshold float64, namespace string) (*Result, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}

	matches, err := r.searchOnce(ctx, query, topK, namespace)
	if err != nil {
		if errors.Is(err, vector.ErrQuotaExhausted) {
			r.logger.Warn("quota exhausted during search", zap.Error(err))
			return quotaResult(), nil
		}
		return nil, err
	}

	filtered := make([]vector.Match, 0, len(matches))
	for _, m := range matches {
		if m.Score >= threshold {
			filtered = append(filtered, m)
		}
	}

	r.logger.Debug("search finished",
		zap.Int("total", len(matches)),
		zap.Int("filtered", len(filtered)),
		zap.Float64("threshold", threshold),
	)

	return &Result{
		Matches:         filtered,
		TotalMatches:    len(matches),
		FilteredMatches: len(filtered),
	}, nil
}

// MultiSearch issues one search per query variant, merges the candidates, and
// deduplicates by id keeping the highest adjusted score.
//
// A match's adjusted score is its raw score decayed by its rank within the
// variant that produced it, plus a fixed bonus per additional variant that
// also returned it. Agreement across paraphrases is a stronger relevance
// signal than a single high-scoring hit.
func (r *Retriever) MultiSearch(ctx context.Context, variants []string, topK int, threshold float64, namespace string) (*Result, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}

	type candidate struct {
		match    vector.Match
		variants map[string]struct{}
	}
	best := make(map[string]*candidate)
	order := make([]string, 0)
	total := 0

	for _, variant := range variants {
		matches, err := r.searchOnce(ctx, variant, topK, namespace)
		if err != nil {
			if errors.Is(err, vector.ErrQuotaExhausted) {
				r.logger.Warn("quota exhausted during multi-variant search", zap.Error(err))
				return quotaResult(), nil
			}
			return nil, err
		}
		total += len(matches)

		for rank, m := range matches {
			if m.Score < threshold {
				continue
			}

			m.QueryVariant = variant
			m.QueryRank = rank + 1
			m.AdjustedScore = m.Score * decayForRank(rank+1)

			existing, ok := best[m.ID]
			if !ok {
				best[m.ID] = &candidate{
					match:    m,
					variants: map[string]struct{}{variant: {}},
				}
				order = append(order, m.ID)
				continue
			}

			existing.variants[variant] = struct{}{}
			if m.AdjustedScore > existing.match.AdjustedScore {
				existing.match = m
			}
		}
	}

	merged := make([]vector.Match, 0, len(best))
	for _, id := range order {
		c := best[id]
		c.match.AdjustedScore += agreementBonus * float64(len(c.variants)-1)
		merged = append(merged, c.match)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].AdjustedScore > merged[j].AdjustedScore
	})

	r.logger.Debug("multi-variant search finished",
		zap.Int("variants", len(variants)),
		zap.Int("total", total),
		zap.Int("merged", len(merged)),
	)

	return &Result{
		Matches:         merged,
		TotalMatches:    total,
		FilteredMatches: len(merged),
	}, nil
}

// GetContext runs a search (multi-variant when variants are supplied, basic
// otherwise) and assembles the surviving matches into a textual context.
func (r *Retriever) GetContext(ctx context.Context, query string, variants []string, topK int, threshold float64, namespace string) (*Context, error) {
	var result *Result
	var err error

	if len(variants) > 0 {
		all := append([]string{query}, variants...)
		result, err = r.MultiSearch(ctx, all, topK, threshold, namespace)
	} else {
		result, err = r.Search(ctx, query, topK, threshold, namespace)
	}
	if err != nil {
		return nil, err
	}

	parts := make([]string, 0, len(result.Matches))
	for _, m := range result.Matches {
		if text, ok := m.Metadata["text"].(string); ok && text != "" {
			parts = append(parts, text)
		}
	}
	text := strings.Join(parts, "\n")

	tokenCount := 0
	if r.counter != nil && text != "" {
		tokenCount = r.counter.Count(text)
	}

	return &Context{
		Text:       text,
		Details:    result.Matches,
		TokenCount: tokenCount,
	}, nil
}

// searchOnce embeds one query and issues one index query.
func (r *Retriever) searchOnce(ctx context.Context, query string, topK int, namespace string) ([]vector.Match, error) {
	embedding, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	matches, err := r.index.Query(ctx, namespace, embedding, topK)
	if err != nil {
		return nil, fmt.Errorf("querying index: %w", err)
	}
	return matches, nil
}

// decayForRank returns the multiplicative decay for a 1-based rank.
func decayForRank(rank int) float64 {
	decay := 1.0
	for i := 1; i < rank; i++ {
		decay *= rankDecay
	}
	return decay
}

// quotaResult builds the sentinel result for quota exhaustion.
func quotaResult() *Result {
	return &Result{
		Matches: []vector.Match{{
			ID: QuotaSentinelID,
			Metadata: map[string]any{
				"text": QuotaSentinelText,
			},
		}},
		TotalMatches:    0,
		FilteredMatches: 0,
	}
}

// IsQuotaSentinel reports whether a match is the quota-exhaustion sentinel.
func IsQuotaSentinel(m vector.Match) bool {
	return m.ID == QuotaSentinelID
}

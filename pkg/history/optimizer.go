package history

import (
	"sort"

	"go.uber.org/zap"
)

const (
	// DefaultMaxTokens is the overall prompt budget when the caller does
	// not configure one.
	DefaultMaxTokens = 10000

	// ReservedTokens is held back out of the budget for the system prompt
	// and the retrieved context.
	ReservedTokens = 4000
)

// Optimizer trims a conversation history to fit a token budget.
type Optimizer struct {
	maxTokens int
	logger    *zap.Logger
}

// NewOptimizer creates an optimizer with the given overall budget. A
// non-positive budget uses DefaultMaxTokens.
func NewOptimizer(maxTokens int, logger *zap.Logger) *Optimizer {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return &Optimizer{
		maxTokens: maxTokens,
		logger:    logger,
	}
}

// Optimize returns a history fitting within maxTokens - ReservedTokens.
//
// System messages are always kept, as is the single most recent non-system
// message. The remaining non-system messages compete for the leftover budget
// smallest-first, so many short turns beat one long turn. That trade-off is
// deliberate: recency is only guaranteed for the latest turn, and short
// messages carry more information per token. Kept fillers are placed before
// the latest message; their order need not match chronology.
func (o *Optimizer) Optimize(messages []Message) []Message {
	available := o.maxTokens - ReservedTokens
	if TotalTokens(messages) <= available {
		return messages
	}

	var system []Message
	var rest []Message
	for _, m := range messages {
		if m.Role == RoleSystem {
			system = append(system, m)
		} else {
			rest = append(rest, m)
		}
	}

	kept := make([]Message, 0, len(messages))
	kept = append(kept, system...)
	used := TotalTokens(system)

	if len(rest) == 0 {
		return kept
	}

	latest := rest[len(rest)-1]
	candidates := append([]Message(nil), rest[:len(rest)-1]...)
	used += latest.TokenCount

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].TokenCount < candidates[j].TokenCount
	})

	var fillers []Message
	for _, m := range candidates {
		if used+m.TokenCount > available {
			break
		}
		fillers = append(fillers, m)
		used += m.TokenCount
	}

	kept = append(kept, fillers...)
	kept = append(kept, latest)

	o.logger.Debug("trimmed chat history",
		zap.Int("input_messages", len(messages)),
		zap.Int("kept_messages", len(kept)),
		zap.Int("kept_tokens", used),
		zap.Int("available_tokens", available),
	)

	return kept
}

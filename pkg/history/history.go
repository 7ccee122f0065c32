// Package history maintains a token-budgeted rolling window of conversation
// messages.
package history

import (
	"fmt"

	"github.com/sumika-ai/sumika/pkg/tokens"
)

// Role identifies who produced a message. The set is closed; anything else is
// a data error at the boundary.
type Role string

const (
	RoleSystem Role = "system"
	RoleHuman  Role = "human"
	RoleAI     Role = "ai"
)

// ParseRole converts a wire string into a Role.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleSystem, RoleHuman, RoleAI:
		return Role(s), nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// Message is one conversational turn. Content is never mutated in place;
// TokenCount is derived once and cached.
type Message struct {
	Role       Role   `json:"role"`
	Content    string `json:"content"`
	TokenCount int    `json:"token_count"`
}

// NewMessage builds a message with its token count cached.
func NewMessage(role Role, content string, counter tokens.Counter) Message {
	return Message{
		Role:       role,
		Content:    content,
		TokenCount: counter.Count(content),
	}
}

// TotalTokens sums the cached token counts of messages.
func TotalTokens(messages []Message) int {
	total := 0
	for _, m := range messages {
		total += m.TokenCount
	}
	return total
}

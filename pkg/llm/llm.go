// Package llm provides the chat completion interface used to generate
// answers from retrieved context.
package llm

import "context"

// Message is one turn handed to the completion model.
type Message struct {
	// Role is "system", "user", or "assistant" on the wire.
	Role string `json:"role"`

	// Content is the message text.
	Content string `json:"content"`
}

// Completer produces a chat completion for a message sequence.
type Completer interface {
	// Complete returns the model's reply to the conversation.
	Complete(ctx context.Context, messages []Message) (string, error)

	// Close releases any resources held by the completer.
	Close() error
}

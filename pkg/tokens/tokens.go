// Package tokens counts text tokens for budget enforcement in chat history
// trimming and retrieved-context sizing.
package tokens

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// DefaultEncodingModel is the model whose tokenizer encoding is used when no
// other model is configured.
const DefaultEncodingModel = "gpt-4"

// Counter counts tokens in text. Implementations must be safe for concurrent
// use.
type Counter interface {
	Count(text string) int
}

// TiktokenCounter counts tokens with a model's byte-pair encoding.
type TiktokenCounter struct {
	encoding *tiktoken.Tiktoken
}

// NewCounter builds a counter for the given model's encoding.
func NewCounter(model string) (*TiktokenCounter, error) {
	if model == "" {
		model = DefaultEncodingModel
	}

	encoding, err := tiktoken.EncodingForModel(model)
	if err != nil {
		return nil, fmt.Errorf("loading encoding for model %q: %w", model, err)
	}

	return &TiktokenCounter{encoding: encoding}, nil
}

// Count returns the number of tokens in text.
func (c *TiktokenCounter) Count(text string) int {
	return len(c.encoding.Encode(text, nil, nil))
}

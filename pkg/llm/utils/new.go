// Package llmutils builds llm.Completer clients from configuration.
package llmutils

import (
	"fmt"

	"github.com/sumika-ai/sumika/pkg/llm"
	"github.com/sumika-ai/sumika/pkg/llm/ollama"
	"github.com/sumika-ai/sumika/pkg/llm/openai"
)

type NewCompleterOpts struct {
	ProviderType string
	TargetURL    string
	APIKey       string
	Model        string
}

func NewCompleter(o *NewCompleterOpts) (llm.Completer, error) {
	switch o.ProviderType {
	case "openai":
		return openai.NewClient(openai.Config{
			BaseURL: o.TargetURL,
			APIKey:  o.APIKey,
			Model:   o.Model,
		})
	case "ollama":
		return ollama.NewClient(ollama.Config{
			BaseURL: o.TargetURL,
			Model:   o.Model,
		})
	default:
		return nil, fmt.Errorf("unsupported chat provider: %s", o.ProviderType)
	}
}

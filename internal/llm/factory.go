package llm

import (
	"fmt"
	"strings"

	"github.com/deadonfilm/morbid/internal/model"
)

// NewSynthesizer creates a synthesis provider from configuration. An
// empty provider name disables synthesis and returns nil, nil.
func NewSynthesizer(config model.LLMConfig) (Synthesizer, error) {
	switch strings.ToLower(config.Provider) {
	case "openai":
		return NewOpenAISynthesizer(config)

	case "":
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown LLM provider: %s (supported: openai)", config.Provider)
	}
}

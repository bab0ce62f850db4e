package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/deadonfilm/morbid/internal/model"
)

// Synthesizer turns a fusion input set into one structured record.
type Synthesizer interface {
	// Name returns the provider name.
	Name() string

	// Synthesize produces the cleaned-record JSON for one subject's
	// merged evidence.
	Synthesize(ctx context.Context, req SynthesisRequest) (*SynthesisResponse, error)

	// IsAvailable checks if the provider is properly configured.
	IsAvailable(ctx context.Context) bool
}

// SynthesisRequest carries the subject and its evidence set.
type SynthesisRequest struct {
	Subject model.Subject
	Items   []model.EvidenceItem

	// Model overrides the configured model when non-empty.
	Model string

	// MaxTokens limits the response length.
	MaxTokens int
}

// SynthesisResponse is the raw synthesis output plus accounting.
type SynthesisResponse struct {
	// Text is the structured JSON (possibly fence-wrapped) returned by
	// the model. Decoding and normalization belong to the engine.
	Text string

	Model      string
	TokensUsed int
	Cost       float64
}

// BuildPrompt renders the synthesis request. Every item carries its
// source label, confidence and reliability tier so the model can apply
// the precedence rule: when sources disagree on a fact, the higher
// reliability tier wins, regardless of confidence.
func BuildPrompt(req SynthesisRequest) string {
	var b strings.Builder

	fmt.Fprintf(&b, `You are compiling a structured death record for %s`, req.Subject.Name)
	if req.Subject.Death != "" {
		fmt.Fprintf(&b, ` (died %s)`, req.Subject.Death)
	}
	b.WriteString(".\n\nEvidence collected from multiple sources follows. Each item lists its source, a confidence score (how specific the text is to this death) and a reliability tier (how trustworthy the publisher is).\n\n")
	b.WriteString("CRITICAL RULE: confidence and reliability are different things. When two sources disagree on a fact, prefer the one with the HIGHER RELIABILITY TIER even if its confidence is lower. Never prefer a user-generated claim over an official record because it reads more specific.\n\n")

	for i, item := range req.Items {
		fmt.Fprintf(&b, "--- Evidence %d ---\nSource: %s (reliability: %s, confidence: %.2f)\n",
			i+1, item.Source, item.Reliability, item.Confidence)
		if item.SourceURL != "" {
			fmt.Fprintf(&b, "URL: %s\n", item.SourceURL)
		}
		fmt.Fprintf(&b, "Text: %s\n", item.Narrative)
		if item.Disputed != "" {
			fmt.Fprintf(&b, "Disputed account: %s\n", item.Disputed)
		}
		if item.Location != "" {
			fmt.Fprintf(&b, "Location: %s\n", item.Location)
		}
		b.WriteString("\n")
	}

	b.WriteString(`Respond with a single JSON object:
{
  "cause_of_death": string,
  "cause_confidence": number 0-1,
  "medical_details": string,
  "circumstances": string (long-form narrative),
  "disputed_accounts": string,
  "manner_of_death": one of "natural","accident","suicide","homicide","undetermined","pending",
  "notable_factors": array of tags,
  "death_location": string,
  "last_project": string,
  "posthumous_releases": array of strings,
  "career_status_at_death": string,
  "related_persons": array of strings,
  "has_substantive_content": boolean
}
Set has_substantive_content to false if the evidence does not actually describe this person's death. Do not pad with "no information available" prose.`)

	return b.String()
}

package source

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/deadonfilm/morbid/internal/model"
	"github.com/deadonfilm/morbid/internal/util"
)

// LLMResearchAdapter asks a general-purpose LLM what it knows about
// the subject's death. Metered, interactive, structured output. The
// model's training data is a secondary compilation at best, so the
// tier stays low regardless of how specific the answer reads.
type LLMResearchAdapter struct {
	client      *openai.Client
	model       string
	costPerCall float64
	timeout     time.Duration
}

// NewLLMResearchAdapter creates the adapter. A missing API key leaves
// the client nil and the adapter unavailable.
func NewLLMResearchAdapter(cfg model.LLMConfig) *LLMResearchAdapter {
	a := &LLMResearchAdapter{
		model:       cfg.Model,
		costPerCall: 0.002,
		timeout:     time.Duration(cfg.Timeout) * time.Second,
	}
	if a.model == "" {
		a.model = openai.GPT4oMini
	}
	if a.timeout == 0 {
		a.timeout = 60 * time.Second
	}
	if cfg.APIKey != "" {
		clientConfig := openai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			clientConfig.BaseURL = cfg.BaseURL
		}
		a.client = openai.NewClientWithConfig(clientConfig)
	}
	return a
}

func (a *LLMResearchAdapter) Name() string                       { return "llmresearch" }
func (a *LLMResearchAdapter) Reliability() model.ReliabilityTier { return model.TierSecondary }
func (a *LLMResearchAdapter) IsAvailable() bool                  { return a.client != nil }
func (a *LLMResearchAdapter) Metered() (bool, float64)           { return true, a.costPerCall }
func (a *LLMResearchAdapter) MinDelay() time.Duration            { return 500 * time.Millisecond }
func (a *LLMResearchAdapter) Timeout() time.Duration             { return a.timeout }

type llmResearchPayload struct {
	Known         bool     `json:"known"`
	Circumstances string   `json:"circumstances"`
	Disputed      string   `json:"disputed_accounts"`
	Factors       []string `json:"notable_factors"`
	Location      string   `json:"death_location"`
}

// Lookup queries the model for what it knows about the death. An
// honest "unknown" answer is a not-found result, not a failure.
func (a *LLMResearchAdapter) Lookup(ctx context.Context, subject model.Subject) (*Result, error) {
	start := time.Now()

	if a.client == nil {
		return failureResult(a.Name(), "", 0, fmt.Errorf("no API key configured")), nil
	}

	prompt := fmt.Sprintf(`What do you know about the death of %s`, subject.Name)
	if subject.Death != "" {
		prompt += fmt.Sprintf(` (died %s)`, subject.Death)
	}
	prompt += `? Answer as JSON with fields: known (boolean, false if you have no
specific information), circumstances (string), disputed_accounts (string),
notable_factors (array of strings), death_location (string).
Only report what you actually know. Do not speculate.`

	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	resp, err := a.client.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0.1,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return failureResult(a.Name(), "", time.Since(start), fmt.Errorf("chat completion: %w", err)), nil
	}
	if len(resp.Choices) == 0 {
		return failureResult(a.Name(), "", time.Since(start), fmt.Errorf("empty completion")), nil
	}

	var payload llmResearchPayload
	if err := json.Unmarshal([]byte(util.StripCodeFences(resp.Choices[0].Message.Content)), &payload); err != nil {
		return failureResult(a.Name(), "", time.Since(start), fmt.Errorf("decode payload: %w", err)), nil
	}

	meta := model.SourceMetadata{
		Source:  a.Name(),
		Elapsed: time.Since(start),
		Cost:    a.costPerCall,
	}

	if !payload.Known || payload.Circumstances == "" {
		return &Result{Variant: VariantNone, Meta: meta}, nil
	}

	confidence := ScoreConfidence(payload.Circumstances, subject.Name, VariantStructured)
	meta.Confidence = confidence

	return &Result{
		Evidence: &model.EvidenceItem{
			Source:      a.Name(),
			Narrative:   payload.Circumstances,
			Disputed:    payload.Disputed,
			Factors:     model.FilterFactors(payload.Factors),
			Location:    payload.Location,
			Confidence:  confidence,
			Reliability: a.Reliability(),
			RawMetadata: map[string]any{"model": a.model, "tokens": resp.Usage.TotalTokens},
			RetrievedAt: time.Now().UTC(),
		},
		Variant: VariantStructured,
		Meta:    meta,
	}, nil
}

package batch

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/deadonfilm/morbid/internal/model"
)

// OpenAIProvider implements JobProvider on the OpenAI Batch API.
type OpenAIProvider struct {
	client *openai.Client
	model  string
	window string
}

// NewOpenAIProvider creates the provider. The API key is required; a
// missing key is a fatal configuration error at the caller.
func NewOpenAIProvider(apiKey string, cfg model.BatchConfig) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required for batch jobs")
	}

	mdl := cfg.Model
	if mdl == "" {
		mdl = openai.GPT4oMini
	}
	window := cfg.CompletionWindow
	if window == "" {
		window = "24h"
	}

	return &OpenAIProvider{
		client: openai.NewClient(apiKey),
		model:  mdl,
		window: window,
	}, nil
}

// Submit uploads one JSONL request per subject and creates the batch.
func (p *OpenAIProvider) Submit(ctx context.Context, requests []Request) (string, error) {
	lines := make([]openai.BatchLineItem, 0, len(requests))
	for _, req := range requests {
		lines = append(lines, openai.BatchChatCompletionRequest{
			CustomID: req.Token,
			Method:   "POST",
			URL:      openai.BatchEndpointChatCompletions,
			Body: openai.ChatCompletionRequest{
				Model: p.model,
				Messages: []openai.ChatCompletionMessage{
					{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
				},
				ResponseFormat: &openai.ChatCompletionResponseFormat{
					Type: openai.ChatCompletionResponseFormatTypeJSONObject,
				},
			},
		})
	}

	resp, err := p.client.CreateBatchWithUploadFile(ctx, openai.CreateBatchWithUploadFileRequest{
		Endpoint:         openai.BatchEndpointChatCompletions,
		CompletionWindow: p.window,
		UploadBatchFileRequest: openai.UploadBatchFileRequest{
			FileName: "morbid-batch.jsonl",
			Lines:    lines,
		},
	})
	if err != nil {
		return "", fmt.Errorf("create batch: %w", err)
	}
	return resp.ID, nil
}

// Retrieve maps the provider's status machine onto ours: anything
// before completion is processing, terminal failures are failed.
func (p *OpenAIProvider) Retrieve(ctx context.Context, jobID string) (*JobStatus, error) {
	resp, err := p.client.RetrieveBatch(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("retrieve batch: %w", err)
	}

	status := JobProcessing
	switch resp.Status {
	case "completed":
		status = JobEnded
	case "failed", "cancelled":
		status = JobFailed
	}

	js := &JobStatus{ID: resp.ID, Status: status}
	js.Total = resp.RequestCounts.Total
	js.Completed = resp.RequestCounts.Completed
	js.Failed = resp.RequestCounts.Failed
	return js, nil
}

// batchOutputLine is one line of the batch output file.
type batchOutputLine struct {
	CustomID string `json:"custom_id"`
	Response *struct {
		StatusCode int `json:"status_code"`
		Body       struct {
			Choices []struct {
				Message struct {
					Content string `json:"content"`
				} `json:"message"`
			} `json:"choices"`
		} `json:"body"`
	} `json:"response"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Results streams the output file line by line, in file order.
func (p *OpenAIProvider) Results(ctx context.Context, jobID string, fn func(Outcome) error) error {
	resp, err := p.client.RetrieveBatch(ctx, jobID)
	if err != nil {
		return fmt.Errorf("retrieve batch: %w", err)
	}
	if resp.OutputFileID == nil || *resp.OutputFileID == "" {
		return fmt.Errorf("batch %s has no output file", jobID)
	}

	content, err := p.client.GetFileContent(ctx, *resp.OutputFileID)
	if err != nil {
		return fmt.Errorf("fetch output file: %w", err)
	}
	defer content.Close()

	scanner := bufio.NewScanner(content)
	scanner.Buffer(make([]byte, 0, 1024*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var out batchOutputLine
		if err := json.Unmarshal(line, &out); err != nil {
			// A line we cannot even frame still reaches the caller so
			// it lands in the failure log instead of vanishing.
			if err := fn(Outcome{Token: "", Status: OutcomeErrored, Body: string(line), Err: "malformed output line"}); err != nil {
				return err
			}
			continue
		}

		outcome := toOutcome(out)
		if err := fn(outcome); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan output file: %w", err)
	}
	return nil
}

func toOutcome(line batchOutputLine) Outcome {
	if line.Error != nil {
		status := OutcomeErrored
		if line.Error.Code == "batch_expired" {
			status = OutcomeExpired
		}
		return Outcome{Token: line.CustomID, Status: status, Err: line.Error.Message}
	}
	if line.Response == nil || line.Response.StatusCode != 200 ||
		len(line.Response.Body.Choices) == 0 {
		return Outcome{Token: line.CustomID, Status: OutcomeErrored, Err: "empty response"}
	}
	return Outcome{
		Token:  line.CustomID,
		Status: OutcomeSucceeded,
		Body:   line.Response.Body.Choices[0].Message.Content,
	}
}

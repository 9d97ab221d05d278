package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// CompletionService handles structured text generation via an
// OpenAI-compatible chat completions endpoint.
type CompletionService struct {
	client   *resty.Client
	model    string
	endpoint string
}

// CompletionConfig holds configuration for the completion service.
type CompletionConfig struct {
	Model   string
	APIKey  string
	BaseURL string
}

// NewCompletionService creates a new completion client wrapper.
// Parameters:
//   - cfg: completion configuration including model, API key, and base URL.
//
// Returns:
//   - *CompletionService: initialized completion client wrapper.
func NewCompletionService(cfg *CompletionConfig) *CompletionService {
	client := resty.New()
	client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	client.SetHeader("Content-Type", "application/json")
	// Extraction over a long resume is the slowest call in the pipeline
	client.SetTimeout(120 * time.Second)

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	endpoint := baseURL + "/chat/completions"

	return &CompletionService{
		client:   client,
		model:    cfg.Model,
		endpoint: endpoint,
	}
}

// GetModel returns the model name being used.
func (s *CompletionService) GetModel() string {
	return s.model
}

// OpenAI-compatible Chat Completion API request/response structures
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float32       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Complete sends a system instruction plus a user prompt and returns the raw
// completion text.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - systemPrompt: fixed role instruction.
//   - userPrompt: task-specific content.
//
// Returns:
//   - string: raw completion content.
//   - error: non-nil if the API request fails or returns no choices.
func (s *CompletionService) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	req := chatRequest{
		Model: s.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		MaxTokens:   4000,
		Temperature: 0.1,
	}

	var resp chatResponse
	httpResp, err := s.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&resp).
		Post(s.endpoint)

	if err != nil {
		return "", fmt.Errorf("failed to call completion API: %w", err)
	}

	if httpResp.StatusCode() < 200 || httpResp.StatusCode() >= 300 {
		errorMsg := fmt.Sprintf("HTTP %d", httpResp.StatusCode())
		if resp.Error != nil {
			errorMsg = fmt.Sprintf("HTTP %d: %s", httpResp.StatusCode(), resp.Error.Message)
		} else if len(httpResp.Body()) > 0 {
			errorMsg = fmt.Sprintf("HTTP %d: %s", httpResp.StatusCode(), string(httpResp.Body()))
		}
		return "", fmt.Errorf("completion API returned error: %s", errorMsg)
	}

	if resp.Error != nil {
		return "", fmt.Errorf("completion API error: %s", resp.Error.Message)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in completion response (status: %d)", httpResp.StatusCode())
	}

	return resp.Choices[0].Message.Content, nil
}

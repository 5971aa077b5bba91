package client

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pesio-ai/be-ap-reconciler/internal/errors"
	"github.com/pesio-ai/be-ap-reconciler/internal/httpclient"
	"github.com/pesio-ai/be-ap-reconciler/internal/output"
)

// ExplanationClient asks an OpenAI-compatible chat-completions endpoint to
// explain a reconciliation decision in plain language
type ExplanationClient struct {
	client      *httpclient.Client
	model       string
	temperature float64
	maxTokens   int
}

// ExplanationConfig configures the explanation client
type ExplanationConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// NewExplanationClient creates a new explanation client
func NewExplanationClient(cfg ExplanationConfig) *ExplanationClient {
	opts := []httpclient.Option{httpclient.WithTimeout(cfg.Timeout)}
	if cfg.APIKey != "" {
		opts = append(opts, httpclient.WithHeader("Authorization", "Bearer "+cfg.APIKey))
	}
	return &ExplanationClient{
		client:      httpclient.NewClient(cfg.BaseURL, opts...),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Explain implements Explainer
func (c *ExplanationClient) Explain(ctx context.Context, rec *output.Record) (string, error) {
	prompt, err := ExplanationPrompt(rec)
	if err != nil {
		return "", err
	}

	req := chatCompletionRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: "You are an AI accounting assistant. Be concise and factual."},
			{Role: "user", Content: prompt},
		},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}

	var resp chatCompletionResponse
	if err := c.client.Post(ctx, "/chat/completions", req, &resp); err != nil {
		return "", fmt.Errorf("failed to request explanation: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New(errors.ErrCodeUnavailable, "explanation response had no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// ExplanationPrompt builds the prompt from the decision, issues and trail
func ExplanationPrompt(rec *output.Record) (string, error) {
	issues, err := json.Marshal(rec.Issues)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeInvalidInput, "failed to encode issues")
	}

	var trail strings.Builder
	for _, entry := range rec.Reasoning {
		fmt.Fprintf(&trail, "%s %s\n", output.StageLabel(entry.Stage), entry.Message)
	}

	return fmt.Sprintf(`Invoice decision: %s
Issues: %s
Reasoning trace:
%s
Explain in 3-5 concise lines why this invoice requires human review.`, rec.Decision, issues, trail.String()), nil
}

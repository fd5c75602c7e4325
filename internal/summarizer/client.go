// Package summarizer serializes LLM calls that turn groups of error records
// into root-cause summaries. A single worker goroutine drains a FIFO queue
// under a sliding-window rate limit with exponential backoff.
package summarizer

import (
	"context"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/errwatch/errwatch/internal/types"
)

// CompletionRequest is one prompt for the model.
type CompletionRequest struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// Client is the LLM endpoint abstraction. Tests inject a fake; production
// uses the Anthropic Messages API.
type Client interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// AnthropicClient calls the Anthropic Messages API.
type AnthropicClient struct {
	client  *anthropic.Client
	model   string
	timeout time.Duration
}

// NewAnthropicClient builds a client for the given API key and model.
func NewAnthropicClient(apiKey, model string, timeout time.Duration) (*AnthropicClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: API key is required", types.ErrValidation)
	}
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &AnthropicClient{
		client:  &client,
		model:   model,
		timeout: timeout,
	}, nil
}

// Complete sends one prompt and returns the concatenated text blocks of the
// response. The system prompt is folded into the user message.
func (c *AnthropicClient) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	fullPrompt := req.Prompt
	if req.System != "" {
		fullPrompt = fmt.Sprintf("%s\n\n---\n\n%s", req.System, req.Prompt)
	}

	response, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   int64(req.MaxTokens),
		Temperature: anthropic.Float(req.Temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(fullPrompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic API call failed: %w", err)
	}

	var text string
	for _, block := range response.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	return text, nil
}

// Package anthropic implements the language-generation boundary on the
// Anthropic Messages API.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/emberworks/loopagent/llm"
)

const (
	defaultModel     = "claude-sonnet-4-20250514"
	defaultMaxTokens = 4096
)

// Client adapts an Anthropic SDK client to llm.Provider. A single prompt is
// sent as one user message; the reply's text blocks are concatenated.
type Client struct {
	client    *anthropic.Client
	model     string
	maxTokens int64
	system    string
}

// Option configures the client.
type Option func(*Client)

// WithModel overrides the model id.
func WithModel(model string) Option {
	return func(c *Client) { c.model = model }
}

// WithMaxTokens overrides the response token budget.
func WithMaxTokens(n int64) Option {
	return func(c *Client) { c.maxTokens = n }
}

// WithSystemPrompt sets a system prompt sent with every completion.
func WithSystemPrompt(s string) Option {
	return func(c *Client) { c.system = s }
}

// New wraps an Anthropic SDK client.
func New(client *anthropic.Client, opts ...Option) *Client {
	c := &Client{
		client:    client,
		model:     defaultModel,
		maxTokens: defaultMaxTokens,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Complete implements llm.Provider.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if c.system != "" {
		params.System = []anthropic.TextBlockParam{{Text: c.system}}
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", mapError(ctx, err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return strings.TrimSpace(text.String()), nil
}

// mapError folds SDK failures into the llm error taxonomy so the retry
// policy can classify them.
func mapError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		// Per-call timeout or cancellation; timeouts count as transient.
		return ctx.Err()
	}

	var apierr *anthropic.Error
	if errors.As(err, &apierr) {
		return llm.ErrorFromStatusCode("anthropic", apierr.StatusCode, apierr.Error(), err)
	}

	// Network-level failures without a status are treated as transient.
	return &llm.ProviderError{
		Provider:  "anthropic",
		Message:   fmt.Sprintf("request failed: %v", err),
		Retryable: true,
		Cause:     err,
	}
}

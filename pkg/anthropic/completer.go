package anthropic

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
)

const (
	defaultCompleterModel     = "claude-haiku-4-5-20251001"
	defaultCompleterMaxTokens = 2048
)

// UsageFunc receives the token usage of every successful call.
type UsageFunc func(model string, usage TokenUsage)

// Completer sends single-turn prompts at temperature zero and returns the
// reply text. It satisfies the extraction pipeline's language-model
// interface.
type Completer struct {
	client    Client
	model     string
	maxTokens int64
	cacheTTL  string
	onUsage   UsageFunc
}

// CompleterOption configures a Completer.
type CompleterOption func(*Completer)

// WithModel overrides the model ID.
func WithModel(model string) CompleterOption {
	return func(c *Completer) {
		if model != "" {
			c.model = model
		}
	}
}

// WithMaxTokens overrides the reply token limit.
func WithMaxTokens(n int64) CompleterOption {
	return func(c *Completer) {
		if n > 0 {
			c.maxTokens = n
		}
	}
}

// WithCacheTTL sets the system prompt cache TTL ("5m" or "1h"). The
// extraction prompt is identical across pages, so a cached system block is
// read back at the discounted rate.
func WithCacheTTL(ttl string) CompleterOption {
	return func(c *Completer) { c.cacheTTL = ttl }
}

// WithUsageHook registers fn for token accounting.
func WithUsageHook(fn UsageFunc) CompleterOption {
	return func(c *Completer) { c.onUsage = fn }
}

// NewCompleter wraps client.
func NewCompleter(client Client, opts ...CompleterOption) *Completer {
	c := &Completer{
		client:    client,
		model:     defaultCompleterModel,
		maxTokens: defaultCompleterMaxTokens,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Model returns the configured model ID.
func (c *Completer) Model() string { return c.model }

// Complete sends prompt with system as the system block.
func (c *Completer) Complete(ctx context.Context, system, prompt string) (string, error) {
	req := Request{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		System:    system,
		Prompt:    prompt,
	}
	if system != "" {
		req.CacheTTL = c.cacheTTL
	}

	reply, err := c.client.Send(ctx, req)
	if err != nil {
		return "", fmt.Errorf("anthropic: complete: %w", err)
	}
	if c.onUsage != nil {
		c.onUsage(c.model, reply.Usage)
	}
	if reply.Text == "" {
		return "", eris.Errorf("anthropic: empty reply (stop reason %q)", reply.StopReason)
	}
	return reply.Text, nil
}

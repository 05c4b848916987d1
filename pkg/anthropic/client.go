// Package anthropic wraps the Anthropic SDK behind a narrow single-turn
// client and adapts it to the extraction pipeline's completer interface.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
)

// Client sends one prompt and returns the model's reply.
type Client interface {
	Send(ctx context.Context, req Request) (*Reply, error)
}

// Request is a single-turn prompt. System is sent as one system block;
// when CacheTTL is non-empty the block carries a cache breakpoint.
type Request struct {
	Model       string
	MaxTokens   int64
	System      string
	CacheTTL    string
	Prompt      string
	Temperature float64
}

// Reply is the text of a response with its accounting.
type Reply struct {
	ID         string
	Model      string
	Text       string
	StopReason string
	Usage      TokenUsage
}

// TokenUsage tracks token consumption for one call.
type TokenUsage struct {
	InputTokens              int64
	OutputTokens             int64
	CacheCreationInputTokens int64
	CacheReadInputTokens     int64
}

// Total is every token billed for the call.
func (u TokenUsage) Total() int64 {
	return u.InputTokens + u.OutputTokens + u.CacheCreationInputTokens + u.CacheReadInputTokens
}

// APIError is a non-2xx answer from the API.
type APIError struct {
	StatusCode int
	Err        error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("anthropic: status %d: %v", e.StatusCode, e.Err)
}

func (e *APIError) Unwrap() error { return e.Err }

// Retryable reports rate limiting, overload and server errors.
func (e *APIError) Retryable() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}

type sdkClient struct {
	client sdk.Client
}

// Option configures the SDK client.
type Option func(*[]option.RequestOption)

// WithBaseURL points the client at a different API host.
func WithBaseURL(url string) Option {
	return func(o *[]option.RequestOption) { *o = append(*o, option.WithBaseURL(url)) }
}

// WithMaxRetries sets the SDK's own retry count.
func WithMaxRetries(n int) Option {
	return func(o *[]option.RequestOption) { *o = append(*o, option.WithMaxRetries(n)) }
}

// NewClient creates a Client backed by the SDK.
func NewClient(apiKey string, opts ...Option) Client {
	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	for _, o := range opts {
		o(&reqOpts)
	}
	return &sdkClient{client: sdk.NewClient(reqOpts...)}
}

func (c *sdkClient) Send(ctx context.Context, req Request) (*Reply, error) {
	msg, err := c.client.Messages.New(ctx, newParams(req))
	if err != nil {
		var apiErr *sdk.Error
		if errors.As(err, &apiErr) {
			return nil, &APIError{StatusCode: apiErr.StatusCode, Err: err}
		}
		return nil, eris.Wrap(err, "anthropic: send")
	}
	return toReply(msg), nil
}

func newParams(req Request) sdk.MessageNewParams {
	params := sdk.MessageNewParams{
		Model:       sdk.Model(req.Model),
		MaxTokens:   req.MaxTokens,
		Messages:    []sdk.MessageParam{sdk.NewUserMessage(sdk.NewTextBlock(req.Prompt))},
		Temperature: sdk.Float(req.Temperature),
	}
	if req.System != "" {
		block := sdk.TextBlockParam{Text: req.System}
		if req.CacheTTL != "" {
			cc := sdk.NewCacheControlEphemeralParam()
			cc.TTL = sdk.CacheControlEphemeralTTL(req.CacheTTL)
			block.CacheControl = cc
		}
		params.System = []sdk.TextBlockParam{block}
	}
	return params
}

// toReply joins the text blocks of msg; tool and thinking blocks are
// dropped.
func toReply(msg *sdk.Message) *Reply {
	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return &Reply{
		ID:         msg.ID,
		Model:      string(msg.Model),
		Text:       b.String(),
		StopReason: string(msg.StopReason),
		Usage: TokenUsage{
			InputTokens:              msg.Usage.InputTokens,
			OutputTokens:             msg.Usage.OutputTokens,
			CacheCreationInputTokens: msg.Usage.CacheCreationInputTokens,
			CacheReadInputTokens:     msg.Usage.CacheReadInputTokens,
		},
	}
}

package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// anthropicProvider adapts the Anthropic Messages API. The SDK's built-in
// retries are disabled; the dispatcher owns retry policy.
type anthropicProvider struct {
	name   string
	client anthropic.Client
}

func newAnthropicProvider(name, apiKey, baseURL string) *anthropicProvider {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &anthropicProvider{
		name:   name,
		client: anthropic.NewClient(opts...),
	}
}

func (p *anthropicProvider) Name() string { return p.name }

// Call performs one Messages API completion. Seeds are not supported by the
// Messages API and are ignored.
func (p *anthropicProvider) Call(ctx context.Context, model, system, user string, opts CallOptions) (*ProviderResult, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(opts.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if opts.Temperature > 0 {
		params.Temperature = anthropic.Float(opts.Temperature)
	}

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, p.wrapError(model, err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	return &ProviderResult{
		Text:       text.String(),
		StopReason: string(msg.StopReason),
		Usage: Usage{
			InputTokens:  int(msg.Usage.InputTokens),
			OutputTokens: int(msg.Usage.OutputTokens),
		},
	}, nil
}

func (p *anthropicProvider) wrapError(model string, err error) error {
	var apierr *anthropic.Error
	if errors.As(err, &apierr) {
		e := &Error{
			Kind:     classifyStatus(apierr.StatusCode),
			Provider: p.name,
			Model:    model,
			Status:   apierr.StatusCode,
			Err:      err,
		}
		if apierr.Response != nil {
			e.RetryAfter = retryAfterFromHeader(apierr.Response.Header)
		}
		return e
	}
	return Classify(p.name, model, err)
}

package summarizer

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	defaultAnthropicModel = "claude-sonnet-4-20250514"
	anthropicMaxTokens    = 8192
)

// Anthropic generates text with the Anthropic Messages API.
type Anthropic struct {
	client *anthropic.Client
	model  anthropic.Model
}

// NewAnthropic creates an Anthropic backend. An empty apiKey yields a
// backend that reports ErrBackendUnavailable on every call.
func NewAnthropic(apiKey string, opts ...Option) *Anthropic {
	o := applyOptions(defaultAnthropicModel, "", opts)
	a := &Anthropic{model: anthropic.Model(o.model)}
	if apiKey == "" {
		return a
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if o.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(o.baseURL))
	}
	if o.httpClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(o.httpClient))
	}

	client := anthropic.NewClient(reqOpts...)
	a.client = &client
	return a
}

func (a *Anthropic) Name() string { return "anthropic" }

// Generate returns the text of the first content block of the reply.
func (a *Anthropic) Generate(ctx context.Context, prompt string) (string, error) {
	if a.client == nil {
		return "", fmt.Errorf("%w: ANTHROPIC_API_KEY", ErrBackendUnavailable)
	}

	resp, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     a.model,
		MaxTokens: anthropicMaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: anthropic: %w", ErrBackendError, err)
	}

	if len(resp.Content) == 0 {
		return "", fmt.Errorf("%w: no content from anthropic", ErrBackendError)
	}
	return resp.Content[0].Text, nil
}

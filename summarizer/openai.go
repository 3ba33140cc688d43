package summarizer

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	oaioption "github.com/openai/openai-go/option"
)

const defaultOpenAIModel = "gpt-4o-mini"

// OpenAI generates text with the Chat Completions API.
type OpenAI struct {
	client *openai.Client
	model  openai.ChatModel
}

// NewOpenAI creates an OpenAI backend. An empty apiKey yields a backend
// that reports ErrBackendUnavailable on every call.
func NewOpenAI(apiKey string, opts ...Option) *OpenAI {
	o := applyOptions(defaultOpenAIModel, "", opts)
	c := &OpenAI{model: openai.ChatModel(o.model)}
	if apiKey == "" {
		return c
	}

	reqOpts := []oaioption.RequestOption{
		oaioption.WithAPIKey(apiKey),
		oaioption.WithMaxRetries(0),
	}
	if o.baseURL != "" {
		reqOpts = append(reqOpts, oaioption.WithBaseURL(o.baseURL))
	}
	if o.httpClient != nil {
		reqOpts = append(reqOpts, oaioption.WithHTTPClient(o.httpClient))
	}

	client := openai.NewClient(reqOpts...)
	c.client = &client
	return c
}

func (c *OpenAI) Name() string { return "openai" }

// Generate returns the content of the first choice.
func (c *OpenAI) Generate(ctx context.Context, prompt string) (string, error) {
	if c.client == nil {
		return "", fmt.Errorf("%w: OPENAI_API_KEY", ErrBackendUnavailable)
	}

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: openai: %w", ErrBackendError, err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices from openai", ErrBackendError)
	}
	return resp.Choices[0].Message.Content, nil
}

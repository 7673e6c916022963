package llm

import (
	"context"
	"errors"
	"os"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// DefaultModel is the model used when none is configured.
const DefaultModel = "claude-sonnet-4-20250514"

// AnthropicService implements Service against the Anthropic Messages API.
type AnthropicService struct {
	client anthropic.Client
	model  string
}

// NewAnthropic creates a service using the given API key. An empty key falls
// back to the ANTHROPIC_API_KEY environment variable.
func NewAnthropic(apiKey, model string) (*AnthropicService, error) {
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, errors.New("llm: missing Anthropic API key")
	}
	if model == "" {
		model = DefaultModel
	}
	return &AnthropicService{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}, nil
}

// GenerateText sends a single-turn message and returns the text content of
// the response.
func (s *AnthropicService) GenerateText(ctx context.Context, prompt string, opts ...GenerateOption) (string, error) {
	options := DefaultGenerateOptions()
	for _, opt := range opts {
		opt(&options)
	}

	if _, ok := ctx.Deadline(); !ok && options.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, options.Timeout)
		defer cancel()
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(s.model),
		MaxTokens: int64(options.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if options.Temperature >= 0 {
		params.Temperature = anthropic.Float(options.Temperature)
	}

	resp, err := s.client.Messages.New(ctx, params)
	if err != nil {
		return "", err
	}

	for _, block := range resp.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", nil
}

// ensure AnthropicService implements Service
var _ Service = (*AnthropicService)(nil)

package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"

	"github.com/linkscout/citefinder/internal/ratecontrol"
)

// OpenAICompleter calls the chat completions API. Retries are disabled;
// a failed call surfaces immediately to the caller's fallback path.
type OpenAICompleter struct {
	client *openai.Client
	model  openai.ChatModel
	limits *ratecontrol.Registry
	logger *zap.Logger
}

func NewOpenAICompleter(apiKey, baseURL, model string, limits *ratecontrol.Registry, logger *zap.Logger) *OpenAICompleter {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if model == "" {
		model = "gpt-3.5-turbo"
	}
	client := openai.NewClient(opts...)
	return &OpenAICompleter{client: &client, model: openai.ChatModel(model), limits: limits, logger: logger}
}

func (c *OpenAICompleter) Complete(ctx context.Context, p Prompt) (string, error) {
	return observe(ctx, c.limits, "openai", func(ctx context.Context) (string, error) {
		messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
		if p.System != "" {
			messages = append(messages, openai.SystemMessage(p.System))
		}
		messages = append(messages, openai.UserMessage(p.User))

		params := openai.ChatCompletionNewParams{
			Model:       c.model,
			Messages:    messages,
			Temperature: openai.Float(p.Temperature),
		}
		if p.MaxTokens > 0 {
			params.MaxTokens = openai.Int(int64(p.MaxTokens))
		}

		resp, err := c.client.Chat.Completions.New(ctx, params)
		if err != nil {
			c.logger.Warn("openai completion failed", zap.String("model", string(c.model)), zap.Error(err))
			return "", fmt.Errorf("openai API error: %w", err)
		}
		if len(resp.Choices) == 0 {
			return "", ErrEmptyCompletion
		}
		content := strings.TrimSpace(resp.Choices[0].Message.Content)
		if content == "" {
			return "", ErrEmptyCompletion
		}
		return content, nil
	})
}

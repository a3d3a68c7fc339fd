package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/linkscout/citefinder/internal/ratecontrol"
)

const defaultAnthropicModel = "claude-haiku-4-5"

// AnthropicCompleter calls the messages API
type AnthropicCompleter struct {
	client *anthropic.Client
	model  anthropic.Model
	limits *ratecontrol.Registry
	logger *zap.Logger
}

func NewAnthropicCompleter(apiKey, baseURL, model string, limits *ratecontrol.Registry, logger *zap.Logger) *AnthropicCompleter {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if model == "" {
		model = defaultAnthropicModel
	}
	client := anthropic.NewClient(opts...)
	return &AnthropicCompleter{client: &client, model: anthropic.Model(model), limits: limits, logger: logger}
}

func (c *AnthropicCompleter) Complete(ctx context.Context, p Prompt) (string, error) {
	return observe(ctx, c.limits, "anthropic", func(ctx context.Context) (string, error) {
		maxTokens := int64(p.MaxTokens)
		if maxTokens <= 0 {
			maxTokens = 1024
		}
		params := anthropic.MessageNewParams{
			Model:       c.model,
			MaxTokens:   maxTokens,
			Temperature: anthropic.Float(p.Temperature),
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(p.User)),
			},
		}
		if p.System != "" {
			params.System = []anthropic.TextBlockParam{{Text: p.System}}
		}

		resp, err := c.client.Messages.New(ctx, params)
		if err != nil {
			c.logger.Warn("anthropic completion failed", zap.String("model", string(c.model)), zap.Error(err))
			return "", fmt.Errorf("anthropic API error: %w", err)
		}

		var sb strings.Builder
		for _, block := range resp.Content {
			if block.Type == "text" {
				sb.WriteString(block.Text)
			}
		}
		content := strings.TrimSpace(sb.String())
		if content == "" {
			return "", ErrEmptyCompletion
		}
		return content, nil
	})
}

// Package llm wraps the chat completion providers used for phrase extraction
// and citation reasons.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/linkscout/citefinder/internal/config"
	"github.com/linkscout/citefinder/internal/metrics"
	"github.com/linkscout/citefinder/internal/ratecontrol"
	"github.com/linkscout/citefinder/internal/tracing"
)

// ErrEmptyCompletion is returned when the provider answers without text
var ErrEmptyCompletion = errors.New("empty completion")

// Prompt is a single-turn completion request
type Prompt struct {
	System      string
	User        string
	Temperature float64
	MaxTokens   int
}

// Completer returns the text of one completion
type Completer interface {
	Complete(ctx context.Context, p Prompt) (string, error)
}

// New builds the completer selected by cfg.Provider. Calls wait on the
// provider's limiter in limits, which may be nil.
func New(cfg config.LLMConfig, limits *ratecontrol.Registry, logger *zap.Logger) (Completer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Provider {
	case "", "openai":
		return NewOpenAICompleter(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.Model, limits, logger), nil
	case "anthropic":
		return NewAnthropicCompleter(cfg.AnthropicAPIKey, "", cfg.Model, limits, logger), nil
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}
}

// observe paces one provider call and wraps it with a span and the
// upstream metrics
func observe(ctx context.Context, limits *ratecontrol.Registry, provider string, fn func(ctx context.Context) (string, error)) (string, error) {
	if err := limits.Wait(ctx, provider); err != nil {
		metrics.RecordUpstreamMetrics(provider, metrics.StatusLabel(err), 0)
		return "", fmt.Errorf("%s rate limit wait: %w", provider, err)
	}
	ctx, span := tracing.StartSpan(ctx, "llm.complete."+provider)
	start := time.Now()
	out, err := fn(ctx)
	metrics.RecordUpstreamMetrics(provider, metrics.StatusLabel(err), time.Since(start).Seconds())
	tracing.EndSpan(span, err)
	return out, err
}

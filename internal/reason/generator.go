// Package reason writes the short footnote explaining why a chosen link
// supports a phrase.
package reason

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/linkscout/citefinder/internal/llm"
	"github.com/linkscout/citefinder/internal/metrics"
	"github.com/linkscout/citefinder/internal/ranking"
	"github.com/linkscout/citefinder/internal/util"
)

const (
	// Fallback is returned whenever no usable completion is available
	Fallback = "relevant supporting source"

	maxChars        = 140
	maxSentenceRune = 300
)

const systemPrompt = "You write concise parenthetical footnotes (max 18 words) for a blog. " +
	"Style: factual, third-person, declarative. No marketing adjectives, no imperatives, " +
	"no words like link, page, article or click. Prefer a concrete number, year or document " +
	"type when the context gives one."

// Reason is the footnote for one url and phrase
type Reason struct {
	URL    string `json:"url"`
	Phrase string `json:"phrase"`
	Text   string `json:"reason"`
}

type Generator struct {
	llm     llm.Completer
	timeout time.Duration
	logger  *zap.Logger
}

func NewGenerator(c llm.Completer, timeout time.Duration, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{llm: c, timeout: timeout, logger: logger}
}

// Explain never fails; any upstream problem yields Fallback.
func (g *Generator) Explain(ctx context.Context, url, phrase, sentence string) Reason {
	r := Reason{URL: url, Phrase: phrase, Text: Fallback}
	if g.llm == nil {
		metrics.ReasonFallbacks.Inc()
		return r
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	raw, err := g.llm.Complete(ctx, llm.Prompt{
		System:      systemPrompt,
		User:        userPrompt(url, phrase, sentence),
		Temperature: 0.4,
		MaxTokens:   40,
	})
	if err != nil {
		g.logger.Warn("Reason completion failed, using fallback",
			zap.String("url", url),
			zap.Error(err),
		)
		metrics.ReasonFallbacks.Inc()
		return r
	}

	if text := Clean(raw); text != "" {
		r.Text = text
	} else {
		metrics.ReasonFallbacks.Inc()
	}
	return r
}

func userPrompt(url, phrase, sentence string) string {
	domain := "source site"
	if host, err := ranking.Host(url); err == nil {
		domain = ranking.RegistrableDomain(host)
	}
	return fmt.Sprintf(
		"Keyword: %q\nSentence context: %q\nSource domain: %s\nURL: %s\n\n"+
			"Write an English footnote explaining exactly what useful info this source gives about the keyword.",
		phrase, util.TruncateRunes(sentence, maxSentenceRune), domain, url)
}

// Clean strips echoed parentheses, collapses whitespace and caps the length
func Clean(raw string) string {
	s := strings.TrimLeft(raw, "( \t\r\n")
	s = strings.TrimRight(s, ") \t\r\n")
	s = util.CollapseSpace(s)
	return strings.TrimSpace(util.TruncateRunes(s, maxChars))
}

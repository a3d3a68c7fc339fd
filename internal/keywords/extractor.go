// Package keywords extracts candidate citation phrases from an article and
// filters them down to the accepted set.
package keywords

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/linkscout/citefinder/internal/config"
	"github.com/linkscout/citefinder/internal/llm"
	"github.com/linkscout/citefinder/internal/metrics"
	"github.com/linkscout/citefinder/internal/util"
)

// ErrExtraction marks a transport-level failure of the extraction call
var ErrExtraction = errors.New("phrase extraction failed")

// DefaultScore is assigned to phrases returned without a score
const DefaultScore = 3

// Candidate is one extracted phrase
type Candidate struct {
	Text     string
	Score    int // 1-5
	Industry string
}

// Extractor asks a completion service for key phrases
type Extractor struct {
	llm      llm.Completer
	maxWords int
	n        int
	timeout  time.Duration
	logger   *zap.Logger
}

func NewExtractor(c llm.Completer, cfg config.KeywordsConfig, timeout time.Duration, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	n := cfg.NumPhrases
	if n <= 0 {
		n = 7
	}
	return &Extractor{llm: c, maxWords: cfg.MaxInputWords, n: n, timeout: timeout, logger: logger}
}

func (e *Extractor) systemPrompt() string {
	return fmt.Sprintf(
		"Extract up to %d KEY PHRASES (1-4 English words each) from the article that a writer "+
			"would link to an authoritative source. Rate each phrase's citation value from 1 to 5 "+
			"and optionally name its industry. Return ONLY JSON: "+
			`[{"phrase":"...","score":4,"industry":"..."}]`, e.n)
}

// Extract returns candidates, degrading every failure to an empty list
func (e *Extractor) Extract(ctx context.Context, text string) []Candidate {
	out, err := e.ExtractStrict(ctx, text)
	if err != nil {
		return []Candidate{}
	}
	return out
}

// ExtractStrict is Extract but reports transport failures as ErrExtraction.
// Unparseable output is still an empty list with a nil error.
func (e *Extractor) ExtractStrict(ctx context.Context, text string) ([]Candidate, error) {
	input := util.LimitWords(text, e.maxWords)
	if input == "" {
		return []Candidate{}, nil
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	raw, err := e.llm.Complete(ctx, llm.Prompt{
		System:      e.systemPrompt(),
		User:        input,
		Temperature: 0,
		MaxTokens:   40 * e.n,
	})
	if errors.Is(err, llm.ErrEmptyCompletion) {
		metrics.ParseOutcomes.WithLabelValues(llm.KindEmpty.String()).Inc()
		return []Candidate{}, nil
	}
	if err != nil {
		e.logger.Warn("Phrase extraction call failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrExtraction, err)
	}

	result := llm.ParseJSON(raw)
	metrics.ParseOutcomes.WithLabelValues(result.Kind().String()).Inc()
	if result.Kind() == llm.KindEmpty {
		e.logger.Info("Extraction output not parseable, treating as no phrases",
			zap.String("raw", util.TruncateString(raw, 200, false)))
		return []Candidate{}, nil
	}

	cands := candidatesFrom(result.Value())
	if len(cands) > e.n {
		cands = cands[:e.n]
	}
	e.logger.Debug("Phrases extracted", zap.Int("count", len(cands)))
	return cands, nil
}

// ParseCandidates parses raw completion output into candidates. Output that
// is not JSON, or JSON in an unknown shape, yields an empty list.
func ParseCandidates(raw string) []Candidate {
	r := llm.ParseJSON(raw)
	if r.Kind() == llm.KindEmpty {
		return []Candidate{}
	}
	return candidatesFrom(r.Value())
}

// listKeys are the top-level object keys that may hold the phrase list
var listKeys = []string{"keywords", "phrases", "keyphrases", "key_phrases"}

func candidatesFrom(v interface{}) []Candidate {
	var items []interface{}
	switch t := v.(type) {
	case []interface{}:
		items = t
	case map[string]interface{}:
		for _, k := range listKeys {
			if arr, ok := t[k].([]interface{}); ok {
				items = arr
				break
			}
		}
	}

	out := make([]Candidate, 0, len(items))
	for _, item := range items {
		if c, ok := candidateFrom(item); ok {
			out = append(out, c)
		}
	}
	return out
}

func candidateFrom(item interface{}) (Candidate, bool) {
	switch t := item.(type) {
	case string:
		text := strings.Join(strings.Fields(t), " ")
		return Candidate{Text: text, Score: DefaultScore}, text != ""
	case map[string]interface{}:
		text := firstString(t, "phrase", "keyword", "text")
		text = strings.Join(strings.Fields(text), " ")
		if text == "" {
			return Candidate{}, false
		}
		score := DefaultScore
		for _, k := range []string{"score", "relevance", "relevance_score"} {
			if f, ok := t[k].(float64); ok {
				score = clampScore(int(f + 0.5))
				break
			}
		}
		return Candidate{Text: text, Score: score, Industry: firstString(t, "industry", "industry_tag")}, true
	default:
		return Candidate{}, false
	}
}

func firstString(m map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func clampScore(s int) int {
	switch {
	case s < 1:
		return 1
	case s > 5:
		return 5
	default:
		return s
	}
}

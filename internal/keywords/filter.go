package keywords

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/linkscout/citefinder/internal/config"
	"github.com/linkscout/citefinder/internal/embeddings"
	"github.com/linkscout/citefinder/internal/metrics"
	"github.com/linkscout/citefinder/internal/textproc"
)

// AcceptedPhrase is a candidate that survived filtering
type AcceptedPhrase struct {
	Text     string
	Score    int
	Industry string
}

// Filter applies the relevance policy to extracted candidates
type Filter struct {
	embedder   embeddings.Embedder
	minScore   int
	maxPhrases int
	threshold  float64
	timeout    time.Duration
	logger     *zap.Logger
}

// NewFilter builds a Filter. A nil embedder disables the semantic stage.
func NewFilter(embedder embeddings.Embedder, cfg config.KeywordsConfig, timeout time.Duration, logger *zap.Logger) *Filter {
	if logger == nil {
		logger = zap.NewNop()
	}
	f := &Filter{
		embedder:   embedder,
		minScore:   cfg.MinScore,
		maxPhrases: cfg.MaxPhrases,
		threshold:  cfg.SemanticThreshold,
		timeout:    timeout,
		logger:     logger,
	}
	if f.minScore <= 0 {
		f.minScore = 3
	}
	if f.maxPhrases <= 0 {
		f.maxPhrases = 8
	}
	if !cfg.SemanticFilter {
		f.embedder = nil
	}
	return f
}

// Filter keeps candidates that clear the score floor, carry no generic term,
// are unique case-insensitively and, when embeddings are available, are
// similar enough to the article. At most maxPhrases survive, chosen by score;
// output keeps extraction order.
func (f *Filter) Filter(ctx context.Context, candidates []Candidate, article string) []AcceptedPhrase {
	kept := make([]AcceptedPhrase, 0, len(candidates))
	index := make(map[string]int, len(candidates))

	for _, c := range candidates {
		if c.Score < f.minScore {
			metrics.FilterDrops.WithLabelValues("score").Inc()
			continue
		}
		if hasGenericTerm(c.Text) {
			metrics.FilterDrops.WithLabelValues("generic").Inc()
			continue
		}
		key := textproc.NormalizePhrase(c.Text)
		if i, dup := index[key]; dup {
			metrics.FilterDrops.WithLabelValues("duplicate").Inc()
			if c.Score > kept[i].Score {
				kept[i] = AcceptedPhrase{Text: c.Text, Score: c.Score, Industry: c.Industry}
			}
			continue
		}
		index[key] = len(kept)
		kept = append(kept, AcceptedPhrase{Text: c.Text, Score: c.Score, Industry: c.Industry})
	}

	if f.embedder != nil && len(kept) > 0 {
		kept = f.semantic(ctx, kept, article)
	}
	return capByScore(kept, f.maxPhrases)
}

func hasGenericTerm(text string) bool {
	words := textproc.Words(text)
	if len(words) == 0 {
		return true
	}
	for _, w := range words {
		if textproc.IsGenericTerm(w) {
			return true
		}
	}
	return false
}

// semantic drops phrases whose similarity to the article is at or below the
// threshold. Without an article vector the stage is skipped; a phrase whose
// own vector is missing is dropped.
func (f *Filter) semantic(ctx context.Context, phrases []AcceptedPhrase, article string) []AcceptedPhrase {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	var articleVec []float32
	var articleErr error
	phraseVecs := make([][]float32, len(phrases))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		articleVec, articleErr = f.embedder.Embed(gctx, article)
		return nil
	})
	for i := range phrases {
		i := i
		g.Go(func() error {
			v, err := f.embedder.Embed(gctx, phrases[i].Text)
			if err != nil {
				f.logger.Debug("Phrase embedding failed", zap.String("phrase", phrases[i].Text), zap.Error(err))
				return nil
			}
			phraseVecs[i] = v
			return nil
		})
	}
	_ = g.Wait()

	if articleErr != nil || len(articleVec) == 0 {
		f.logger.Warn("Article embedding unavailable, skipping semantic filter", zap.Error(articleErr))
		return phrases
	}

	out := phrases[:0:0]
	for i, p := range phrases {
		if phraseVecs[i] == nil {
			metrics.FilterDrops.WithLabelValues("embedding_error").Inc()
			continue
		}
		if embeddings.Cosine(articleVec, phraseVecs[i]) <= f.threshold {
			metrics.FilterDrops.WithLabelValues("semantic").Inc()
			continue
		}
		out = append(out, p)
	}
	return out
}

// capByScore keeps the n highest-scored phrases (earlier wins ties) and
// returns them in their original order
func capByScore(phrases []AcceptedPhrase, n int) []AcceptedPhrase {
	if len(phrases) <= n {
		return phrases
	}
	idx := make([]int, len(phrases))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return phrases[idx[a]].Score > phrases[idx[b]].Score
	})
	idx = idx[:n]
	sort.Ints(idx)

	out := make([]AcceptedPhrase, 0, n)
	for _, i := range idx {
		out = append(out, phrases[i])
	}
	return out
}

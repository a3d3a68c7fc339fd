// Package ranking scores search results for a phrase and selects the best
// link per domain.
package ranking

import (
	"context"
	"strings"

	"github.com/sourcegraph/conc/iter"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/linkscout/citefinder/internal/config"
	"github.com/linkscout/citefinder/internal/embeddings"
	"github.com/linkscout/citefinder/internal/metrics"
	"github.com/linkscout/citefinder/internal/pagerank"
	"github.com/linkscout/citefinder/internal/search"
)

// ScoredLink is a result with its composite score and per-signal breakdown
type ScoredLink struct {
	URL     string             `json:"url"`
	Title   string             `json:"title"`
	Domain  string             `json:"domain"`
	Score   float64            `json:"score"`
	Signals map[string]float64 `json:"signals,omitempty"`
}

// QueryContext is what the scorer knows about the phrase being cited
type QueryContext struct {
	Phrase       string
	ContextTerms []string
}

// Text is the phrase-in-context string compared against titles
func (q QueryContext) Text() string {
	if len(q.ContextTerms) == 0 {
		return q.Phrase
	}
	return q.Phrase + " " + strings.Join(q.ContextTerms, " ")
}

// Scorer applies the signal registry to search results. The embedder and
// page-rank lookup are optional; without them their signals contribute 0.
type Scorer struct {
	signals  []Signal
	policy   *config.DomainPolicy
	ranks    pagerank.Lookup
	embedder embeddings.Embedder
	timeouts config.TimeoutsConfig
	logger   *zap.Logger
}

// ScorerOption customises a Scorer
type ScorerOption func(*Scorer)

func WithPageRank(l pagerank.Lookup) ScorerOption {
	return func(s *Scorer) { s.ranks = l }
}

func WithEmbedder(e embeddings.Embedder) ScorerOption {
	return func(s *Scorer) { s.embedder = e }
}

func WithTimeouts(t config.TimeoutsConfig) ScorerOption {
	return func(s *Scorer) { s.timeouts = t }
}

// WithSignals replaces the default registry
func WithSignals(signals []Signal) ScorerOption {
	return func(s *Scorer) { s.signals = signals }
}

func NewScorer(weights config.Weights, policy *config.DomainPolicy, logger *zap.Logger, opts ...ScorerOption) *Scorer {
	if policy == nil {
		policy = config.DefaultDomainPolicy()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scorer{
		signals: DefaultSignals(weights, policy),
		policy:  policy,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type candidate struct {
	index int
	url   string
	title string
	host  string
}

// Score drops blacklisted and unusable results, gathers page ranks and
// title similarities concurrently, then sums the signals per result.
// Output order follows the raw list.
func (s *Scorer) Score(ctx context.Context, results []search.RawResult, q QueryContext) []ScoredLink {
	cands := s.candidates(results)
	if len(cands) == 0 {
		return []ScoredLink{}
	}

	var (
		ranks map[string]int
		sims  []float64
	)
	// Both lookups degrade to nil on failure, so the group never errors.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ranks = s.pageRanks(gctx, cands)
		return nil
	})
	g.Go(func() error {
		sims = s.similarities(gctx, cands, q)
		return nil
	})
	_ = g.Wait()

	return iter.Map(cands, func(c *candidate) ScoredLink {
		domain := RegistrableDomain(c.host)
		in := Input{
			Index:  c.index,
			Host:   c.host,
			Domain: domain,
			Title:  c.title,
			Phrase: q.Phrase,
		}
		if pr, ok := ranks[domain]; ok {
			in.PageRank, in.HasPageRank = pr, true
		}
		if sims != nil {
			in.Similarity, in.HasSimilarity = sims[c.index], true
		}
		return s.apply(c, in)
	})
}

func (s *Scorer) apply(c *candidate, in Input) ScoredLink {
	link := ScoredLink{
		URL:     c.url,
		Title:   c.title,
		Domain:  in.Domain,
		Signals: make(map[string]float64, len(s.signals)),
	}
	for _, sig := range s.signals {
		v := sig.Fn(in)
		link.Signals[sig.Name] = v
		link.Score += v
	}
	return link
}

func (s *Scorer) candidates(results []search.RawResult) []candidate {
	out := make([]candidate, 0, len(results))
	for i, r := range results {
		u, err := NormalizeURL(r.URL)
		if err != nil {
			continue
		}
		host, err := Host(u)
		if err != nil {
			continue
		}
		if s.policy.IsBlacklisted(host) {
			metrics.FilterDrops.WithLabelValues("blacklist").Inc()
			continue
		}
		out = append(out, candidate{index: i, url: u, title: r.Title, host: host})
	}
	return out
}

func (s *Scorer) pageRanks(ctx context.Context, cands []candidate) map[string]int {
	if s.ranks == nil {
		return nil
	}
	domains := make([]string, 0, len(cands))
	for _, c := range cands {
		domains = append(domains, RegistrableDomain(c.host))
	}
	if s.timeouts.PageRank > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeouts.PageRank)
		defer cancel()
	}
	ranks, err := s.ranks.PageRanks(ctx, domains)
	if err != nil {
		s.logger.Debug("Page rank lookup failed, authority signal is zero", zap.Error(err))
		return nil
	}
	return ranks
}

// similarities returns cosine similarity per raw index, or nil when the
// phrase embedding is unavailable. A missing title embedding yields 0.
func (s *Scorer) similarities(ctx context.Context, cands []candidate, q QueryContext) []float64 {
	if s.embedder == nil {
		return nil
	}
	if s.timeouts.Embedding > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeouts.Embedding)
		defer cancel()
	}

	titles := make([]string, len(cands))
	for i, c := range cands {
		titles[i] = c.title
	}

	var (
		queryVec  []float32
		titleVecs [][]float32
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := s.embedder.Embed(gctx, q.Text())
		queryVec = v
		return err
	})
	g.Go(func() error {
		vs, err := s.embedder.EmbedBatch(gctx, titles)
		if err != nil {
			s.logger.Debug("Title embeddings failed", zap.Error(err))
			return nil
		}
		titleVecs = vs
		return nil
	})
	if err := g.Wait(); err != nil {
		s.logger.Debug("Phrase embedding failed, semantic signal is zero", zap.Error(err))
		return nil
	}

	maxIndex := 0
	for _, c := range cands {
		if c.index > maxIndex {
			maxIndex = c.index
		}
	}
	sims := make([]float64, maxIndex+1)
	for i, c := range cands {
		if i < len(titleVecs) {
			sims[c.index] = embeddings.Cosine(queryVec, titleVecs[i])
		}
	}
	return sims
}

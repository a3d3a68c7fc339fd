// Package pipeline runs the article -> phrases -> ranked links flow.
package pipeline

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/linkscout/citefinder/internal/config"
	"github.com/linkscout/citefinder/internal/keywords"
	"github.com/linkscout/citefinder/internal/metrics"
	"github.com/linkscout/citefinder/internal/query"
	"github.com/linkscout/citefinder/internal/ranking"
	"github.com/linkscout/citefinder/internal/search"
	"github.com/linkscout/citefinder/internal/textproc"
	"github.com/linkscout/citefinder/internal/tracing"
	"github.com/linkscout/citefinder/internal/util"
)

// LinkSelection is the ranked options for one accepted phrase
type LinkSelection struct {
	Phrase  string
	Options []ranking.ScoredLink
}

// Result is one analysis. Keywords follow accepted-phrase order.
type Result struct {
	Original string
	Keywords []LinkSelection
}

// Pipeline holds the stage components. All of them are safe for
// concurrent use and nothing here is mutated after New.
type Pipeline struct {
	extractor  *keywords.Extractor
	filter     *keywords.Filter
	builder    *query.Builder
	retriever  search.Retriever
	scorer     *ranking.Scorer
	topN       int
	maxResults int
	maxChars   int
	extraTerms []string
	logger     *zap.Logger
}

// Deps are the stage components
type Deps struct {
	Extractor *keywords.Extractor
	Filter    *keywords.Filter
	Builder   *query.Builder
	Retriever search.Retriever
	Scorer    *ranking.Scorer
}

func New(d Deps, rcfg config.RankingConfig, pcfg config.PipelineConfig, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	topN := rcfg.TopN
	if topN <= 0 || topN > config.MaxTopN {
		topN = config.MaxTopN
	}
	return &Pipeline{
		extractor:  d.Extractor,
		filter:     d.Filter,
		builder:    d.Builder,
		retriever:  d.Retriever,
		scorer:     d.Scorer,
		topN:       topN,
		maxResults: rcfg.MaxResults,
		maxChars:   pcfg.MaxTextChars,
		extraTerms: append([]string(nil), pcfg.ExtraTerms...),
		logger:     logger,
	}
}

// Run analyses text. Only a transport failure of the extraction call is
// returned as an error; every per-phrase failure becomes empty options.
func (p *Pipeline) Run(ctx context.Context, text string) (*Result, error) {
	start := time.Now()
	metrics.AnalysesStarted.Inc()
	ctx, span := tracing.StartSpan(ctx, "pipeline.run")

	res, err := p.run(ctx, text)

	tracing.EndSpan(span, err)
	phrases := 0
	if res != nil {
		phrases = len(res.Keywords)
	}
	metrics.RecordAnalysisMetrics(metrics.StatusLabel(err), time.Since(start).Seconds(), phrases)
	return res, err
}

func (p *Pipeline) run(ctx context.Context, text string) (*Result, error) {
	article := p.prepare(text)

	cands, err := p.extractor.ExtractStrict(ctx, article)
	if err != nil {
		return nil, err
	}
	accepted := p.filter.Filter(ctx, cands, article)
	p.logger.Debug("Phrases accepted",
		zap.Int("candidates", len(cands)),
		zap.Int("accepted", len(accepted)),
	)

	selections := make([]LinkSelection, len(accepted))
	g, gctx := errgroup.WithContext(ctx)
	for i, phrase := range accepted {
		i, phrase := i, phrase
		g.Go(func() error {
			selections[i] = p.selectFor(gctx, phrase, article)
			return nil
		})
	}
	_ = g.Wait()

	return &Result{Original: text, Keywords: selections}, nil
}

// selectFor never fails; errors are logged and give empty options
func (p *Pipeline) selectFor(ctx context.Context, phrase keywords.AcceptedPhrase, article string) LinkSelection {
	sel := LinkSelection{Phrase: phrase.Text, Options: []ranking.ScoredLink{}}

	links, err := p.links(ctx, phrase.Text, article, p.extrasFor(phrase))
	switch {
	case err != nil:
		p.logger.Warn("Search failed for phrase",
			zap.String("phrase", phrase.Text),
			zap.Error(err),
		)
		metrics.PhraseOutcomes.WithLabelValues("error").Inc()
	case len(links) == 0:
		metrics.PhraseOutcomes.WithLabelValues("empty").Inc()
	default:
		metrics.PhraseOutcomes.WithLabelValues("ok").Inc()
		sel.Options = links
	}
	return sel
}

// SearchOne ranks links for a single phrase. Unlike Run it reports search
// failures, wrapped as search.ErrUpstream.
func (p *Pipeline) SearchOne(ctx context.Context, phrase, text string) ([]ranking.ScoredLink, error) {
	phrase = strings.TrimSpace(phrase)
	if phrase == "" {
		return nil, errors.New("empty phrase")
	}
	return p.links(ctx, phrase, p.prepare(text), p.extraTerms)
}

func (p *Pipeline) links(ctx context.Context, phrase, article string, extras []string) ([]ranking.ScoredLink, error) {
	q := p.builder.Build(phrase, article, extras)
	raw, err := p.retriever.Search(ctx, q)
	if err != nil {
		return nil, err
	}
	if p.maxResults > 0 && len(raw) > p.maxResults {
		raw = raw[:p.maxResults]
	}
	scored := p.scorer.Score(ctx, raw, ranking.QueryContext{Phrase: q.Phrase, ContextTerms: q.ContextTerms})
	return ranking.Select(scored, p.topN), nil
}

// extrasFor adds the phrase's industry tag to the configured extra terms
func (p *Pipeline) extrasFor(phrase keywords.AcceptedPhrase) []string {
	if phrase.Industry == "" {
		return p.extraTerms
	}
	extras := make([]string, 0, len(p.extraTerms)+1)
	extras = append(extras, p.extraTerms...)
	return append(extras, strings.ToLower(strings.TrimSpace(phrase.Industry)))
}

// prepare reduces HTML to text and truncates on a rune boundary
func (p *Pipeline) prepare(text string) string {
	if textproc.LooksLikeHTML(text) {
		text = textproc.HTMLToText(text)
	}
	return strings.TrimSpace(util.TruncateRunes(text, p.maxChars))
}

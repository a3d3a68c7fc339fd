package embeddings

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"

	ometrics "github.com/linkscout/citefinder/internal/metrics"
	"github.com/linkscout/citefinder/internal/ratecontrol"
	"github.com/linkscout/citefinder/internal/tracing"
	"github.com/linkscout/citefinder/internal/util"
)

// ErrNoEmbedding is returned when the provider answers without vectors
var ErrNoEmbedding = errors.New("no embeddings returned")

// Service provides embedding generation with caching: LRU, then the
// optional shared cache, then the provider.
type Service struct {
	cfg      Config
	provider Provider
	cache    EmbeddingCache
	lru      *LocalLRU
	logger   *zap.Logger
}

// NewService builds a Service. cache may be nil.
func NewService(cfg Config, provider Provider, cache EmbeddingCache, logger *zap.Logger) *Service {
	c := cfg
	if c.Model == "" {
		c.Model = "text-embedding-3-small"
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = time.Hour
	}
	if c.MaxLRU == 0 {
		c.MaxLRU = 2048
	}
	if c.MaxTextLen == 0 {
		c.MaxTextLen = 6000
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{cfg: c, provider: provider, cache: cache, lru: NewLocalLRU(c.MaxLRU), logger: logger}
}

// Model returns the configured embedding model
func (s *Service) Model() string { return s.cfg.Model }

// Embed returns the vector for a single text
func (s *Service) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedBatch returns one vector per text, in input order, in at most one
// provider request for the uncached texts.
func (s *Service) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if s == nil {
		return nil, fmt.Errorf("embedding service not initialized")
	}
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	m := s.cfg.Model

	results := make([][]float32, len(texts))
	var uncachedTexts []string
	var uncachedIndices []int

	for i, text := range texts {
		text = util.TruncateRunes(text, s.cfg.MaxTextLen)
		key := MakeKey(m, text)

		if v, ok := s.lru.Get(ctx, key); ok {
			results[i] = v
			ometrics.CacheHits.WithLabelValues("lru").Inc()
			continue
		}
		if s.cache != nil {
			if v, ok := s.cache.Get(ctx, key); ok {
				results[i] = v
				s.lru.Set(ctx, key, v, s.cfg.CacheTTL)
				ometrics.CacheHits.WithLabelValues("redis").Inc()
				continue
			}
		}
		ometrics.CacheMisses.Inc()
		uncachedTexts = append(uncachedTexts, text)
		uncachedIndices = append(uncachedIndices, i)
	}

	if len(uncachedTexts) == 0 {
		return results, nil
	}

	start := time.Now()
	ctx, span := tracing.StartSpan(ctx, "embeddings.create")
	vectors, err := s.provider.CreateEmbeddings(ctx, m, uncachedTexts)
	if err == nil && len(vectors) != len(uncachedTexts) {
		err = fmt.Errorf("%w: got %d vectors for %d texts", ErrNoEmbedding, len(vectors), len(uncachedTexts))
	}
	tracing.EndSpan(span, err)
	ometrics.RecordEmbeddingMetrics(m, ometrics.StatusLabel(err), time.Since(start).Seconds())
	if err != nil {
		s.logger.Debug("embedding request failed", zap.Int("texts", len(uncachedTexts)), zap.Error(err))
		return nil, err
	}

	for i, vec := range vectors {
		if len(vec) == 0 {
			return nil, ErrNoEmbedding
		}
		results[uncachedIndices[i]] = vec

		key := MakeKey(m, uncachedTexts[i])
		s.lru.Set(ctx, key, vec, s.cfg.CacheTTL)
		if s.cache != nil {
			s.cache.Set(ctx, key, vec, s.cfg.CacheTTL)
		}
	}
	return results, nil
}

// OpenAIProvider calls the OpenAI embeddings endpoint
type OpenAIProvider struct {
	client *openai.Client
	limits *ratecontrol.Registry
}

// NewOpenAIProvider builds the provider. Requests wait on the "openai"
// limiter in limits, which may be nil.
func NewOpenAIProvider(apiKey, baseURL string, limits *ratecontrol.Registry) *OpenAIProvider {
	opts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(opts...)
	return &OpenAIProvider{client: &client, limits: limits}
}

func (p *OpenAIProvider) CreateEmbeddings(ctx context.Context, model string, texts []string) ([][]float32, error) {
	if err := p.limits.Wait(ctx, "openai"); err != nil {
		return nil, fmt.Errorf("openai embeddings rate limit wait: %w", err)
	}
	resp, err := p.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(model),
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || int(d.Index) >= len(out) {
			continue
		}
		vec := make([]float32, len(d.Embedding))
		for j, f := range d.Embedding {
			vec[j] = float32(f)
		}
		out[d.Index] = vec
	}
	return out, nil
}

// Cosine returns the cosine similarity of a and b, 0 when either is empty,
// the lengths differ or a vector has zero norm.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

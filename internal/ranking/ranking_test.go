package ranking

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/linkscout/citefinder/internal/config"
	"github.com/linkscout/citefinder/internal/search"
)

var testWeights = config.Weights{
	RankBase:     100,
	TLDHigh:      60,
	TLDMedium:    40,
	AuthorityMax: 50,
	Brand:        80,
	SemanticMax:  80,
}

type stubRanks struct {
	ranks map[string]int
	err   error
	calls int
	got   []string
}

func (s *stubRanks) PageRanks(_ context.Context, domains []string) (map[string]int, error) {
	s.calls++
	s.got = append(s.got, domains...)
	return s.ranks, s.err
}

// keyEmbedder returns fixed vectors per text; unknown text fails
type keyEmbedder struct {
	vecs map[string][]float32
}

func (e *keyEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	v, ok := e.vecs[text]
	if !ok {
		return nil, fmt.Errorf("no vector for %q", text)
	}
	return v, nil
}

func (e *keyEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.vecs[t]
	}
	return out, nil
}

func TestHostAndRegistrableDomain(t *testing.T) {
	tests := []struct {
		url    string
		host   string
		domain string
	}{
		{"https://www.who.int/news/item/1", "who.int", "who.int"},
		{"https://news.bbc.co.uk/a", "news.bbc.co.uk", "bbc.co.uk"},
		{"http://Blog.Example.com:8080/x", "blog.example.com", "example.com"},
		{"https://www.cdc.gov/diabetes", "cdc.gov", "cdc.gov"},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			host, err := Host(tt.url)
			require.NoError(t, err)
			assert.Equal(t, tt.host, host)
			assert.Equal(t, tt.domain, RegistrableDomain(host))
		})
	}
}

func TestNormalizeURL(t *testing.T) {
	got, err := NormalizeURL("HTTPS://Example.COM/Path/?utm_source=x&id=7#frag")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/Path/?id=7", got)

	_, err = NormalizeURL("ftp://example.com/file")
	assert.Error(t, err)
	_, err = NormalizeURL("/relative/only")
	assert.Error(t, err)
}

func TestSignals(t *testing.T) {
	policy := config.NewDomainPolicy(
		[]string{"gov", "edu", "who.int"},
		nil,
		map[string][]string{"electric cars": {"tesla.com"}},
	)

	t.Run("rank", func(t *testing.T) {
		fn := RankSignal(100)
		assert.Equal(t, 100.0, fn(Input{Index: 0}))
		assert.Equal(t, 97.0, fn(Input{Index: 3}))
	})

	t.Run("tld", func(t *testing.T) {
		fn := TLDSignal(60, 40, policy)
		assert.Equal(t, 60.0, fn(Input{Host: "cdc.gov"}))
		assert.Equal(t, 60.0, fn(Input{Host: "mit.edu"}))
		assert.Equal(t, 60.0, fn(Input{Host: "who.int"}))
		assert.Equal(t, 40.0, fn(Input{Host: "wikipedia.org"}))
		assert.Equal(t, 0.0, fn(Input{Host: "example.com"}))
	})

	t.Run("authority", func(t *testing.T) {
		fn := AuthoritySignal(50)
		assert.Equal(t, 0.0, fn(Input{PageRank: 8}), "unknown rank contributes nothing")
		assert.Equal(t, 40.0, fn(Input{PageRank: 8, HasPageRank: true}))
		assert.Equal(t, 50.0, fn(Input{PageRank: 14, HasPageRank: true}))
	})

	t.Run("brand", func(t *testing.T) {
		fn := BrandSignal(80, policy)
		assert.Equal(t, 80.0, fn(Input{Phrase: "Electric Cars", Host: "www.tesla.com"}))
		assert.Equal(t, 80.0, fn(Input{Phrase: "electric cars", Host: "tesla.com"}))
		assert.Equal(t, 0.0, fn(Input{Phrase: "electric cars", Host: "ford.com"}))
	})

	t.Run("semantic", func(t *testing.T) {
		fn := SemanticSignal(80)
		assert.Equal(t, 0.0, fn(Input{Similarity: 0.9}))
		assert.Equal(t, 40.0, fn(Input{Similarity: 0.5, HasSimilarity: true}))
		assert.Equal(t, 0.0, fn(Input{Similarity: -0.4, HasSimilarity: true}))
	})
}

func TestScoreRemovesBlacklistedAndRanksAuthorityFirst(t *testing.T) {
	ranks := &stubRanks{ranks: map[string]int{"who.int": 9, "diabetesnews.com": 3}}
	s := NewScorer(testWeights, config.DefaultDomainPolicy(), zaptest.NewLogger(t), WithPageRank(ranks))

	results := []search.RawResult{
		{Title: "Diabetes rates climbing", URL: "https://diabetesnews.com/rates"},
		{Title: "My diabetes blog", URL: "https://someone.blogspot.com/post"},
		{Title: "Diabetes fact sheet", URL: "https://www.who.int/news-room/fact-sheets/detail/diabetes"},
	}
	links := s.Score(context.Background(), results, QueryContext{Phrase: "diabetes rates", ContextTerms: []string{"reports", "rising"}})
	require.Len(t, links, 2)

	for _, l := range links {
		assert.NotContains(t, l.Domain, "blogspot")
	}
	selected := Select(links, 3)
	require.NotEmpty(t, selected)
	assert.Equal(t, "who.int", selected[0].Domain)
	assert.Equal(t, 1, ranks.calls, "one batched lookup per phrase")
	assert.ElementsMatch(t, []string{"diabetesnews.com", "who.int"}, ranks.got)

	// rank 98, tld 60, authority 45
	assert.InDelta(t, 203.0, selected[0].Score, 1e-9)
	assert.Equal(t, 45.0, selected[0].Signals["authority"])
}

func TestScoreSurvivesFailedLookups(t *testing.T) {
	ranks := &stubRanks{err: errors.New("boom")}
	s := NewScorer(testWeights, config.DefaultDomainPolicy(), zaptest.NewLogger(t),
		WithPageRank(ranks),
		WithEmbedder(&keyEmbedder{}),
	)

	links := s.Score(context.Background(), []search.RawResult{
		{Title: "A", URL: "https://a.example.com/"},
		{Title: "B", URL: "not a url"},
	}, QueryContext{Phrase: "phrase"})

	require.Len(t, links, 1)
	assert.Equal(t, 100.0, links[0].Score)
	assert.Equal(t, 0.0, links[0].Signals["authority"])
	assert.Equal(t, 0.0, links[0].Signals["semantic"])
}

func TestScoreSemanticSimilarity(t *testing.T) {
	emb := &keyEmbedder{vecs: map[string][]float32{
		"ev charger home":   {1, 0},
		"Home EV chargers":  {1, 0},
		"Unrelated recipes": {0, 1},
	}}
	s := NewScorer(testWeights, config.DefaultDomainPolicy(), zaptest.NewLogger(t), WithEmbedder(emb))

	links := s.Score(context.Background(), []search.RawResult{
		{Title: "Unrelated recipes", URL: "https://food.example/"},
		{Title: "Home EV chargers", URL: "https://chargers.example/"},
	}, QueryContext{Phrase: "ev charger", ContextTerms: []string{"home"}})

	require.Len(t, links, 2)
	assert.Equal(t, 0.0, links[0].Signals["semantic"])
	assert.InDelta(t, 80.0, links[1].Signals["semantic"], 1e-9)
	assert.Greater(t, links[1].Score, links[0].Score)
}

func TestScoreIsMonotonicInEachSignal(t *testing.T) {
	base := Input{Index: 2, Host: "example.com", Domain: "example.com", Phrase: "p"}
	s := NewScorer(testWeights, config.DefaultDomainPolicy(), nil)
	c := &candidate{url: "https://example.com", title: "t", host: "example.com"}

	before := s.apply(c, base).Score

	boosted := base
	boosted.PageRank, boosted.HasPageRank = 5, true
	assert.Greater(t, s.apply(c, boosted).Score, before)

	boosted = base
	boosted.Similarity, boosted.HasSimilarity = 0.3, true
	assert.Greater(t, s.apply(c, boosted).Score, before)

	boosted = base
	boosted.Index = 5
	assert.Less(t, s.apply(c, boosted).Score, before)
}

func TestSelectKeepsBestPerDomain(t *testing.T) {
	links := []ScoredLink{
		{URL: "https://example.com/a", Domain: "example.com", Score: 40},
		{URL: "https://other.org/", Domain: "other.org", Score: 50},
		{URL: "https://example.com/b", Domain: "example.com", Score: 65},
	}
	got := Select(links, 3)
	require.Len(t, got, 2)
	assert.Equal(t, "https://example.com/b", got[0].URL)
	assert.Equal(t, "https://other.org/", got[1].URL)
}

func TestSelectTiesKeepEarliest(t *testing.T) {
	links := []ScoredLink{
		{URL: "first", Domain: "d.com", Score: 10},
		{URL: "second", Domain: "d.com", Score: 10},
		{URL: "third", Domain: "e.com", Score: 10},
	}
	got := Select(links, 3)
	require.Len(t, got, 2)
	assert.Equal(t, "first", got[0].URL)
	assert.Equal(t, "third", got[1].URL)
}

func TestSelectBoundAndOrder(t *testing.T) {
	var links []ScoredLink
	for i := 0; i < 20; i++ {
		links = append(links, ScoredLink{
			URL:    fmt.Sprintf("https://d%d.com/%d", i%7, i),
			Domain: fmt.Sprintf("d%d.com", i%7),
			Score:  float64((i * 37) % 23),
		})
	}
	got := Select(links, 3)
	require.Len(t, got, 3)

	seen := map[string]bool{}
	for _, l := range got {
		assert.False(t, seen[l.Domain], "duplicate domain %s", l.Domain)
		seen[l.Domain] = true
	}
	assert.True(t, sort.SliceIsSorted(got, func(i, j int) bool { return got[i].Score > got[j].Score }))

	assert.Empty(t, Select(nil, 3))
	assert.Len(t, Select(links[:1], 3), 1, "never pads")
}

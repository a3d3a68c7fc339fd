package embeddings

import (
	"context"
	"errors"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/linkscout/citefinder/internal/config"
	"github.com/linkscout/citefinder/internal/ratecontrol"
)

type fakeProvider struct {
	mu    sync.Mutex
	calls [][]string
	err   error
}

func (f *fakeProvider) CreateEmbeddings(_ context.Context, _ string, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, append([]string(nil), texts...))
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1}
	}
	return out, nil
}

func TestUninitializedService(t *testing.T) {
	var s *Service
	if _, err := s.Embed(context.Background(), "hello"); err == nil {
		t.Fatalf("expected error when service is nil")
	}
}

func TestEmbedBatchUsesLRU(t *testing.T) {
	p := &fakeProvider{}
	s := NewService(Config{}, p, nil, zaptest.NewLogger(t))
	ctx := context.Background()

	first, err := s.EmbedBatch(ctx, []string{"alpha", "be"})
	require.NoError(t, err)
	assert.Equal(t, []float32{5, 1}, first[0])
	assert.Equal(t, []float32{2, 1}, first[1])

	second, err := s.EmbedBatch(ctx, []string{"be", "gamma", "alpha"})
	require.NoError(t, err)
	assert.Equal(t, []float32{2, 1}, second[0])
	assert.Equal(t, []float32{5, 1}, second[1])
	assert.Equal(t, []float32{5, 1}, second[2])

	require.Len(t, p.calls, 2)
	assert.Equal(t, []string{"gamma"}, p.calls[1], "only uncached texts reach the provider")
}

func TestEmbedProviderError(t *testing.T) {
	p := &fakeProvider{err: errors.New("quota exceeded")}
	s := NewService(Config{}, p, nil, zaptest.NewLogger(t))

	_, err := s.Embed(context.Background(), "text")
	assert.Error(t, err)
}

func TestEmbedTruncatesInput(t *testing.T) {
	p := &fakeProvider{}
	s := NewService(Config{MaxTextLen: 4}, p, nil, zaptest.NewLogger(t))

	v, err := s.Embed(context.Background(), "abcdefgh")
	require.NoError(t, err)
	assert.Equal(t, []float32{4, 1}, v)
}

func TestRedisCacheSharedAcrossServices(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()
	logger := zaptest.NewLogger(t)

	cache, err := NewRedisCache(ctx, config.RedisConfig{Addr: mr.Addr()}, logger)
	require.NoError(t, err)
	defer cache.Close()

	p1 := &fakeProvider{}
	_, err = NewService(Config{}, p1, cache, logger).Embed(ctx, "shared text")
	require.NoError(t, err)
	assert.True(t, mr.Exists(MakeKey("text-embedding-3-small", "shared text")))

	p2 := &fakeProvider{}
	v, err := NewService(Config{}, p2, cache, logger).Embed(ctx, "shared text")
	require.NoError(t, err)
	assert.Equal(t, []float32{11, 1}, v)
	assert.Empty(t, p2.calls, "second service reads through Redis")
}

func TestNewRedisCacheUnreachable(t *testing.T) {
	_, err := NewRedisCache(context.Background(), config.RedisConfig{Addr: "localhost:1"}, zaptest.NewLogger(t))
	assert.Error(t, err)
}

func TestLocalLRU(t *testing.T) {
	ctx := context.Background()
	l := NewLocalLRU(2)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	l.Set(ctx, "a", []float32{1}, time.Minute)
	l.Set(ctx, "b", []float32{2}, time.Minute)
	_, _ = l.Get(ctx, "a")
	l.Set(ctx, "c", []float32{3}, time.Minute)

	_, ok := l.Get(ctx, "b")
	assert.False(t, ok, "least recently used entry is evicted")
	_, ok = l.Get(ctx, "a")
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok = l.Get(ctx, "c")
	assert.False(t, ok, "expired entry is a miss")
	assert.Equal(t, 1, l.Len())
}

func TestVectorEncoding(t *testing.T) {
	v := []float32{0.25, -1.5, 3}
	got, ok := decodeVector(encodeVector(v))
	require.True(t, ok)
	assert.Equal(t, v, got)

	_, ok = decodeVector([]byte{1, 2, 3})
	assert.False(t, ok)
}

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2}, []float32{1, 2}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"empty", nil, []float32{1}, 0},
		{"length mismatch", []float32{1, 2}, []float32{1}, 0},
		{"zero norm", []float32{0, 0}, []float32{1, 1}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Cosine(tt.a, tt.b), 1e-9)
		})
	}
	assert.False(t, math.IsNaN(Cosine([]float32{0}, []float32{0})))
}

func TestOpenAIProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		// out of order on purpose
		_, _ = io.WriteString(w, `{"object":"list","model":"text-embedding-3-small",
			"data":[{"object":"embedding","index":1,"embedding":[0,1]},{"object":"embedding","index":0,"embedding":[1,0]}],
			"usage":{"prompt_tokens":2,"total_tokens":2}}`)
	}))
	defer srv.Close()

	p := NewOpenAIProvider("sk-test", srv.URL+"/", nil)
	out, err := p.CreateEmbeddings(context.Background(), "text-embedding-3-small", []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, out)
}

func TestOpenAIProviderWaitsOnLimit(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"object":"list","model":"m",
			"data":[{"object":"embedding","index":0,"embedding":[1,0]}],
			"usage":{"prompt_tokens":1,"total_tokens":1}}`)
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "rate_limits.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rate_limits:\n  provider_overrides:\n    openai:\n      rpm: 1\n      burst: 1\n"), 0o600))
	limits, err := ratecontrol.Load(path, zaptest.NewLogger(t))
	require.NoError(t, err)

	p := NewOpenAIProvider("sk-test", srv.URL+"/", limits)
	_, err = p.CreateEmbeddings(context.Background(), "m", []string{"a"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = p.CreateEmbeddings(ctx, "m", []string{"b"})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

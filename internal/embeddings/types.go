package embeddings

import (
	"context"
	"time"
)

// Config controls the embedding service behavior
type Config struct {
	// Model is the embedding model (e.g., text-embedding-3-small)
	Model string
	// CacheTTL sets TTL for embedding cache entries
	CacheTTL time.Duration
	// MaxLRU controls in-process LRU size
	MaxLRU int
	// MaxTextLen truncates input text, in runes
	MaxTextLen int
}

// Embedder produces vectors for text. Implemented by *Service and by fakes in tests.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Provider is the uncached upstream call
type Provider interface {
	CreateEmbeddings(ctx context.Context, model string, texts []string) ([][]float32, error)
}

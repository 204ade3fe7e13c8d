package memory

import (
	"context"
	"fmt"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/nextlevelbuilder/binlogqa/internal/providers"
)

const defaultLRUSize = 256

// CachedEmbedder wraps an EmbeddingProvider with an in-process LRU and an
// optional sqlite tier. Only texts missing from both tiers are sent, as a
// single request, and results come back in input order.
type CachedEmbedder struct {
	next providers.EmbeddingProvider
	lru  *lru.Cache[string, []float32]
	db   *EmbeddingCache // nil = memory only
}

// NewCachedEmbedder creates a cached embedder. size <= 0 uses the default.
func NewCachedEmbedder(next providers.EmbeddingProvider, db *EmbeddingCache, size int) (*CachedEmbedder, error) {
	if size <= 0 {
		size = defaultLRUSize
	}
	l, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("create lru: %w", err)
	}
	return &CachedEmbedder{next: next, lru: l, db: db}, nil
}

func (e *CachedEmbedder) Name() string  { return e.next.Name() }
func (e *CachedEmbedder) Model() string { return e.next.Model() }

// Embed implements providers.EmbeddingProvider.
func (e *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	keys := make([]string, len(texts))

	var missTexts []string
	var missIdx []int
	for i, text := range texts {
		keys[i] = ContentHash(text)
		if v, ok := e.lookup(keys[i]); ok {
			out[i] = v
			continue
		}
		missTexts = append(missTexts, text)
		missIdx = append(missIdx, i)
	}

	if len(missTexts) == 0 {
		slog.Debug("embedding cache hit", "count", len(texts))
		return out, nil
	}

	vectors, err := e.next.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(missTexts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, want %d", len(vectors), len(missTexts))
	}

	for j, i := range missIdx {
		out[i] = vectors[j]
		e.store(keys[i], vectors[j])
	}
	slog.Debug("embedding cache", "hits", len(texts)-len(missTexts), "misses", len(missTexts))
	return out, nil
}

func (e *CachedEmbedder) lookup(key string) ([]float32, bool) {
	if v, ok := e.lru.Get(key); ok {
		return v, true
	}
	if e.db == nil {
		return nil, false
	}
	v, ok := e.db.Get(key, e.next.Name(), e.next.Model())
	if ok {
		e.lru.Add(key, v)
	}
	return v, ok
}

func (e *CachedEmbedder) store(key string, v []float32) {
	e.lru.Add(key, v)
	if e.db == nil {
		return
	}
	if err := e.db.Put(key, e.next.Name(), e.next.Model(), v); err != nil {
		slog.Warn("embedding cache write failed", "error", err)
	}
}

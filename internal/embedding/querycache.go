package embedding

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// QueryCacheSize is the capacity of the single-text query cache.
const QueryCacheSize = 256

// QueryCache memoizes single-text embeddings such as the synthesized query.
// Concurrent misses on the same text share one provider call.
type QueryCache struct {
	embedder Embedder
	recent   *lru.Cache[string, []float32]
	group    singleflight.Group
}

// NewQueryCache wraps embedder with a bounded most-recently-used cache.
func NewQueryCache(embedder Embedder, size int) (*QueryCache, error) {
	if size <= 0 {
		size = QueryCacheSize
	}
	recent, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("create query cache: %w", err)
	}
	return &QueryCache{embedder: embedder, recent: recent}, nil
}

// Get returns the vector for text, embedding it on first use.
func (q *QueryCache) Get(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: query cannot be empty", ErrEmptyInput)
	}
	if v, ok := q.recent.Get(text); ok {
		return v, nil
	}

	res, err, _ := q.group.Do(text, func() (any, error) {
		if v, ok := q.recent.Get(text); ok {
			return v, nil
		}
		vecs, err := q.embedder.Embed(ctx, []string{text})
		if err != nil {
			return nil, fmt.Errorf("%w: query: %w", ErrEmbeddingFailed, err)
		}
		if len(vecs) != 1 {
			return nil, fmt.Errorf("%w: query: expected 1 vector, got %d", ErrEmbeddingFailed, len(vecs))
		}
		q.recent.Add(text, vecs[0])
		return vecs[0], nil
	})
	if err != nil {
		return nil, err
	}
	return res.([]float32), nil
}

// Len returns the number of cached queries.
func (q *QueryCache) Len() int {
	return q.recent.Len()
}

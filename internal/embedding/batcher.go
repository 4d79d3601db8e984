package embedding

import (
	"context"
	"fmt"
)

// MaxBatchSize is the largest batch forwarded to a provider, regardless of
// the configured batch size; smaller batches complete faster.
const MaxBatchSize = 16

// Batcher forwards cache misses to an Embedder in bounded batches and writes
// the results back into the cache.
type Batcher struct {
	embedder  Embedder
	cache     *Cache
	batchSize int
}

// NewBatcher creates a batcher. batchSize is clamped to [1, MaxBatchSize];
// zero or negative selects MaxBatchSize.
func NewBatcher(embedder Embedder, cache *Cache, batchSize int) *Batcher {
	if batchSize <= 0 || batchSize > MaxBatchSize {
		batchSize = MaxBatchSize
	}
	if cache == nil {
		cache = NewCache()
	}
	return &Batcher{embedder: embedder, cache: cache, batchSize: batchSize}
}

// BatchSize returns the effective batch size.
func (b *Batcher) BatchSize() int { return b.batchSize }

// Cache returns the cache the batcher reads and writes.
func (b *Batcher) Cache() *Cache { return b.cache }

// EmbedMany returns one vector per input text, in input order.
func (b *Batcher) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))

	// Collect misses, deduplicated by key so a text is embedded once per call.
	var missKeys []string
	var missTexts []string
	pending := make(map[string][]int)
	for i, text := range texts {
		key := CacheKey(text)
		if v, ok := b.cache.getKey(key); ok {
			out[i] = v
			continue
		}
		if _, seen := pending[key]; !seen {
			missKeys = append(missKeys, key)
			missTexts = append(missTexts, text)
		}
		pending[key] = append(pending[key], i)
	}

	for start := 0; start < len(missTexts); start += b.batchSize {
		end := min(start+b.batchSize, len(missTexts))
		batch := missTexts[start:end]

		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vecs, err := b.embedder.Embed(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("%w: batch %d-%d: %w", ErrEmbeddingFailed, start, end, err)
		}
		if len(vecs) != len(batch) {
			return nil, fmt.Errorf("%w: expected %d vectors, got %d", ErrEmbeddingFailed, len(batch), len(vecs))
		}

		for j, vec := range vecs {
			key := missKeys[start+j]
			b.cache.putKey(key, vec)
			for _, idx := range pending[key] {
				out[idx] = vec
			}
		}
	}

	return out, nil
}

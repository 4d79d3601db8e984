package embedding

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingEmbedder returns a deterministic vector per text and records calls.
type countingEmbedder struct {
	mu      sync.Mutex
	calls   int
	batches [][]string
	perText map[string]int
	fail    error
}

func newCountingEmbedder() *countingEmbedder {
	return &countingEmbedder{perText: make(map[string]int)}
}

func (e *countingEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	e.batches = append(e.batches, append([]string(nil), texts...))
	if e.fail != nil {
		return nil, e.fail
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		e.perText[t]++
		h := fnv.New32a()
		h.Write([]byte(t))
		sum := h.Sum32()
		out[i] = []float32{float32(sum%97) + 1, float32(sum%89) + 1, float32(len(t))}
	}
	return out, nil
}

func (e *countingEmbedder) textCalls(t string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.perText[t]
}

func TestCacheKey_FullTextDigest(t *testing.T) {
	prefix := strings.Repeat("a", 100)
	k1 := CacheKey(prefix + " first tail")
	k2 := CacheKey(prefix + " second tail")
	assert.NotEqual(t, k1, k2, "texts sharing a 100-char prefix must not alias")
	assert.Equal(t, k1, CacheKey(prefix+" first tail"))
	assert.Len(t, k1, 64)
}

func TestCache_GetPut(t *testing.T) {
	c := NewCache()
	_, ok := c.Get("missing")
	assert.False(t, ok)

	c.Put("hello", []float32{1, 2})
	v, ok := c.Get("hello")
	require.True(t, ok)
	assert.Equal(t, []float32{1, 2}, v)
	assert.Equal(t, 1, c.Len())
}

func TestCache_ConcurrentAccess(t *testing.T) {
	c := NewCache()
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			text := fmt.Sprintf("text-%d", i%10)
			c.Put(text, []float32{float32(i % 10)})
			v, ok := c.Get(text)
			if assert.True(t, ok) {
				assert.Equal(t, float32(i%10), v[0])
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 10, c.Len())
}

func TestBatcher_PreservesOrderAndBatches(t *testing.T) {
	emb := newCountingEmbedder()
	b := NewBatcher(emb, NewCache(), 32)
	assert.Equal(t, MaxBatchSize, b.BatchSize(), "configured size above the cap is clamped")

	texts := make([]string, 40)
	for i := range texts {
		texts[i] = fmt.Sprintf("paragraph number %d", i)
	}
	vecs, err := b.EmbedMany(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vecs, len(texts))

	direct, err := emb.Embed(context.Background(), texts)
	require.NoError(t, err)
	assert.Equal(t, direct, vecs)

	require.GreaterOrEqual(t, len(emb.batches), 3)
	assert.Len(t, emb.batches[0], 16)
	assert.Len(t, emb.batches[1], 16)
	assert.Len(t, emb.batches[2], 8)
}

func TestBatcher_SmallerConfiguredBatch(t *testing.T) {
	emb := newCountingEmbedder()
	b := NewBatcher(emb, nil, 4)
	_, err := b.EmbedMany(context.Background(), []string{"a", "b", "c", "d", "e"})
	require.NoError(t, err)
	require.Len(t, emb.batches, 2)
	assert.Len(t, emb.batches[0], 4)
	assert.Len(t, emb.batches[1], 1)
}

func TestBatcher_CacheIdempotence(t *testing.T) {
	emb := newCountingEmbedder()
	b := NewBatcher(emb, NewCache(), 16)
	ctx := context.Background()

	first, err := b.EmbedMany(ctx, []string{"same text"})
	require.NoError(t, err)
	second, err := b.EmbedMany(ctx, []string{"same text"})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, emb.textCalls("same text"))
	assert.Equal(t, 1, emb.calls)
}

func TestBatcher_OnlyMissesForwarded(t *testing.T) {
	emb := newCountingEmbedder()
	cache := NewCache()
	cache.Put("cached", []float32{9, 9, 9})
	b := NewBatcher(emb, cache, 16)

	vecs, err := b.EmbedMany(context.Background(), []string{"cached", "fresh", "fresh"})
	require.NoError(t, err)
	assert.Equal(t, []float32{9, 9, 9}, vecs[0])
	assert.Equal(t, vecs[1], vecs[2])
	require.Len(t, emb.batches, 1)
	assert.Equal(t, []string{"fresh"}, emb.batches[0])

	_, ok := cache.Get("fresh")
	assert.True(t, ok, "results are written back to the cache")
}

func TestBatcher_ProviderFailure(t *testing.T) {
	emb := newCountingEmbedder()
	emb.fail = errors.New("model crashed")
	b := NewBatcher(emb, NewCache(), 16)

	_, err := b.EmbedMany(context.Background(), []string{"x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmbeddingFailed)
	assert.Contains(t, err.Error(), "model crashed")
}

type shortEmbedder struct{}

func (shortEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	return [][]float32{{1}}, nil
}

func TestBatcher_VectorCountMismatch(t *testing.T) {
	b := NewBatcher(shortEmbedder{}, NewCache(), 16)
	_, err := b.EmbedMany(context.Background(), []string{"a", "b"})
	assert.ErrorIs(t, err, ErrEmbeddingFailed)
}

func TestBatcher_EmptyInput(t *testing.T) {
	emb := newCountingEmbedder()
	vecs, err := NewBatcher(emb, nil, 16).EmbedMany(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vecs)
	assert.Zero(t, emb.calls)
}

func TestQueryCache_SingleCallPerQuery(t *testing.T) {
	emb := newCountingEmbedder()
	qc, err := NewQueryCache(emb, 0)
	require.NoError(t, err)

	var wg sync.WaitGroup
	var failures atomic.Int32
	results := make([][]float32, 20)
	for i := range 20 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := qc.Get(context.Background(), "planner needs to plan")
			if err != nil {
				failures.Add(1)
				return
			}
			results[i] = v
		}(i)
	}
	wg.Wait()

	assert.Zero(t, failures.Load())
	assert.Equal(t, 1, emb.textCalls("planner needs to plan"))
	for _, r := range results {
		assert.Equal(t, results[0], r)
	}
}

func TestQueryCache_Bounded(t *testing.T) {
	emb := newCountingEmbedder()
	qc, err := NewQueryCache(emb, 2)
	require.NoError(t, err)
	ctx := context.Background()

	for _, q := range []string{"q1", "q2", "q3"} {
		_, err := qc.Get(ctx, q)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, qc.Len())

	_, err = qc.Get(ctx, "q1")
	require.NoError(t, err)
	assert.Equal(t, 2, emb.textCalls("q1"), "evicted query is embedded again")
}

func TestQueryCache_Errors(t *testing.T) {
	emb := newCountingEmbedder()
	emb.fail = errors.New("offline")
	qc, err := NewQueryCache(emb, 0)
	require.NoError(t, err)

	_, err = qc.Get(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyInput)

	_, err = qc.Get(context.Background(), "q")
	assert.ErrorIs(t, err, ErrEmbeddingFailed)
}

func TestNewProvider_UnknownProvider(t *testing.T) {
	_, err := NewProvider(ProviderConfig{Provider: "word2vec"})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestInstrumented_RecordsStats(t *testing.T) {
	stats := NewStats(0)
	p := Instrument(fakeProvider{newCountingEmbedder()}, stats, NewMetrics(nil, discardLogger()))

	_, err := p.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	snap := stats.Snapshot()
	assert.Equal(t, 1, snap.Count)
	assert.Equal(t, 2, snap.Texts)
}

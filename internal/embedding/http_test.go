package embedding

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	*countingEmbedder
}

func (fakeProvider) Name() string   { return "fake" }
func (fakeProvider) Dimension() int { return 3 }
func (fakeProvider) Close() error   { return nil }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHTTPProvider_TEI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embed", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req teiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Truncate)
		out := make([][]float32, len(req.Inputs))
		for i := range req.Inputs {
			out[i] = []float32{float32(i), 1}
		}
		json.NewEncoder(w).Encode(out)
	}))
	defer srv.Close()

	p, err := NewHTTPProvider(HTTPConfig{BaseURL: srv.URL + "/", APIKey: "secret"})
	require.NoError(t, err)
	assert.Equal(t, FormatTEI, p.Name())

	vecs, err := p.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{0, 1}, {1, 1}}, vecs)
	assert.Equal(t, 2, p.Dimension())
}

func TestHTTPProvider_OpenAIReordersByIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		var req openAIRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "text-embedding-3-small", req.Model)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[{"index":1,"embedding":[0,2]},{"index":0,"embedding":[1,0]}]}`))
	}))
	defer srv.Close()

	p, err := NewHTTPProvider(HTTPConfig{Format: FormatOpenAI, BaseURL: srv.URL})
	require.NoError(t, err)

	vecs, err := p.Embed(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {0, 2}}, vecs)
}

func TestHTTPProvider_RetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("warming up"))
			return
		}
		w.Write([]byte(`[[1,2,3]]`))
	}))
	defer srv.Close()

	p, err := NewHTTPProvider(HTTPConfig{BaseURL: srv.URL, RetryBase: time.Millisecond})
	require.NoError(t, err)

	vecs, err := p.Embed(context.Background(), []string{"x"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 2, 3}}, vecs)
	assert.Equal(t, int32(3), calls.Load())
}

func TestHTTPProvider_RetriesExhausted(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p, err := NewHTTPProvider(HTTPConfig{BaseURL: srv.URL, RetryBase: time.Millisecond})
	require.NoError(t, err)

	_, err = p.Embed(context.Background(), []string{"x"})
	assert.ErrorIs(t, err, ErrEmbeddingFailed)
	assert.True(t, IsRetryable(err))
	assert.Equal(t, int32(MaxRetries), calls.Load())
}

func TestHTTPProvider_NoBackoffAfterLastAttempt(t *testing.T) {
	var mu sync.Mutex
	var last time.Time
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		last = time.Now()
		mu.Unlock()
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	// The backoff after a third attempt would be at least 400ms.
	p, err := NewHTTPProvider(HTTPConfig{BaseURL: srv.URL, RetryBase: 100 * time.Millisecond})
	require.NoError(t, err)

	_, err = p.Embed(context.Background(), []string{"x"})
	require.ErrorIs(t, err, ErrEmbeddingFailed)

	mu.Lock()
	sinceLast := time.Since(last)
	mu.Unlock()
	assert.Less(t, sinceLast, 200*time.Millisecond)
}

func TestHTTPProvider_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad input", http.StatusBadRequest)
	}))
	defer srv.Close()

	p, err := NewHTTPProvider(HTTPConfig{BaseURL: srv.URL, RetryBase: time.Millisecond})
	require.NoError(t, err)

	_, err = p.Embed(context.Background(), []string{"x"})
	assert.ErrorIs(t, err, ErrEmbeddingFailed)
	assert.False(t, IsRetryable(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestHTTPProvider_DimensionMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[[1,2],[1,2,3]]`))
	}))
	defer srv.Close()

	p, err := NewHTTPProvider(HTTPConfig{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = p.Embed(context.Background(), []string{"a", "b"})
	assert.ErrorIs(t, err, ErrEmbeddingFailed)
}

func TestNewHTTPProvider_Validation(t *testing.T) {
	_, err := NewHTTPProvider(HTTPConfig{})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewHTTPProvider(HTTPConfig{BaseURL: "http://x", Format: "grpc"})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestHTTPProvider_EmptyInput(t *testing.T) {
	p, err := NewHTTPProvider(HTTPConfig{BaseURL: "http://127.0.0.1:1"})
	require.NoError(t, err)
	_, err = p.Embed(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestBackoffBounds(t *testing.T) {
	base := 10 * time.Millisecond
	for attempt := range 8 {
		d := Backoff(attempt, base)
		want := min(time.Duration(1<<uint(attempt))*base, 30*base)
		assert.GreaterOrEqual(t, d, want)
		assert.LessOrEqual(t, d, want+want/2)
	}
}

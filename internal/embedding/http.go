package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"
)

// Wire formats understood by HTTPProvider.
const (
	FormatTEI    = "tei"
	FormatOpenAI = "openai"
)

// HTTPConfig configures a remote embedding service.
type HTTPConfig struct {
	Format    string // FormatTEI or FormatOpenAI
	BaseURL   string
	Model     string
	APIKey    string
	Timeout   time.Duration
	RetryBase time.Duration // Base delay between retries of transient failures.
	Dimension int           // Expected dimension; 0 learns it from the first response.
}

// HTTPProvider calls a TEI /embed endpoint or an OpenAI-compatible
// /embeddings endpoint.
type HTTPProvider struct {
	cfg        HTTPConfig
	httpClient *http.Client

	mu        sync.Mutex
	dimension int
}

// NewHTTPProvider validates cfg and creates the client.
func NewHTTPProvider(cfg HTTPConfig) (*HTTPProvider, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: base URL required", ErrInvalidConfig)
	}
	switch cfg.Format {
	case FormatTEI, FormatOpenAI:
	case "":
		cfg.Format = FormatTEI
	default:
		return nil, fmt.Errorf("%w: unknown format %q", ErrInvalidConfig, cfg.Format)
	}
	if cfg.Format == FormatOpenAI && cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &HTTPProvider{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		dimension:  cfg.Dimension,
	}, nil
}

func (p *HTTPProvider) Name() string { return p.cfg.Format }

// Dimension returns the configured dimension, or 0 until known.
func (p *HTTPProvider) Dimension() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dimension
}

// Embed sends texts in one request, retrying transient failures.
func (p *HTTPProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
	}

	var vecs [][]float32
	var lastErr error
	for attempt := range MaxRetries {
		vecs, lastErr = p.embedOnce(ctx, texts)
		if lastErr == nil || !IsRetryable(lastErr) || attempt == MaxRetries-1 {
			break
		}
		select {
		case <-time.After(Backoff(attempt, p.cfg.RetryBase)):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if IsRetryable(lastErr) {
		return nil, fmt.Errorf("%w: retries exhausted: %w", ErrEmbeddingFailed, lastErr)
	}
	if lastErr != nil {
		return nil, lastErr
	}

	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("%w: expected %d vectors, got %d", ErrEmbeddingFailed, len(texts), len(vecs))
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, v := range vecs {
		if p.dimension == 0 {
			p.dimension = len(v)
		}
		if len(v) != p.dimension {
			return nil, fmt.Errorf("%w: vector %d has dimension %d, expected %d", ErrEmbeddingFailed, i, len(v), p.dimension)
		}
	}
	return vecs, nil
}

type teiRequest struct {
	Inputs   []string `json:"inputs"`
	Truncate bool     `json:"truncate"`
}

type openAIRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type openAIItem struct {
	Index     int       `json:"index"`
	Embedding []float32 `json:"embedding"`
}

type openAIResponse struct {
	Data  []openAIItem `json:"data"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (p *HTTPProvider) embedOnce(ctx context.Context, texts []string) ([][]float32, error) {
	var reqBody any
	url := p.cfg.BaseURL + "/embed"
	if p.cfg.Format == FormatOpenAI {
		reqBody = openAIRequest{Input: texts, Model: p.cfg.Model}
		url = p.cfg.BaseURL + "/embeddings"
	} else {
		reqBody = teiRequest{Inputs: texts, Truncate: true}
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	}

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrEmbeddingFailed, p.cfg.Format, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, &RetryableError{
			StatusCode: resp.StatusCode,
			Message:    string(respBody),
		}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d: %s", ErrEmbeddingFailed, resp.StatusCode, truncate(string(respBody), 200))
	}

	if p.cfg.Format == FormatTEI {
		var vecs [][]float32
		if err := json.Unmarshal(respBody, &vecs); err != nil {
			return nil, fmt.Errorf("%w: decode response: %v", ErrEmbeddingFailed, err)
		}
		return vecs, nil
	}

	var apiResp openAIResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrEmbeddingFailed, err)
	}
	if apiResp.Error != nil {
		return nil, fmt.Errorf("%w: %s: %s", ErrEmbeddingFailed, apiResp.Error.Type, apiResp.Error.Message)
	}
	data := apiResp.Data
	slices.SortStableFunc(data, func(a, b openAIItem) int { return a.Index - b.Index })
	vecs := make([][]float32, len(data))
	for i, d := range data {
		vecs[i] = d.Embedding
	}
	return vecs, nil
}

// Close releases idle connections.
func (p *HTTPProvider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}

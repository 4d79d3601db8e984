// Package embedding turns text into vectors through a pluggable provider,
// with caching and batching in front of it.
package embedding

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrEmptyInput indicates empty or nil input texts.
	ErrEmptyInput = errors.New("empty input texts")

	// ErrInvalidConfig indicates an unusable provider configuration.
	ErrInvalidConfig = errors.New("invalid embedding configuration")

	// ErrEmbeddingFailed indicates the embedding capability itself failed.
	ErrEmbeddingFailed = errors.New("embedding failed")
)

// Embedder converts texts into vectors. Output order matches input order and
// identical input must produce identical output.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Provider is an Embedder backed by a model or remote service.
type Provider interface {
	Embedder
	Name() string
	Dimension() int
	Close() error
}

// ProviderConfig selects and configures a provider.
type ProviderConfig struct {
	// Provider is "fastembed" (local ONNX), "tei" or "openai".
	Provider string
	Model    string
	BaseURL  string
	APIKey   string
	CacheDir string
	HTTP     HTTPConfig
}

// NewProvider builds the provider named by cfg.Provider.
func NewProvider(cfg ProviderConfig) (Provider, error) {
	switch cfg.Provider {
	case "fastembed", "":
		p, err := NewFastEmbedProvider(FastEmbedConfig{
			Model:    cfg.Model,
			CacheDir: cfg.CacheDir,
		})
		if err != nil {
			return nil, err
		}
		return p, nil
	case FormatTEI, FormatOpenAI:
		hc := cfg.HTTP
		hc.Format = cfg.Provider
		hc.BaseURL = cfg.BaseURL
		hc.Model = cfg.Model
		hc.APIKey = cfg.APIKey
		p, err := NewHTTPProvider(hc)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, cfg.Provider)
	}
}

//go:build cgo

package embedding

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	fastembed "github.com/anush008/fastembed-go"
)

// DefaultModel is the sentence-transformers model used when none is configured.
const DefaultModel = "sentence-transformers/all-MiniLM-L6-v2"

// FastEmbedConfig holds configuration for the local ONNX provider.
type FastEmbedConfig struct {
	// Model is a friendly model name, e.g. sentence-transformers/all-MiniLM-L6-v2.
	Model string
	// CacheDir is where model files are downloaded. Defaults to ./local_cache.
	CacheDir string
	// MaxLength is the maximum input sequence length. Defaults to 512.
	MaxLength int
}

var modelMapping = map[string]fastembed.EmbeddingModel{
	"sentence-transformers/all-MiniLM-L6-v2": fastembed.AllMiniLML6V2,
	"all-MiniLM-L6-v2":                       fastembed.AllMiniLML6V2,
	"BAAI/bge-small-en-v1.5":                 fastembed.BGESmallENV15,
	"BAAI/bge-small-en":                      fastembed.BGESmallEN,
	"BAAI/bge-base-en-v1.5":                  fastembed.BGEBaseENV15,
	"BAAI/bge-base-en":                       fastembed.BGEBaseEN,
}

var modelDimensions = map[fastembed.EmbeddingModel]int{
	fastembed.AllMiniLML6V2: 384,
	fastembed.BGESmallENV15: 384,
	fastembed.BGESmallEN:    384,
	fastembed.BGEBaseENV15:  768,
	fastembed.BGEBaseEN:     768,
}

// FastEmbedProvider embeds text with a local ONNX model.
type FastEmbedProvider struct {
	mu        sync.Mutex
	model     *fastembed.FlagEmbedding
	modelName string
	dimension int
}

// NewFastEmbedProvider loads the model, downloading it into CacheDir if needed.
func NewFastEmbedProvider(cfg FastEmbedConfig) (*FastEmbedProvider, error) {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	model, ok := modelMapping[cfg.Model]
	if !ok {
		model = fastembed.EmbeddingModel(cfg.Model)
		if _, known := modelDimensions[model]; !known {
			return nil, fmt.Errorf("%w: unsupported model %q", ErrInvalidConfig, cfg.Model)
		}
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = filepath.Join(".", "local_cache")
	}
	if cfg.MaxLength == 0 {
		cfg.MaxLength = 512
	}

	showProgress := false
	flagEmbed, err := fastembed.NewFlagEmbedding(&fastembed.InitOptions{
		Model:                model,
		CacheDir:             cfg.CacheDir,
		MaxLength:            cfg.MaxLength,
		ShowDownloadProgress: &showProgress,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: load %s: %v", ErrInvalidConfig, cfg.Model, err)
	}

	return &FastEmbedProvider{
		model:     flagEmbed,
		modelName: cfg.Model,
		dimension: modelDimensions[model],
	}, nil
}

func (p *FastEmbedProvider) Name() string { return "fastembed:" + p.modelName }

func (p *FastEmbedProvider) Dimension() int { return p.dimension }

// Embed encodes texts without a passage/query prefix so section, paragraph
// and query vectors share one space.
func (p *FastEmbedProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// The ONNX session is not safe for concurrent Run calls.
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.model == nil {
		return nil, fmt.Errorf("%w: provider is closed", ErrEmbeddingFailed)
	}

	vecs, err := p.model.Embed(texts, len(texts))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	return vecs, nil
}

// Close releases the ONNX session.
func (p *FastEmbedProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.model != nil {
		err := p.model.Destroy()
		p.model = nil
		return err
	}
	return nil
}

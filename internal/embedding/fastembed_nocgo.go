//go:build !cgo

package embedding

import (
	"context"
	"errors"
)

// DefaultModel is the sentence-transformers model used when none is configured.
const DefaultModel = "sentence-transformers/all-MiniLM-L6-v2"

// ErrFastEmbedNotAvailable is returned when the binary was built without CGO.
var ErrFastEmbedNotAvailable = errors.New("fastembed: not available without CGO, use the tei or openai provider")

// FastEmbedConfig holds configuration for the local ONNX provider.
type FastEmbedConfig struct {
	Model     string
	CacheDir  string
	MaxLength int
}

// FastEmbedProvider is unavailable in non-CGO builds.
type FastEmbedProvider struct{}

func NewFastEmbedProvider(_ FastEmbedConfig) (*FastEmbedProvider, error) {
	return nil, ErrFastEmbedNotAvailable
}

func (p *FastEmbedProvider) Name() string { return "fastembed" }

func (p *FastEmbedProvider) Dimension() int { return 0 }

func (p *FastEmbedProvider) Embed(_ context.Context, _ []string) ([][]float32, error) {
	return nil, ErrFastEmbedNotAvailable
}

func (p *FastEmbedProvider) Close() error { return nil }

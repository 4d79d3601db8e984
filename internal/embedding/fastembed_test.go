//go:build cgo

package embedding

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFastEmbedProvider_EmbedAfterClose(t *testing.T) {
	p := &FastEmbedProvider{modelName: "sentence-transformers/all-MiniLM-L6-v2", dimension: 384}
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())

	_, err := p.Embed(context.Background(), []string{"hello"})
	assert.ErrorIs(t, err, ErrEmbeddingFailed)
}

package pipeline

import (
	"context"
	"fmt"

	"github.com/dgallion1/docrank/internal/chunker"
	"github.com/dgallion1/docrank/internal/embedding"
	"github.com/dgallion1/docrank/internal/rank"
)

// AnalyzerConfig tunes paragraph-level re-ranking.
type AnalyzerConfig struct {
	Paragraphs chunker.Config
	Threshold  float64 // Paragraphs must score strictly above this.
	TopN       int
}

// DefaultAnalyzerConfig returns a 0.30 threshold and the top 3 paragraphs.
func DefaultAnalyzerConfig() AnalyzerConfig {
	return AnalyzerConfig{
		Paragraphs: chunker.DefaultConfig(),
		Threshold:  0.30,
		TopN:       3,
	}
}

// Analyzer picks the paragraphs of a section most relevant to a query.
type Analyzer struct {
	batcher *embedding.Batcher
	cfg     AnalyzerConfig
}

// NewAnalyzer creates an analyzer that embeds through batcher.
func NewAnalyzer(batcher *embedding.Batcher, cfg AnalyzerConfig) *Analyzer {
	if cfg.TopN <= 0 {
		cfg.TopN = 3
	}
	return &Analyzer{batcher: batcher, cfg: cfg}
}

// Analyze returns at most TopN paragraphs of sectionText scoring above the
// threshold against query, best first. Paragraphs with equal scores keep
// document order.
func (a *Analyzer) Analyze(ctx context.Context, sectionText string, query []float32) ([]rank.Scored[string], error) {
	paras := chunker.Paragraphs(sectionText, a.cfg.Paragraphs)
	if len(paras) == 0 {
		return nil, nil
	}

	vecs, err := a.batcher.EmbedMany(ctx, paras)
	if err != nil {
		return nil, fmt.Errorf("embed paragraphs: %w", err)
	}

	candidates := make([]rank.Candidate[string], len(paras))
	for i, p := range paras {
		candidates[i] = rank.Candidate[string]{Payload: p, Vector: vecs[i]}
	}
	scored, err := rank.Rank(query, candidates)
	if err != nil {
		return nil, fmt.Errorf("rank paragraphs: %w", err)
	}

	kept := scored[:0]
	for _, s := range scored {
		if s.Score > a.cfg.Threshold {
			kept = append(kept, s)
		}
	}
	return kept[:min(len(kept), a.cfg.TopN)], nil
}

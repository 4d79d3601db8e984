// Package pipeline ranks the sections of a document collection against a
// persona's query and runs rank jobs for the HTTP API.
package pipeline

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dgallion1/docrank/internal/document"
	"github.com/dgallion1/docrank/internal/embedding"
	"github.com/dgallion1/docrank/internal/parser"
	"github.com/dgallion1/docrank/internal/rank"
	"github.com/dgallion1/docrank/internal/scenario"
	"github.com/dgallion1/docrank/internal/segment"
)

var (
	// ErrMissingDocument marks a collection entry whose file does not exist.
	ErrMissingDocument = errors.New("document not found")

	// ErrExtractionFailed marks a document that could not be read or had no text.
	ErrExtractionFailed = errors.New("text extraction failed")
)

// Output limits.
const (
	MaxWorkers        = 12
	TopSections       = 10
	SubsectionSources = 3
	MaxSubsections    = 9
)

// DefaultWorkers returns min(NumCPU+2, MaxWorkers).
func DefaultWorkers() int {
	return min(runtime.NumCPU()+2, MaxWorkers)
}

// Extractor reads the pages of a document on disk.
type Extractor interface {
	Extract(ctx context.Context, path string) ([]document.Page, error)
}

// Options tune a Runner.
type Options struct {
	Workers     int           // Concurrent document tasks, capped at MaxWorkers.
	BatchSize   int           // Embedding batch size, capped at embedding.MaxBatchSize.
	TaskTimeout time.Duration // Per-document extraction deadline; 0 disables.
	Segment     segment.Config
	Paragraphs  AnalyzerConfig
}

// Request is one ranking run over a document collection.
type Request struct {
	Persona   scenario.Persona
	Job       scenario.JobToBeDone
	Documents []document.Descriptor
}

// RequestFor resolves a scenario's collection against inputDir.
func RequestFor(sc *scenario.Scenario, inputDir string) Request {
	return Request{
		Persona:   sc.Persona,
		Job:       sc.Job,
		Documents: sc.Descriptors(inputDir),
	}
}

// RankedSection is a section scored against the run's query.
type RankedSection struct {
	Section       document.Section
	Document      string
	Score         float64
	OriginalIndex int // Position within its document's segmentation.
	DocumentIndex int // Position of the document in the collection.
}

// RunContext holds the per-run state shared by document tasks. A fresh one
// is built for every run so no vectors outlive it.
type RunContext struct {
	Batcher  *embedding.Batcher
	Queries  *embedding.QueryCache
	Analyzer *Analyzer
	Query    string
	Vector   []float32
}

// NewRunContext builds run state around embedder and embeds query once.
func NewRunContext(ctx context.Context, embedder embedding.Embedder, batchSize int, query string, acfg AnalyzerConfig) (*RunContext, error) {
	batcher := embedding.NewBatcher(embedder, embedding.NewCache(), batchSize)
	queries, err := embedding.NewQueryCache(embedder, embedding.QueryCacheSize)
	if err != nil {
		return nil, err
	}
	vec, err := queries.Get(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return &RunContext{
		Batcher:  batcher,
		Queries:  queries,
		Analyzer: NewAnalyzer(batcher, acfg),
		Query:    query,
		Vector:   vec,
	}, nil
}

// Runner executes ranking runs. The embedder is shared across runs; all
// caches are per run.
type Runner struct {
	embedder  embedding.Embedder
	extractor Extractor
	opts      Options
	log       *slog.Logger
	now       func() time.Time
}

// NewRunner creates a runner. Zero option values select defaults.
func NewRunner(embedder embedding.Embedder, extractor Extractor, opts Options, log *slog.Logger) *Runner {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers()
	}
	opts.Workers = min(opts.Workers, MaxWorkers)
	if opts.Segment.MaxPages <= 0 {
		opts.Segment = segment.DefaultConfig()
	}
	if opts.Paragraphs == (AnalyzerConfig{}) {
		opts.Paragraphs = DefaultAnalyzerConfig()
	}
	return &Runner{
		embedder:  embedder,
		extractor: extractor,
		opts:      opts,
		log:       log,
		now:       time.Now,
	}
}

// Workers returns the effective worker count.
func (r *Runner) Workers() int { return r.opts.Workers }

// Run ranks every section of the collection and assembles the output.
// Missing or unreadable documents are logged and left out; an embedding
// failure aborts the whole run.
func (r *Runner) Run(ctx context.Context, req Request) (*scenario.Output, error) {
	start := time.Now()
	out := scenario.NewOutput(req.Persona, req.Job, r.now().Format(time.RFC3339))
	if len(req.Documents) == 0 {
		r.log.Info("no documents to process")
		return out, nil
	}

	query := scenario.BuildQuery(req.Persona, req.Job)
	rc, err := NewRunContext(ctx, r.embedder, r.opts.BatchSize, query, r.opts.Paragraphs)
	if err != nil {
		return nil, err
	}

	// Each task writes only its own slot; nothing is read before Wait.
	results := make([][]RankedSection, len(req.Documents))
	succeeded := make([]bool, len(req.Documents))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Workers)
	for i, doc := range req.Documents {
		g.Go(func() error {
			ranked, err := r.processDocument(gctx, rc, i, doc)
			if err != nil {
				if errors.Is(err, ErrMissingDocument) || errors.Is(err, ErrExtractionFailed) {
					r.log.Warn("skipping document", "document", doc.Name, "error", err)
					return nil
				}
				return fmt.Errorf("document %s: %w", doc.Name, err)
			}
			results[i] = ranked
			succeeded[i] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []RankedSection
	for i, doc := range req.Documents {
		if !succeeded[i] {
			continue
		}
		out.Metadata.InputDocuments = append(out.Metadata.InputDocuments, doc.Name)
		all = append(all, results[i]...)
	}
	SortGlobal(all)

	top := all[:min(len(all), TopSections)]
	for i, rs := range top {
		out.ExtractedSections = append(out.ExtractedSections, scenario.ExtractedSection{
			Document:       rs.Document,
			PageNumber:     rs.Section.Page,
			SectionTitle:   rs.Section.Title,
			ImportanceRank: i + 1,
		})
	}

	for _, rs := range top[:min(len(top), SubsectionSources)] {
		paras, err := rc.Analyzer.Analyze(ctx, rs.Section.Text, rc.Vector)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if errors.Is(err, embedding.ErrEmbeddingFailed) {
				return nil, fmt.Errorf("analyze %s/%s: %w", rs.Document, rs.Section.Title, err)
			}
			r.log.Warn("subsection analysis failed",
				"document", rs.Document, "section", rs.Section.Title, "error", err)
			continue
		}
		for _, p := range paras {
			if len(out.SubsectionAnalysis) == MaxSubsections {
				break
			}
			out.SubsectionAnalysis = append(out.SubsectionAnalysis, scenario.SubsectionAnalysis{
				Document:     rs.Document,
				SectionTitle: rs.Section.Title,
				RefinedText:  p.Payload,
				PageNumber:   rs.Section.Page,
			})
		}
	}

	r.log.Info("run complete",
		"documents", len(req.Documents),
		"processed", len(out.Metadata.InputDocuments),
		"sections", len(all),
		"cached_vectors", rc.Batcher.Cache().Len(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

// processDocument extracts, segments and ranks one document.
func (r *Runner) processDocument(ctx context.Context, rc *RunContext, docIndex int, doc document.Descriptor) ([]RankedSection, error) {
	log := r.log.With("document", doc.Name)

	if _, err := os.Stat(doc.Path); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingDocument, doc.Path)
	}

	pages, err := r.extract(ctx, doc.Path)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %w", ErrExtractionFailed, err)
	}
	if !parser.HasText(pages) {
		return nil, fmt.Errorf("%w: no text", ErrExtractionFailed)
	}

	sections := segment.Segment(pages, r.opts.Segment)
	log.Debug("segmented", "pages", len(pages), "sections", len(sections))
	if len(sections) == 0 {
		return nil, nil
	}

	texts := make([]string, len(sections))
	for i, s := range sections {
		texts[i] = rank.SectionEmbeddingText(s.Title, s.Text)
	}
	vecs, err := rc.Batcher.EmbedMany(ctx, texts)
	if err != nil {
		return nil, err
	}

	candidates := make([]rank.Candidate[document.Section], len(sections))
	for i, s := range sections {
		candidates[i] = rank.Candidate[document.Section]{Payload: s, Vector: vecs[i]}
	}
	scored, err := rank.Rank(rc.Vector, candidates)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", embedding.ErrEmbeddingFailed, err)
	}

	ranked := make([]RankedSection, len(scored))
	for i, s := range scored {
		ranked[i] = RankedSection{
			Section:       s.Payload,
			Document:      doc.Name,
			Score:         s.Score,
			OriginalIndex: s.Index,
			DocumentIndex: docIndex,
		}
	}
	return ranked, nil
}

// extract applies the per-task timeout to extraction only.
func (r *Runner) extract(ctx context.Context, path string) ([]document.Page, error) {
	if r.opts.TaskTimeout <= 0 {
		return r.extractor.Extract(ctx, path)
	}
	tctx, cancel := context.WithTimeout(ctx, r.opts.TaskTimeout)
	defer cancel()
	pages, err := r.extractor.Extract(tctx, path)
	if err == nil && tctx.Err() != nil {
		err = tctx.Err()
	}
	return pages, err
}

// SortGlobal orders sections by score descending, then position within
// their document, then collection position. The order does not depend on
// which task finished first.
func SortGlobal(sections []RankedSection) {
	slices.SortStableFunc(sections, compareRanked)
}

func compareRanked(a, b RankedSection) int {
	switch {
	case a.Score > b.Score:
		return -1
	case a.Score < b.Score:
		return 1
	}
	return cmp.Or(
		cmp.Compare(a.OriginalIndex, b.OriginalIndex),
		cmp.Compare(a.DocumentIndex, b.DocumentIndex),
	)
}

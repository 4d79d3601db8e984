package embedding

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/dgallion1/docrank/internal/embedding"

// Metrics holds the OpenTelemetry instruments for provider calls.
type Metrics struct {
	duration  metric.Float64Histogram
	batchSize metric.Int64Histogram
	errors    metric.Int64Counter
}

// NewMetrics creates the instruments on mp, or on the global provider when mp
// is nil.
func NewMetrics(mp metric.MeterProvider, log *slog.Logger) *Metrics {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(instrumentationName)
	m := &Metrics{}
	var err error

	m.duration, err = meter.Float64Histogram(
		"docrank.embedding.duration_seconds",
		metric.WithDescription("Duration of embedding provider calls"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10),
	)
	if err != nil {
		log.Warn("failed to create duration histogram", "error", err)
	}

	m.batchSize, err = meter.Int64Histogram(
		"docrank.embedding.batch_size",
		metric.WithDescription("Number of texts per embedding provider call"),
		metric.WithUnit("{text}"),
		metric.WithExplicitBucketBoundaries(1, 2, 4, 8, 16, 32),
	)
	if err != nil {
		log.Warn("failed to create batch size histogram", "error", err)
	}

	m.errors, err = meter.Int64Counter(
		"docrank.embedding.errors_total",
		metric.WithDescription("Embedding provider call failures"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		log.Warn("failed to create errors counter", "error", err)
	}
	return m
}

// Record records one provider call.
func (m *Metrics) Record(ctx context.Context, provider string, d time.Duration, texts int, err error) {
	attrs := metric.WithAttributes(attribute.String("provider", provider))
	if m.duration != nil {
		m.duration.Record(ctx, d.Seconds(), attrs)
	}
	if m.batchSize != nil {
		m.batchSize.Record(ctx, int64(texts), attrs)
	}
	if err != nil && m.errors != nil {
		m.errors.Add(ctx, 1, attrs)
	}
}

// Instrumented wraps a Provider, recording latency stats and metrics for
// every call.
type Instrumented struct {
	Provider
	stats   *Stats
	metrics *Metrics
}

// Instrument wraps p. stats and metrics may be nil.
func Instrument(p Provider, stats *Stats, metrics *Metrics) *Instrumented {
	return &Instrumented{Provider: p, stats: stats, metrics: metrics}
}

func (i *Instrumented) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	start := time.Now()
	vecs, err := i.Provider.Embed(ctx, texts)
	elapsed := time.Since(start)
	if i.stats != nil && err == nil {
		i.stats.Record(elapsed.Milliseconds(), len(texts))
	}
	if i.metrics != nil {
		i.metrics.Record(ctx, i.Provider.Name(), elapsed, len(texts), err)
	}
	return vecs, err
}

// Stats returns the latency stats, or nil.
func (i *Instrumented) Stats() *Stats { return i.stats }

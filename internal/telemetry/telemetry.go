// Package telemetry sets up the OpenTelemetry metrics SDK. Instruments are
// always readable in-process; with an OTLP endpoint they are also exported.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// Config selects where metrics go.
type Config struct {
	Endpoint       string // OTLP/HTTP host:port; empty keeps metrics in-process
	Insecure       bool
	ExportInterval time.Duration
	ServiceName    string
	ServiceVersion string
}

// Provider owns the SDK MeterProvider and an in-process reader.
type Provider struct {
	mp     *sdkmetric.MeterProvider
	reader *sdkmetric.ManualReader
}

// Summary is one instrument aggregated over all attribute sets.
type Summary struct {
	Name  string  `json:"name"`
	Count uint64  `json:"count,omitempty"` // histogram recordings
	Sum   float64 `json:"sum"`
}

// New builds the MeterProvider. It does not install it globally.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "docrank"
	}
	if cfg.ExportInterval <= 0 {
		cfg.ExportInterval = 15 * time.Second
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
	)
	reader := sdkmetric.NewManualReader()
	opts := []sdkmetric.Option{sdkmetric.WithResource(res), sdkmetric.WithReader(reader)}

	if cfg.Endpoint != "" {
		expOpts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(stripScheme(cfg.Endpoint))}
		if cfg.Insecure {
			expOpts = append(expOpts, otlpmetrichttp.WithInsecure())
		}
		exporter, err := otlpmetrichttp.New(ctx, expOpts...)
		if err != nil {
			return nil, fmt.Errorf("create metric exporter: %w", err)
		}
		opts = append(opts, sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(cfg.ExportInterval)),
		))
	}

	return &Provider{mp: sdkmetric.NewMeterProvider(opts...), reader: reader}, nil
}

// MeterProvider returns the provider instruments should be created on.
func (p *Provider) MeterProvider() metric.MeterProvider { return p.mp }

// Summaries collects every instrument recorded so far, sorted by name.
func (p *Provider) Summaries(ctx context.Context) ([]Summary, error) {
	var rm metricdata.ResourceMetrics
	if err := p.reader.Collect(ctx, &rm); err != nil {
		return nil, fmt.Errorf("collect metrics: %w", err)
	}
	out := []Summary{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			s := Summary{Name: m.Name}
			switch data := m.Data.(type) {
			case metricdata.Histogram[float64]:
				for _, dp := range data.DataPoints {
					s.Count += dp.Count
					s.Sum += dp.Sum
				}
			case metricdata.Histogram[int64]:
				for _, dp := range data.DataPoints {
					s.Count += dp.Count
					s.Sum += float64(dp.Sum)
				}
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					s.Sum += float64(dp.Value)
				}
			case metricdata.Sum[float64]:
				for _, dp := range data.DataPoints {
					s.Sum += dp.Value
				}
			default:
				continue
			}
			out = append(out, s)
		}
	}
	slices.SortFunc(out, func(a, b Summary) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

// Shutdown flushes exporters and stops the readers.
func (p *Provider) Shutdown(ctx context.Context) error {
	if err := p.mp.Shutdown(ctx); err != nil && !errors.Is(err, sdkmetric.ErrReaderShutdown) {
		return fmt.Errorf("shutdown meter provider: %w", err)
	}
	return nil
}

// stripScheme removes http:// or https://; the OTLP HTTP exporter wants host:port.
func stripScheme(endpoint string) string {
	endpoint = strings.TrimPrefix(endpoint, "https://")
	return strings.TrimPrefix(endpoint, "http://")
}

// Command docrank ranks the sections of a document collection for a persona
// and the job they need to get done.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/metric"

	"github.com/dgallion1/docrank/internal/config"
	"github.com/dgallion1/docrank/internal/embedding"
	"github.com/dgallion1/docrank/internal/parser"
	"github.com/dgallion1/docrank/internal/pipeline"
	"github.com/dgallion1/docrank/internal/segment"
	"github.com/dgallion1/docrank/internal/telemetry"
)

var version = "dev"

var (
	verbose bool
	cfg     config.Config
	log     *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "docrank",
	Short: "Persona-driven document section ranking",
	Long: `docrank finds the sections of a document collection most relevant to a
persona and their job to be done, then picks the best paragraphs of the top
sections.

Example usage:
  docrank run "Test cases/Collection 1"       # Input/ and Output/ layout
  docrank run --scenario s.json --input-dir docs --output out.json
  docrank serve                               # HTTP API on $PORT`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
		cfg = config.Load()
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newTelemetry(ctx context.Context, cfg config.Config) (*telemetry.Provider, error) {
	tel, err := telemetry.New(ctx, telemetry.Config{
		Endpoint:       cfg.OTelEndpoint,
		Insecure:       cfg.OTelInsecure,
		ExportInterval: cfg.OTelExportInterval,
		ServiceVersion: version,
	})
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}
	return tel, nil
}

func shutdownTelemetry(tel *telemetry.Provider) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := tel.Shutdown(ctx); err != nil {
		log.Warn("telemetry shutdown", "error", err)
	}
}

// newProvider builds the configured embedding provider wrapped with latency
// stats and metrics.
func newProvider(cfg config.Config, stats *embedding.Stats, mp metric.MeterProvider) (*embedding.Instrumented, error) {
	p, err := embedding.NewProvider(embedding.ProviderConfig{
		Provider: cfg.EmbedProvider,
		Model:    cfg.EmbedModel,
		BaseURL:  cfg.EmbedURL,
		APIKey:   cfg.EmbedAPIKey,
		CacheDir: cfg.EmbedCacheDir,
		HTTP:     embedding.HTTPConfig{Timeout: cfg.EmbedTimeout},
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding provider: %w", err)
	}
	return embedding.Instrument(p, stats, embedding.NewMetrics(mp, log)), nil
}

func newRunner(cfg config.Config, embedder embedding.Embedder) *pipeline.Runner {
	extractor := &parser.Extractor{Options: parser.Options{
		MaxPages:          cfg.MaxPages,
		FallbackPdftotext: cfg.PDFFallbackPdftotext,
	}}
	return pipeline.NewRunner(embedder, extractor, pipeline.Options{
		Workers:     cfg.WorkerCount,
		BatchSize:   cfg.BatchSize,
		TaskTimeout: cfg.TaskTimeout,
		Segment:     segment.Config{MaxPages: cfg.MaxPages},
	}, log)
}

func newStats() *embedding.Stats {
	return embedding.NewStats(time.Hour)
}

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dgallion1/docrank/internal/pipeline"
	"github.com/dgallion1/docrank/internal/scenario"
)

const outputFileName = "challenge1b_output.json"

// Scenario file names tried inside a case's Input directory, in order.
var scenarioFileNames = []string{"input_scnerio.json", "input_scenario.json"}

var runCmd = &cobra.Command{
	Use:   "run [case-dir]",
	Short: "Rank one document collection and write the result JSON",
	Long: `Rank the documents of one collection against its scenario.

With a case directory the layout is:
  <case>/Input/input_scenario.json   scenario
  <case>/Input/                      documents
  <case>/Output/                     result (falls back to <case>/output)

Flags override any part of that layout.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().String("scenario", "", "scenario JSON file")
	runCmd.Flags().String("input-dir", "", "directory holding the collection's documents")
	runCmd.Flags().StringP("output", "o", "", "result JSON file")
	runCmd.Flags().Int("workers", 0, "parallel document workers (default from WORKER_COUNT)")
	runCmd.Flags().Int("batch-size", 0, "texts per embedding call (default from BATCH_SIZE)")
	rootCmd.AddCommand(runCmd)
}

// runPaths is where a run reads its scenario and documents and writes its result.
type runPaths struct {
	Scenario string
	InputDir string
	Output   string
}

// resolvePaths applies the case directory layout, then the explicit overrides.
func resolvePaths(caseDir string, override runPaths) (runPaths, error) {
	var p runPaths
	if caseDir != "" {
		info, err := os.Stat(caseDir)
		if err != nil {
			return p, fmt.Errorf("case directory: %w", err)
		}
		if !info.IsDir() {
			return p, fmt.Errorf("case directory: %s is not a directory", caseDir)
		}
		p.InputDir = filepath.Join(caseDir, "Input")
		for _, name := range scenarioFileNames {
			candidate := filepath.Join(p.InputDir, name)
			if _, err := os.Stat(candidate); err == nil {
				p.Scenario = candidate
				break
			}
		}
		outDir := filepath.Join(caseDir, "Output")
		if info, err := os.Stat(outDir); err != nil || !info.IsDir() {
			outDir = filepath.Join(caseDir, "output")
		}
		p.Output = filepath.Join(outDir, outputFileName)
	}

	if override.Scenario != "" {
		p.Scenario = override.Scenario
	}
	if override.InputDir != "" {
		p.InputDir = override.InputDir
	}
	if override.Output != "" {
		p.Output = override.Output
	}

	if p.Scenario == "" {
		if caseDir != "" {
			return p, fmt.Errorf("no scenario file in %s", filepath.Join(caseDir, "Input"))
		}
		return p, errors.New("a case directory or --scenario is required")
	}
	if p.InputDir == "" {
		p.InputDir = filepath.Dir(p.Scenario)
	}
	if p.Output == "" {
		p.Output = outputFileName
	}
	return p, nil
}

func runRun(cmd *cobra.Command, args []string) error {
	var caseDir string
	if len(args) == 1 {
		caseDir = args[0]
	}
	var override runPaths
	override.Scenario, _ = cmd.Flags().GetString("scenario")
	override.InputDir, _ = cmd.Flags().GetString("input-dir")
	override.Output, _ = cmd.Flags().GetString("output")

	paths, err := resolvePaths(caseDir, override)
	if err != nil {
		return err
	}
	if workers, _ := cmd.Flags().GetInt("workers"); workers > 0 {
		cfg.WorkerCount = workers
	}
	if batch, _ := cmd.Flags().GetInt("batch-size"); batch > 0 {
		cfg.BatchSize = batch
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	sc, err := scenario.Load(paths.Scenario)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tel, err := newTelemetry(ctx, cfg)
	if err != nil {
		return err
	}
	defer shutdownTelemetry(tel)

	provider, err := newProvider(cfg, newStats(), tel.MeterProvider())
	if err != nil {
		return err
	}
	defer provider.Close()

	runner := newRunner(cfg, provider)
	log.Info("starting run",
		"scenario", paths.Scenario,
		"input_dir", paths.InputDir,
		"documents", len(sc.Documents),
		"workers", runner.Workers(),
		"provider", provider.Name(),
	)

	start := time.Now()
	out, err := runner.Run(ctx, pipeline.RequestFor(sc, paths.InputDir))
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}

	if err := out.WriteFile(paths.Output); err != nil {
		return err
	}

	snap := provider.Stats().Snapshot()
	log.Info("run complete",
		"output", paths.Output,
		"documents", len(out.Metadata.InputDocuments),
		"sections", len(out.ExtractedSections),
		"subsections", len(out.SubsectionAnalysis),
		"embed_calls", snap.Count,
		"embed_texts", snap.Texts,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	if summaries, err := tel.Summaries(ctx); err == nil {
		for _, m := range summaries {
			log.Info("metric", "name", m.Name, "count", m.Count, "sum", m.Sum)
		}
	}
	return nil
}

package main

import (
	"errors"
	"fmt"

	"github.com/ethpandaops/gatewaybench/pkg/bench"
	"github.com/ethpandaops/gatewaybench/pkg/fsutil"
	"github.com/ethpandaops/gatewaybench/pkg/upload"
	"github.com/spf13/cobra"
)

var benchFlags struct {
	resultsDir string
	upload     bool
}

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Benchmark REST fan-out against the GraphQL aggregated query",
	Long: `Check the health of every required service, seed a user with orders,
then fetch that user's orders once through REST fan-out and once through a
single GraphQL query and compare the two. The report is written to a run
directory below --results-dir.`,
	RunE: runBench,
}

func init() {
	rootCmd.AddCommand(benchCmd)

	benchCmd.Flags().StringVar(&benchFlags.resultsDir, "results-dir", "", "directory for benchmark reports")
	benchCmd.Flags().BoolVar(&benchFlags.upload, "upload", false, "upload the report directory to S3")
}

func runBench(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("results-dir") {
		cfg.Benchmark.ResultsDir = benchFlags.resultsDir
	}

	if benchFlags.upload && !cfg.ResultsUpload.S3.Enabled {
		return fmt.Errorf("--upload requires results_upload.s3.enabled")
	}

	if err := cfg.ValidateBenchmark(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	owner, err := fsutil.ParseOwner(cfg.Global.ResultsOwner)
	if err != nil {
		return fmt.Errorf("parsing results_owner: %w", err)
	}

	harness := bench.NewHarness(log, &bench.Config{
		Benchmark: cfg.Benchmark,
		Owner:     owner,
		Console:   cmd.OutOrStdout(),
	})

	ctx := cmd.Context()

	report, err := harness.Run(ctx)
	if err != nil {
		if errors.Is(err, bench.ErrServiceUnavailable) {
			return fmt.Errorf("benchmark aborted: %w", err)
		}

		return err
	}

	for _, e := range report.Errors {
		log.WithField("error", e).Warn("Scenario did not complete")
	}

	if benchFlags.upload {
		uploadDir(ctx, log, cfg, report.Dir, upload.CategoryBenchRuns, report.RunID)
	}

	return nil
}

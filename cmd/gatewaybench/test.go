package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/ethpandaops/gatewaybench/pkg/config"
	"github.com/ethpandaops/gatewaybench/pkg/discovery"
	"github.com/ethpandaops/gatewaybench/pkg/executor"
	"github.com/ethpandaops/gatewaybench/pkg/fsutil"
	"github.com/ethpandaops/gatewaybench/pkg/runindex"
	"github.com/ethpandaops/gatewaybench/pkg/summary"
	"github.com/ethpandaops/gatewaybench/pkg/upload"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Orchestrator exit codes.
const (
	exitPassed      = 0
	exitFailed      = 1
	exitConfigError = 2
)

const summaryFileName = "summary.md"

var testFlags struct {
	stopOnFailure bool
	pattern       string
	dir           string
	logDir        string
	junit         string
	upload        bool
}

var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Discover and run test units sequentially",
	Long: `Discover test units below --dir matching --pattern, run each one as a
subprocess with its output captured to a log file, and report the aggregated
outcome. Exits 0 when every unit passed or none were found, 1 when at least
one failed and 2 on configuration or discovery errors.`,
	RunE: runTest,
}

func init() {
	rootCmd.AddCommand(testCmd)

	f := testCmd.Flags()
	f.BoolVar(&testFlags.stopOnFailure, "stop-on-failure", false, "stop after the first failing unit")
	f.StringVar(&testFlags.pattern, "pattern", config.DefaultPattern, "file name pattern of test units")
	f.StringVar(&testFlags.dir, "dir", config.DefaultDir, "directory to discover test units in")
	f.StringVar(&testFlags.logDir, "log-dir", config.DefaultLogDir, "directory for per-unit log files")
	f.StringVar(&testFlags.junit, "junit", "", "write a JUnit XML report to this path")
	f.BoolVar(&testFlags.upload, "upload", false, "upload the log directory to S3 after the run")
}

func runTest(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return withExitCode(exitConfigError, err)
	}

	applyTestFlags(cmd, &cfg.Orchestrator)

	if testFlags.upload && !cfg.ResultsUpload.S3.Enabled {
		return withExitCode(exitConfigError, fmt.Errorf("--upload requires results_upload.s3.enabled"))
	}

	if err := cfg.ValidateOrchestrator(); err != nil {
		return withExitCode(exitConfigError, fmt.Errorf("validating config: %w", err))
	}

	owner, err := fsutil.ParseOwner(cfg.Global.ResultsOwner)
	if err != nil {
		return withExitCode(exitConfigError, fmt.Errorf("parsing results_owner: %w", err))
	}

	code, err := orchestrate(cmd.Context(), log, cfg, owner, cmd.OutOrStdout(), testFlags.upload)
	if err != nil {
		return withExitCode(code, err)
	}

	if code != exitPassed {
		return withExitCode(code, nil)
	}

	return nil
}

// applyTestFlags copies explicitly set flags over the configuration.
func applyTestFlags(cmd *cobra.Command, o *config.OrchestratorConfig) {
	f := cmd.Flags()

	if f.Changed("stop-on-failure") {
		o.StopOnFailure = testFlags.stopOnFailure
	}

	if f.Changed("pattern") {
		o.Pattern = testFlags.pattern
	}

	if f.Changed("dir") {
		o.Dir = testFlags.dir
	}

	if f.Changed("log-dir") {
		o.LogDir = testFlags.logDir
	}

	if f.Changed("junit") {
		o.JUnitReport = testFlags.junit
	}
}

// orchestrate runs one orchestrator pass and returns its exit code. A
// non-nil error is always paired with exitConfigError.
func orchestrate(
	ctx context.Context,
	log logrus.FieldLogger,
	cfg *config.Config,
	owner *fsutil.Owner,
	out io.Writer,
	uploadLogs bool,
) (int, error) {
	o := cfg.Orchestrator
	started := time.Now()
	runID := fmt.Sprintf("%s-%s", started.UTC().Format("20060102-150405"), uuid.NewString()[:8])

	log = log.WithField("run_id", runID)

	units, err := discovery.Discover(o.Dir, o.Pattern, o.LogDir)
	if err != nil {
		return exitConfigError, fmt.Errorf("discovering test units: %w", err)
	}

	log.WithFields(logrus.Fields{
		"dir":     o.Dir,
		"pattern": o.Pattern,
		"units":   len(units),
	}).Info("Discovered test units")

	if len(units) == 0 {
		log.Warn("No test units found")

		return exitPassed, nil
	}

	exec := executor.NewExecutor(log, &executor.Config{
		LogDir:        o.LogDir,
		StopOnFailure: o.StopOnFailure,
		Owner:         owner,
		Console:       out,
	}, executor.NewProcessSpawner(log, o.InterpreterFor))

	if err := exec.Start(ctx); err != nil {
		return exitConfigError, fmt.Errorf("starting executor: %w", err)
	}

	defer func() { _ = exec.Stop() }()

	results, err := exec.Run(ctx, units)
	if err != nil {
		return exitConfigError, fmt.Errorf("running test units: %w", err)
	}

	interrupted := ctx.Err() != nil
	s := summary.Aggregate(results)

	if _, err := fmt.Fprintln(out); err != nil {
		return exitConfigError, err
	}

	summary.RenderTable(out, s)

	if err := summary.WriteFailureReport(out, s); err != nil {
		log.WithError(err).Warn("Failed to write failure report")
	}

	writeArtifacts(log, o, owner, runID, started, s)

	if o.Index.Enabled {
		recordRun(ctx, log, o, runID, started, interrupted, s)
	}

	if uploadLogs {
		uploadDir(ctx, log, cfg, o.LogDir, upload.CategoryTestRuns, runID)
	}

	log.WithFields(logrus.Fields{
		"total":       s.Total(),
		"passed":      s.PassedCount(),
		"failed":      s.FailedCount,
		"interrupted": interrupted,
	}).Info("Test run completed")

	if interrupted {
		log.Warn("Run interrupted before every unit ran")

		return exitFailed, nil
	}

	return s.OverallExitCode, nil
}

// writeArtifacts writes summary.md into the log directory and the optional
// JUnit report. Failures are logged and do not change the exit code.
func writeArtifacts(
	log logrus.FieldLogger,
	o config.OrchestratorConfig,
	owner *fsutil.Owner,
	runID string,
	started time.Time,
	s summary.RunSummary,
) {
	md := summary.RenderMarkdown(s, runID, started)
	mdPath := filepath.Join(o.LogDir, summaryFileName)

	if err := fsutil.WriteFile(mdPath, []byte(md), owner); err != nil {
		log.WithError(err).Warn("Failed to write markdown summary")
	} else {
		log.WithField("path", mdPath).Debug("Wrote markdown summary")
	}

	if o.JUnitReport == "" {
		return
	}

	f, err := fsutil.Create(o.JUnitReport, owner)
	if err != nil {
		log.WithError(err).Warn("Failed to create JUnit report")

		return
	}
	defer func() { _ = f.Close() }()

	if err := summary.WriteJUnit(f, "gatewaybench", s, started); err != nil {
		log.WithError(err).Warn("Failed to write JUnit report")

		return
	}

	log.WithField("path", o.JUnitReport).Info("Wrote JUnit report")
}

func recordRun(
	ctx context.Context,
	log logrus.FieldLogger,
	o config.OrchestratorConfig,
	runID string,
	started time.Time,
	interrupted bool,
	s summary.RunSummary,
) {
	// The run context may already be cancelled; recording still happens.
	ctx = context.WithoutCancel(ctx)

	store := runindex.NewStore(log, &o.Index.Database)
	if err := store.Start(ctx); err != nil {
		log.WithError(err).Warn("Failed to open run index")

		return
	}

	defer func() { _ = store.Stop() }()

	if err := runindex.Record(ctx, store, runindex.RunInfo{
		RunID:       runID,
		Dir:         o.Dir,
		Pattern:     o.Pattern,
		LogDir:      o.LogDir,
		StartedAt:   started,
		FinishedAt:  time.Now(),
		Interrupted: interrupted,
	}, s); err != nil {
		log.WithError(err).Warn("Failed to record run")

		return
	}

	log.Debug("Recorded run in index")
}

func uploadDir(
	ctx context.Context,
	log logrus.FieldLogger,
	cfg *config.Config,
	dir, category, name string,
) {
	ctx = context.WithoutCancel(ctx)

	uploader, err := upload.NewS3Uploader(log, &cfg.ResultsUpload.S3)
	if err != nil {
		log.WithError(err).Warn("Failed to create uploader")

		return
	}

	if err := uploader.Preflight(ctx); err != nil {
		log.WithError(err).Warn("Upload preflight failed")

		return
	}

	prefix, err := uploader.Upload(ctx, dir, category, name)
	if err != nil {
		log.WithError(err).Warn("Upload failed")

		return
	}

	log.WithField("prefix", prefix).Info("Uploaded results")
}

package executor

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"time"

	"github.com/ethpandaops/gatewaybench/pkg/discovery"
	"github.com/ethpandaops/gatewaybench/pkg/fsutil"
	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
)

// Executor runs test units sequentially and records their exit status.
type Executor interface {
	Start(ctx context.Context) error
	Stop() error

	// Run executes units in order. When the context is cancelled, or a unit
	// fails with StopOnFailure set, the remaining units are not started and
	// the results gathered so far are returned.
	Run(ctx context.Context, units []discovery.TestUnit) ([]TestResult, error)
}

// TestResult is the outcome of a single executed unit.
type TestResult struct {
	Name     string        `json:"name"`
	ExitCode int           `json:"exit_code"`
	LogPath  string        `json:"log_path"`
	Duration time.Duration `json:"duration"`
}

// Passed reports whether the unit exited with status 0.
func (r TestResult) Passed() bool {
	return r.ExitCode == 0
}

// Config for the executor.
type Config struct {
	LogDir        string
	StopOnFailure bool
	Owner         *fsutil.Owner
	// Console receives one PASS/FAIL line per unit. Nil disables it.
	Console io.Writer
}

// NewExecutor creates a new executor instance.
func NewExecutor(log logrus.FieldLogger, cfg *Config, spawner Spawner) Executor {
	return &executor{
		log:     log.WithField("component", "executor"),
		cfg:     cfg,
		spawner: spawner,
		pass:    color.New(color.FgGreen, color.Bold),
		fail:    color.New(color.FgRed, color.Bold),
	}
}

type executor struct {
	log     logrus.FieldLogger
	cfg     *Config
	spawner Spawner
	logDir  string
	pass    *color.Color
	fail    *color.Color
}

// Ensure interface compliance.
var _ Executor = (*executor)(nil)

// Start resolves and creates the log directory.
func (e *executor) Start(_ context.Context) error {
	logDir, err := filepath.Abs(e.cfg.LogDir)
	if err != nil {
		return fmt.Errorf("resolving log dir: %w", err)
	}

	if err := fsutil.MkdirAll(logDir, e.cfg.Owner); err != nil {
		return fmt.Errorf("creating log dir: %w", err)
	}

	e.logDir = logDir

	e.log.WithField("log_dir", logDir).Debug("Executor started")

	return nil
}

// Stop releases executor resources.
func (e *executor) Stop() error {
	e.log.Debug("Executor stopped")

	return nil
}

// Run executes units one after another.
func (e *executor) Run(ctx context.Context, units []discovery.TestUnit) ([]TestResult, error) {
	if e.logDir == "" {
		return nil, fmt.Errorf("executor not started")
	}

	results := make([]TestResult, 0, len(units))

	e.log.WithFields(logrus.Fields{
		"units":           len(units),
		"stop_on_failure": e.cfg.StopOnFailure,
	}).Info("Starting test execution")

	for i, unit := range units {
		if ctx.Err() != nil {
			e.log.WithField("remaining", len(units)-i).Warn("Execution interrupted between units")

			break
		}

		result, err := e.runUnit(ctx, unit)
		if err != nil {
			return results, fmt.Errorf("running %s: %w", unit.Name, err)
		}

		results = append(results, result)

		e.report(result)

		if e.cfg.StopOnFailure && !result.Passed() {
			if skipped := len(units) - i - 1; skipped > 0 {
				e.log.WithField("skipped", skipped).Warn("Stopping after first failure")
			}

			break
		}
	}

	return results, nil
}

// runUnit spawns a single unit with its output redirected to its log file.
// A launch failure is recorded in the log and as exit code 1.
func (e *executor) runUnit(ctx context.Context, unit discovery.TestUnit) (TestResult, error) {
	logPath := filepath.Join(e.logDir, LogFileName(unit.Name))

	f, err := fsutil.Create(logPath, e.cfg.Owner)
	if err != nil {
		return TestResult{}, fmt.Errorf("creating log file: %w", err)
	}

	defer func() { _ = f.Close() }()

	log := e.log.WithField("unit", unit.Name)
	log.Debug("Running test unit")

	start := time.Now()

	exitCode, err := e.spawner.Spawn(ctx, unit, f)
	if err != nil {
		log.WithError(err).Error("Failed to launch test unit")

		_, _ = fmt.Fprintf(f, "failed to launch %s: %v\n", unit.Path, err)

		exitCode = 1
	}

	result := TestResult{
		Name:     unit.Name,
		ExitCode: exitCode,
		LogPath:  logPath,
		Duration: time.Since(start),
	}

	log.WithFields(logrus.Fields{
		"exit_code": result.ExitCode,
		"duration":  result.Duration.Round(time.Millisecond),
	}).Info("Test unit finished")

	return result, nil
}

func (e *executor) report(r TestResult) {
	if e.cfg.Console == nil {
		return
	}

	if r.Passed() {
		_, _ = fmt.Fprintf(e.cfg.Console, "%s %s\n", e.pass.Sprint("PASS"), r.Name)

		return
	}

	_, _ = fmt.Fprintf(e.cfg.Console, "%s %s (exit %d) log: %s\n",
		e.fail.Sprint("FAIL"), r.Name, r.ExitCode, r.LogPath)
}

// LogFileName maps a unit name to its log file name. The name is
// percent-escaped as a single path segment, so distinct units never share
// a log.
func LogFileName(name string) string {
	return url.PathEscape(filepath.ToSlash(name)) + ".log"
}

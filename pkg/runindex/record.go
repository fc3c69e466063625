package runindex

import (
	"context"
	"fmt"
	"time"

	"github.com/ethpandaops/gatewaybench/pkg/summary"
)

// RunInfo describes an orchestrator run being recorded.
type RunInfo struct {
	RunID       string
	Dir         string
	Pattern     string
	LogDir      string
	StartedAt   time.Time
	FinishedAt  time.Time
	Interrupted bool
}

// NewRecord converts a run summary into its index rows.
func NewRecord(info RunInfo, s summary.RunSummary) (*Run, []*UnitResult) {
	status := StatusPassed

	switch {
	case info.Interrupted:
		status = StatusInterrupted
	case s.OverallExitCode != 0:
		status = StatusFailed
	}

	run := &Run{
		RunID:       info.RunID,
		Dir:         info.Dir,
		Pattern:     info.Pattern,
		LogDir:      info.LogDir,
		Status:      status,
		ExitCode:    s.OverallExitCode,
		StartedAt:   info.StartedAt.UTC(),
		FinishedAt:  info.FinishedAt.UTC(),
		UnitsTotal:  s.Total(),
		UnitsPassed: s.PassedCount(),
		UnitsFailed: s.FailedCount,
		IndexedAt:   time.Now().UTC(),
	}

	units := make([]*UnitResult, 0, len(s.Results))

	for i, r := range s.Results {
		units = append(units, &UnitResult{
			RunID:      info.RunID,
			Name:       r.Name,
			Position:   i,
			ExitCode:   r.ExitCode,
			LogPath:    r.LogPath,
			DurationNs: r.Duration.Nanoseconds(),
		})
	}

	return run, units
}

// Record writes a run and its unit results to the store.
func Record(ctx context.Context, store Store, info RunInfo, s summary.RunSummary) error {
	run, units := NewRecord(info, s)

	if err := store.UpsertRun(ctx, run); err != nil {
		return err
	}

	if err := store.ReplaceUnitResults(ctx, run.RunID, units); err != nil {
		return fmt.Errorf("recording units for run %s: %w", run.RunID, err)
	}

	return nil
}

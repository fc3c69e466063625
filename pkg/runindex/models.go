package runindex

import "time"

// Run statuses.
const (
	StatusPassed      = "passed"
	StatusFailed      = "failed"
	StatusInterrupted = "interrupted"
)

// Run is a single recorded orchestrator run.
type Run struct {
	ID         uint      `gorm:"primaryKey" json:"-"`
	RunID      string    `gorm:"not null;uniqueIndex" json:"run_id"`
	Dir        string    `json:"dir"`
	Pattern    string    `json:"pattern"`
	LogDir     string    `json:"log_dir"`
	Status     string    `gorm:"index" json:"status"`
	ExitCode   int       `json:"exit_code"`
	StartedAt  time.Time `gorm:"index" json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	UnitsTotal  int `json:"units_total"`
	UnitsPassed int `json:"units_passed"`
	UnitsFailed int `json:"units_failed"`

	IndexedAt time.Time `json:"indexed_at"`
}

// UnitResult is the recorded outcome of one unit within a run.
type UnitResult struct {
	ID         uint   `gorm:"primaryKey" json:"-"`
	RunID      string `gorm:"not null;uniqueIndex:idx_units_run_name" json:"run_id"`
	Name       string `gorm:"not null;uniqueIndex:idx_units_run_name" json:"name"`
	Position   int    `json:"position"`
	ExitCode   int    `json:"exit_code"`
	LogPath    string `json:"log_path"`
	DurationNs int64  `json:"duration_ns"`
}

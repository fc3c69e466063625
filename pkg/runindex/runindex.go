// Package runindex persists orchestrator runs and their unit results so the
// results API can serve them.
package runindex

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethpandaops/gatewaybench/pkg/config"
	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// ErrNotFound is returned when a run or unit does not exist.
var ErrNotFound = errors.New("not found")

// Store provides persistence for recorded runs.
type Store interface {
	Start(ctx context.Context) error
	Stop() error

	// UpsertRun inserts a run or overwrites the existing row with the same
	// run ID.
	UpsertRun(ctx context.Context, run *Run) error
	// ReplaceUnitResults replaces every unit result recorded for runID.
	ReplaceUnitResults(ctx context.Context, runID string, units []*UnitResult) error

	ListRuns(ctx context.Context, limit int) ([]Run, error)
	GetRun(ctx context.Context, runID string) (*Run, error)
	ListUnitResults(ctx context.Context, runID string) ([]UnitResult, error)
	GetUnitResult(ctx context.Context, runID, name string) (*UnitResult, error)
}

// Compile-time interface check.
var _ Store = (*store)(nil)

type store struct {
	log logrus.FieldLogger
	cfg *config.DatabaseConfig
	db  *gorm.DB
}

// NewStore creates a new run index Store backed by the configured database
// driver.
func NewStore(log logrus.FieldLogger, cfg *config.DatabaseConfig) Store {
	return &store{
		log: log.WithField("component", "runindex"),
		cfg: cfg,
	}
}

// Start opens the database connection and runs migrations.
func (s *store) Start(ctx context.Context) error {
	var dialector gorm.Dialector

	switch s.cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(s.cfg.SQLite.Path)
	case "postgres":
		dsn := fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			s.cfg.Postgres.Host,
			s.cfg.Postgres.Port,
			s.cfg.Postgres.User,
			s.cfg.Postgres.Password,
			s.cfg.Postgres.Database,
			s.cfg.Postgres.SSLMode,
		)
		dialector = postgres.Open(dsn)
	default:
		return fmt.Errorf("unsupported database driver: %s", s.cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Discard,
	})
	if err != nil {
		return fmt.Errorf("opening run index: %w", err)
	}

	s.db = db

	if err := s.db.WithContext(ctx).AutoMigrate(&Run{}, &UnitResult{}); err != nil {
		return fmt.Errorf("running run index migrations: %w", err)
	}

	s.log.WithField("driver", s.cfg.Driver).Debug("Run index connected")

	return nil
}

// Stop closes the underlying database connection.
func (s *store) Stop() error {
	if s.db == nil {
		return nil
	}

	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("getting underlying db: %w", err)
	}

	return sqlDB.Close()
}

func (s *store) UpsertRun(ctx context.Context, run *Run) error {
	if err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "run_id"}},
			DoUpdates: clause.AssignmentColumns(runUpdateColumns),
		}).
		Create(run).Error; err != nil {
		return fmt.Errorf("upserting run: %w", err)
	}

	return nil
}

var runUpdateColumns = []string{
	"dir", "pattern", "log_dir", "status", "exit_code",
	"started_at", "finished_at",
	"units_total", "units_passed", "units_failed",
	"indexed_at",
}

func (s *store) ReplaceUnitResults(ctx context.Context, runID string, units []*UnitResult) error {
	const batchSize = 100

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("run_id = ?", runID).Delete(&UnitResult{}).Error; err != nil {
			return fmt.Errorf("deleting unit results: %w", err)
		}

		if len(units) == 0 {
			return nil
		}

		for _, u := range units {
			u.ID = 0
			u.RunID = runID
		}

		if err := tx.CreateInBatches(units, batchSize).Error; err != nil {
			return fmt.Errorf("inserting unit results: %w", err)
		}

		return nil
	})
}

// ListRuns returns the most recent runs first. A non-positive limit
// returns every run.
func (s *store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	q := s.db.WithContext(ctx).Order("started_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var runs []Run
	if err := q.Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}

	return runs, nil
}

func (s *store) GetRun(ctx context.Context, runID string) (*Run, error) {
	var run Run

	err := s.db.WithContext(ctx).Where("run_id = ?", runID).First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("getting run: %w", err)
	}

	return &run, nil
}

func (s *store) ListUnitResults(ctx context.Context, runID string) ([]UnitResult, error) {
	var units []UnitResult
	if err := s.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("position ASC").
		Find(&units).Error; err != nil {
		return nil, fmt.Errorf("listing unit results: %w", err)
	}

	return units, nil
}

func (s *store) GetUnitResult(ctx context.Context, runID, name string) (*UnitResult, error) {
	var unit UnitResult

	err := s.db.WithContext(ctx).
		Where("run_id = ? AND name = ?", runID, name).
		First(&unit).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("unit %s in run %s: %w", name, runID, ErrNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("getting unit result: %w", err)
	}

	return &unit, nil
}

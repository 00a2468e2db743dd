package hrdb

import (
	"context"
	"time"

	"github.com/agentstation/orgsync/pkg/errors"
)

// RunStats are the counts written when a run finishes.
type RunStats struct {
	Status        string
	FinishedAt    time.Time
	UsersCreated  int
	UsersUpdated  int
	UsersEnabled  int
	UsersDisabled int
	Values        int
	Failures      int
}

// runLogRow is the schema of the run log table.
type runLogRow struct {
	RunID         string     `gorm:"column:run_id;primaryKey;size:64"`
	Status        string     `gorm:"column:status;size:32"`
	DryRun        bool       `gorm:"column:dry_run"`
	StartedAt     time.Time  `gorm:"column:started_at"`
	FinishedAt    *time.Time `gorm:"column:finished_at"`
	UsersCreated  int        `gorm:"column:users_created"`
	UsersUpdated  int        `gorm:"column:users_updated"`
	UsersEnabled  int        `gorm:"column:users_enabled"`
	UsersDisabled int        `gorm:"column:users_disabled"`
	Values        int        `gorm:"column:values_recorded"`
	Failures      int        `gorm:"column:failures"`
}

// RunLog records each sync run as a row in an HR database table.
type RunLog struct {
	db    *DB
	table string
}

// NewRunLog writes to table.
func NewRunLog(db *DB, table string) *RunLog {
	return &RunLog{db: db, table: table}
}

// Migrate creates or updates the run log table.
func (l *RunLog) Migrate(ctx context.Context) error {
	if err := checkIdentifiers(l.table); err != nil {
		return err
	}
	return l.db.db.WithContext(ctx).Table(l.table).AutoMigrate(&runLogRow{})
}

// Start inserts the row of a run.
func (l *RunLog) Start(ctx context.Context, runID string, startedAt time.Time, dryRun bool) error {
	return l.db.Insert(ctx, l.table,
		[]string{"run_id", "status", "dry_run", "started_at"},
		[]any{runID, "running", dryRun, startedAt})
}

// Finish completes the row of a run.
func (l *RunLog) Finish(ctx context.Context, runID string, stats RunStats) error {
	n, err := l.db.Update(ctx, l.table,
		[]string{"status", "finished_at", "users_created", "users_updated", "users_enabled", "users_disabled", "values_recorded", "failures"},
		[]string{"run_id"},
		[]any{stats.Status, stats.FinishedAt, stats.UsersCreated, stats.UsersUpdated, stats.UsersEnabled, stats.UsersDisabled, stats.Values, stats.Failures, runID})
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.NewNotFoundError("run", runID)
	}
	return nil
}

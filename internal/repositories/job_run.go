package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/selecta/internal/models"
	"github.com/desertthunder/selecta/internal/shared"
)

// JobRunRepository tracks scheduled and manual job invocations.
type JobRunRepository struct {
	db  DBTX
	now func() time.Time
}

// NewJobRunRepository creates a JobRunRepository with the given database connection
func NewJobRunRepository(db DBTX) *JobRunRepository {
	return &JobRunRepository{db: db, now: time.Now}
}

// Start inserts a running [models.JobRun] with a generated id.
func (r *JobRunRepository) Start(ctx context.Context, job string, trigger models.JobTrigger) (*models.JobRun, error) {
	run := &models.JobRun{
		ID:        shared.GenerateID(),
		Job:       job,
		Trigger:   trigger,
		Status:    models.JobRunning,
		StartedAt: r.now().UTC(),
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO job_runs (id, job, triggered_by, status, started_at)
		VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.Job, string(run.Trigger), string(run.Status), run.StartedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert job run: %w", err)
	}
	return run, nil
}

// Finish records the outcome of run. A non-nil runErr marks it failed.
func (r *JobRunRepository) Finish(ctx context.Context, run *models.JobRun, outcome models.JobOutcome, runErr error) error {
	finished := r.now().UTC()
	run.FinishedAt = &finished
	run.Outcome = outcome
	run.Status = models.JobSucceeded
	if runErr != nil {
		run.Status = models.JobFailed
		run.Error = runErr.Error()
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE job_runs
		SET status = ?, added = ?, updated = ?, processed = ?, error_message = ?, finished_at = ?
		WHERE id = ?`,
		string(run.Status), outcome.Added, outcome.Updated, outcome.Processed,
		nullString(run.Error), finished, run.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update job run: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: run %s", shared.ErrJobNotFound, run.ID)
	}
	return nil
}

// Get retrieves a run by id.
func (r *JobRunRepository) Get(ctx context.Context, id string) (*models.JobRun, error) {
	return r.scan(r.db.QueryRowContext(ctx, "SELECT "+jobRunColumns+" FROM job_runs WHERE id = ?", id))
}

// Recent returns the latest runs, newest first.
func (r *JobRunRepository) Recent(ctx context.Context, limit int) ([]*models.JobRun, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+jobRunColumns+" FROM job_runs ORDER BY started_at DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query job runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.JobRun
	for rows.Next() {
		run, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

const jobRunColumns = `id, job, triggered_by, status, added, updated, processed, error_message, started_at, finished_at`

func (r *JobRunRepository) scan(row scanner) (*models.JobRun, error) {
	var (
		run      models.JobRun
		trigger  string
		status   string
		errMsg   sql.NullString
		finished sql.NullTime
	)

	err := row.Scan(&run.ID, &run.Job, &trigger, &status, &run.Outcome.Added, &run.Outcome.Updated,
		&run.Outcome.Processed, &errMsg, &run.StartedAt, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan job run: %w", err)
	}

	run.Trigger = models.JobTrigger(trigger)
	run.Status = models.JobStatus(status)
	run.Error = errMsg.String
	run.FinishedAt = timePtr(finished)
	return &run, nil
}

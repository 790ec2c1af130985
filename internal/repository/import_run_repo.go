package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"mailboard/internal/model"
)

// ErrRunInProgress is returned by Create when another processing run
// already exists for the user. It is raised by the partial unique
// index on (user_id) WHERE status = 'processing', which makes the
// at-most-one-run guarantee atomic instead of check-then-act.
var ErrRunInProgress = errors.New("an import run is already in progress")

type ImportRunRepository struct {
	db *pgxpool.Pool
}

func NewImportRunRepository(db *pgxpool.Pool) *ImportRunRepository {
	return &ImportRunRepository{db: db}
}

// Create starts a run in processing state.
func (r *ImportRunRepository) Create(ctx context.Context, userID int64) (*model.ImportRun, error) {
	query := `
        INSERT INTO import_runs (user_id, status, started_at)
        VALUES ($1, 'processing', NOW())
        RETURNING id, started_at
    `
	run := &model.ImportRun{
		UserID: userID,
		Status: model.RunProcessing,
	}
	err := r.db.QueryRow(ctx, query, userID).Scan(&run.ID, &run.StartedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrRunInProgress
		}
		return nil, err
	}
	return run, nil
}

// MarkCompleted transitions the run to its completed terminal state
// and stamps the counts.
func (r *ImportRunRepository) MarkCompleted(ctx context.Context, runID int64, processed, withTasks, created int) error {
	query := `
        UPDATE import_runs
        SET status = 'completed', emails_processed = $1, emails_with_tasks = $2,
            tasks_created = $3, completed_at = NOW()
        WHERE id = $4 AND status = 'processing'
    `
	_, err := r.db.Exec(ctx, query, processed, withTasks, created, runID)
	return err
}

// MarkFailed transitions the run to its failed terminal state.
func (r *ImportRunRepository) MarkFailed(ctx context.Context, runID int64, errMsg string) error {
	query := `
        UPDATE import_runs
        SET status = 'failed', error_message = $1, completed_at = NOW()
        WHERE id = $2 AND status = 'processing'
    `
	_, err := r.db.Exec(ctx, query, errMsg, runID)
	return err
}

// HasProcessing reports whether the user has a run in flight.
func (r *ImportRunRepository) HasProcessing(ctx context.Context, userID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM import_runs WHERE user_id = $1 AND status = 'processing')`,
		userID,
	).Scan(&exists)
	return exists, err
}

// LastCompletedAt returns the completion time of the user's most
// recent completed run, or nil if none exists.
func (r *ImportRunRepository) LastCompletedAt(ctx context.Context, userID int64) (*time.Time, error) {
	query := `
        SELECT completed_at
        FROM import_runs
        WHERE user_id = $1 AND status = 'completed'
        ORDER BY completed_at DESC
        LIMIT 1
    `
	var t *time.Time
	err := r.db.QueryRow(ctx, query, userID).Scan(&t)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// ListRecent returns the user's latest runs, newest first.
func (r *ImportRunRepository) ListRecent(ctx context.Context, userID int64, limit int) ([]model.ImportRun, error) {
	query := `
        SELECT id, user_id, emails_processed, emails_with_tasks, tasks_created,
               status, started_at, completed_at, error_message
        FROM import_runs
        WHERE user_id = $1
        ORDER BY started_at DESC
        LIMIT $2
    `
	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := []model.ImportRun{}
	for rows.Next() {
		var run model.ImportRun
		if err := rows.Scan(
			&run.ID, &run.UserID, &run.EmailsProcessed, &run.EmailsWithTasks,
			&run.TasksCreated, &run.Status, &run.StartedAt, &run.CompletedAt, &run.ErrorMessage,
		); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

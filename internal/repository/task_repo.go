package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"mailboard/internal/model"
)

type TaskRepository struct {
	db *pgxpool.Pool
}

func NewTaskRepository(db *pgxpool.Pool) *TaskRepository {
	return &TaskRepository{db: db}
}

// Create inserts a task. The pipeline always creates tasks in Pending.
func (r *TaskRepository) Create(ctx context.Context, t *model.Task) error {
	query := `
        INSERT INTO tasks (user_id, email_id, title, description, priority,
                           status, due_date, ai_confidence, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
        RETURNING id, created_at, updated_at
    `
	return r.db.QueryRow(ctx, query,
		t.UserID,
		t.EmailID,
		t.Title,
		t.Description,
		t.Priority,
		t.Status,
		t.DueDate,
		t.AIConfidence,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
}

// ListByUser returns all of a user's tasks, newest first.
func (r *TaskRepository) ListByUser(ctx context.Context, userID int64) ([]model.Task, error) {
	query := `
        SELECT id, user_id, email_id, title, description, priority, status,
               due_date, ai_confidence, created_at, updated_at
        FROM tasks
        WHERE user_id = $1
        ORDER BY created_at DESC
    `
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTasks(rows)
}

// FindByID returns one task owned by the user.
func (r *TaskRepository) FindByID(ctx context.Context, userID, id int64) (*model.Task, error) {
	query := `
        SELECT id, user_id, email_id, title, description, priority, status,
               due_date, ai_confidence, created_at, updated_at
        FROM tasks
        WHERE id = $1 AND user_id = $2
    `
	var t model.Task
	err := r.db.QueryRow(ctx, query, id, userID).Scan(
		&t.ID, &t.UserID, &t.EmailID, &t.Title, &t.Description, &t.Priority,
		&t.Status, &t.DueDate, &t.AIConfidence, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// TaskUpdate carries the user-editable fields of a task. Nil fields
// are left unchanged; SetDueDate distinguishes "clear the due date"
// from "leave it alone".
type TaskUpdate struct {
	Status     *model.TaskStatus
	Priority   *model.Priority
	DueDate    *time.Time
	SetDueDate bool
}

// Update applies a partial update and returns the updated task.
func (r *TaskRepository) Update(ctx context.Context, userID, id int64, upd TaskUpdate) (*model.Task, error) {
	query := `
        UPDATE tasks
        SET status     = COALESCE($1, status),
            priority   = COALESCE($2, priority),
            due_date   = CASE WHEN $3 THEN $4 ELSE due_date END,
            updated_at = NOW()
        WHERE id = $5 AND user_id = $6
        RETURNING id, user_id, email_id, title, description, priority, status,
                  due_date, ai_confidence, created_at, updated_at
    `
	var t model.Task
	err := r.db.QueryRow(ctx, query, upd.Status, upd.Priority, upd.SetDueDate, upd.DueDate, id, userID).Scan(
		&t.ID, &t.UserID, &t.EmailID, &t.Title, &t.Description, &t.Priority,
		&t.Status, &t.DueDate, &t.AIConfidence, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Delete removes one task owned by the user. Returns whether a row
// was deleted.
func (r *TaskRepository) Delete(ctx context.Context, userID, id int64) (bool, error) {
	ct, err := r.db.Exec(ctx,
		`DELETE FROM tasks WHERE id = $1 AND user_id = $2`, id, userID,
	)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

// CountByUser returns the user's total stored tasks.
func (r *TaskRepository) CountByUser(ctx context.Context, userID int64) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM tasks WHERE user_id = $1`, userID,
	).Scan(&count)
	return count, err
}

// CountByStatuses counts tasks whose status is in the given set,
// optionally restricted to tasks created in [from, to).
func (r *TaskRepository) CountByStatuses(ctx context.Context, userID int64, statuses []model.TaskStatus, from, to *time.Time) (int, error) {
	query := `
        SELECT COUNT(*) FROM tasks
        WHERE user_id = $1
          AND status = ANY($2)
          AND ($3::timestamptz IS NULL OR created_at >= $3)
          AND ($4::timestamptz IS NULL OR created_at < $4)
    `
	ss := make([]string, len(statuses))
	for i, s := range statuses {
		ss[i] = string(s)
	}
	var count int
	err := r.db.QueryRow(ctx, query, userID, ss, from, to).Scan(&count)
	return count, err
}

// CountCompletedBetween counts tasks completed (by last update) in
// [from, to).
func (r *TaskRepository) CountCompletedBetween(ctx context.Context, userID int64, from, to time.Time) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM tasks WHERE user_id = $1 AND status = 'Completed' AND updated_at >= $2 AND updated_at < $3`,
		userID, from, to,
	).Scan(&count)
	return count, err
}

// CountCreatedBetween counts tasks created in [from, to).
func (r *TaskRepository) CountCreatedBetween(ctx context.Context, userID int64, from, to time.Time) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM tasks WHERE user_id = $1 AND created_at >= $2 AND created_at < $3`,
		userID, from, to,
	).Scan(&count)
	return count, err
}

// CompletionSpan is the create-to-complete interval of one finished task.
type CompletionSpan struct {
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CompletedSpansSince returns the creation/completion timestamps of
// tasks completed since t, for resolution-time averaging.
func (r *TaskRepository) CompletedSpansSince(ctx context.Context, userID int64, t time.Time) ([]CompletionSpan, error) {
	query := `
        SELECT created_at, updated_at
        FROM tasks
        WHERE user_id = $1 AND status = 'Completed' AND updated_at >= $2
    `
	rows, err := r.db.Query(ctx, query, userID, t)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	spans := []CompletionSpan{}
	for rows.Next() {
		var s CompletionSpan
		if err := rows.Scan(&s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		spans = append(spans, s)
	}
	return spans, rows.Err()
}

// StatusPriorityCount is one cell of the status x priority distribution.
type StatusPriorityCount struct {
	Status   model.TaskStatus
	Priority model.Priority
	Count    int
}

// Distribution returns task counts grouped by status and priority.
func (r *TaskRepository) Distribution(ctx context.Context, userID int64) ([]StatusPriorityCount, error) {
	query := `
        SELECT status, priority, COUNT(*)
        FROM tasks
        WHERE user_id = $1
        GROUP BY status, priority
    `
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := []StatusPriorityCount{}
	for rows.Next() {
		var c StatusPriorityCount
		if err := rows.Scan(&c.Status, &c.Priority, &c.Count); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

// UpcomingTask is a pending task nearing its due date, with context
// about the email it came from.
type UpcomingTask struct {
	Task         model.Task
	EmailSubject string
	SenderName   string
	Category     model.Category
}

// Upcoming returns open tasks due in [now, until], soonest first.
func (r *TaskRepository) Upcoming(ctx context.Context, userID int64, now, until time.Time) ([]UpcomingTask, error) {
	query := `
        SELECT t.id, t.user_id, t.email_id, t.title, t.description, t.priority,
               t.status, t.due_date, t.ai_confidence, t.created_at, t.updated_at,
               e.subject, e.sender_name, e.category
        FROM tasks t
        JOIN emails e ON e.id = t.email_id
        WHERE t.user_id = $1
          AND t.status IN ('Pending', 'InProgress')
          AND t.due_date >= $2 AND t.due_date <= $3
        ORDER BY t.due_date ASC
    `
	rows, err := r.db.Query(ctx, query, userID, now, until)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := []UpcomingTask{}
	for rows.Next() {
		var u UpcomingTask
		if err := rows.Scan(
			&u.Task.ID, &u.Task.UserID, &u.Task.EmailID, &u.Task.Title, &u.Task.Description,
			&u.Task.Priority, &u.Task.Status, &u.Task.DueDate, &u.Task.AIConfidence,
			&u.Task.CreatedAt, &u.Task.UpdatedAt,
			&u.EmailSubject, &u.SenderName, &u.Category,
		); err != nil {
			return nil, err
		}
		tasks = append(tasks, u)
	}
	return tasks, rows.Err()
}

// CompletionTimes returns the completion timestamps of tasks finished
// since t, for the productivity heatmap.
func (r *TaskRepository) CompletionTimes(ctx context.Context, userID int64, t time.Time) ([]time.Time, error) {
	query := `
        SELECT updated_at
        FROM tasks
        WHERE user_id = $1 AND status = 'Completed' AND updated_at >= $2
    `
	rows, err := r.db.Query(ctx, query, userID, t)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	times := []time.Time{}
	for rows.Next() {
		var ts time.Time
		if err := rows.Scan(&ts); err != nil {
			return nil, err
		}
		times = append(times, ts)
	}
	return times, rows.Err()
}

func scanTasks(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]model.Task, error) {
	tasks := []model.Task{}
	for rows.Next() {
		var t model.Task
		if err := rows.Scan(
			&t.ID, &t.UserID, &t.EmailID, &t.Title, &t.Description, &t.Priority,
			&t.Status, &t.DueDate, &t.AIConfidence, &t.CreatedAt, &t.UpdatedAt,
		); err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

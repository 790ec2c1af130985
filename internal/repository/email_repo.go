package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"mailboard/internal/model"
)

type EmailRepository struct {
	db *pgxpool.Pool
}

func NewEmailRepository(db *pgxpool.Pool) *EmailRepository {
	return &EmailRepository{db: db}
}

// Create inserts an email record. Emails are immutable after insert.
func (r *EmailRepository) Create(ctx context.Context, e *model.Email) error {
	query := `
        INSERT INTO emails (user_id, gmail_id, thread_id, sender_id, sender_name,
                            subject, body, snippet, category, received_at, has_task, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())
        RETURNING id, created_at
    `
	return r.db.QueryRow(ctx, query,
		e.UserID,
		e.GmailID,
		e.ThreadID,
		e.SenderID,
		e.SenderName,
		e.Subject,
		e.Body,
		e.Snippet,
		e.Category,
		e.ReceivedAt,
		e.HasTask,
	).Scan(&e.ID, &e.CreatedAt)
}

// ExistsByGmailID is the idempotent re-import check.
func (r *EmailRepository) ExistsByGmailID(ctx context.Context, userID int64, gmailID string) (bool, error) {
	query := `
        SELECT EXISTS (
            SELECT 1 FROM emails WHERE user_id = $1 AND gmail_id = $2
        )
    `
	var exists bool
	err := r.db.QueryRow(ctx, query, userID, gmailID).Scan(&exists)
	return exists, err
}

// ListByUser returns all of a user's emails, newest first.
func (r *EmailRepository) ListByUser(ctx context.Context, userID int64) ([]model.Email, error) {
	query := `
        SELECT id, user_id, gmail_id, thread_id, sender_id, sender_name,
               subject, body, snippet, category, received_at, has_task, created_at
        FROM emails
        WHERE user_id = $1
        ORDER BY received_at DESC
    `
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	emails := []model.Email{}
	for rows.Next() {
		var e model.Email
		if err := rows.Scan(
			&e.ID, &e.UserID, &e.GmailID, &e.ThreadID, &e.SenderID, &e.SenderName,
			&e.Subject, &e.Body, &e.Snippet, &e.Category, &e.ReceivedAt, &e.HasTask, &e.CreatedAt,
		); err != nil {
			return nil, err
		}
		emails = append(emails, e)
	}
	return emails, rows.Err()
}

// ListProcessed returns a page of emails with their task summaries.
func (r *EmailRepository) ListProcessed(ctx context.Context, userID int64, offset, limit int) ([]model.EmailWithTasks, int, error) {
	var total int
	if err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM emails WHERE user_id = $1`, userID,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
        SELECT id, user_id, gmail_id, thread_id, sender_id, sender_name,
               subject, body, snippet, category, received_at, has_task, created_at
        FROM emails
        WHERE user_id = $1
        ORDER BY received_at DESC
        OFFSET $2 LIMIT $3
    `
	rows, err := r.db.Query(ctx, query, userID, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	emails := []model.EmailWithTasks{}
	ids := []int64{}
	for rows.Next() {
		var e model.EmailWithTasks
		if err := rows.Scan(
			&e.ID, &e.UserID, &e.GmailID, &e.ThreadID, &e.SenderID, &e.SenderName,
			&e.Subject, &e.Body, &e.Snippet, &e.Category, &e.ReceivedAt, &e.HasTask, &e.CreatedAt,
		); err != nil {
			return nil, 0, err
		}
		e.Tasks = []model.TaskSummary{}
		emails = append(emails, e)
		ids = append(ids, e.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	if len(ids) == 0 {
		return emails, total, nil
	}

	taskQuery := `
        SELECT email_id, id, title, status, priority, due_date
        FROM tasks
        WHERE email_id = ANY($1)
        ORDER BY created_at
    `
	taskRows, err := r.db.Query(ctx, taskQuery, ids)
	if err != nil {
		return nil, 0, err
	}
	defer taskRows.Close()

	byEmail := make(map[int64][]model.TaskSummary)
	for taskRows.Next() {
		var emailID int64
		var t model.TaskSummary
		if err := taskRows.Scan(&emailID, &t.ID, &t.Title, &t.Status, &t.Priority, &t.DueDate); err != nil {
			return nil, 0, err
		}
		byEmail[emailID] = append(byEmail[emailID], t)
	}
	if err := taskRows.Err(); err != nil {
		return nil, 0, err
	}
	for i := range emails {
		if tasks, ok := byEmail[emails[i].ID]; ok {
			emails[i].Tasks = tasks
		}
	}
	return emails, total, nil
}

// CountByUser returns the user's total stored emails.
func (r *EmailRepository) CountByUser(ctx context.Context, userID int64) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM emails WHERE user_id = $1`, userID,
	).Scan(&count)
	return count, err
}

// CountReceivedSince counts emails received at or after t.
func (r *EmailRepository) CountReceivedSince(ctx context.Context, userID int64, t time.Time) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM emails WHERE user_id = $1 AND received_at >= $2`,
		userID, t,
	).Scan(&count)
	return count, err
}

// CountReceivedBetween counts emails received in [from, to).
func (r *EmailRepository) CountReceivedBetween(ctx context.Context, userID int64, from, to time.Time) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM emails WHERE user_id = $1 AND received_at >= $2 AND received_at < $3`,
		userID, from, to,
	).Scan(&count)
	return count, err
}

// CategoryCount is one day's email volume for one category.
type CategoryCount struct {
	Date     time.Time
	Category model.Category
	Count    int
}

// CountByCategoryPerDay aggregates daily email volume per category
// since the given time. Spam never reaches storage, so only stored
// categories appear.
func (r *EmailRepository) CountByCategoryPerDay(ctx context.Context, userID int64, since time.Time) ([]CategoryCount, error) {
	query := `
        SELECT date_trunc('day', received_at) AS day, category, COUNT(*)
        FROM emails
        WHERE user_id = $1 AND received_at >= $2
        GROUP BY day, category
        ORDER BY day
    `
	rows, err := r.db.Query(ctx, query, userID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := []CategoryCount{}
	for rows.Next() {
		var c CategoryCount
		if err := rows.Scan(&c.Date, &c.Category, &c.Count); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

// SenderStats is the per-sender aggregate behind the top-senders table.
type SenderStats struct {
	SenderID       string `json:"senderId"`
	SenderName     string `json:"senderName"`
	EmailCount     int    `json:"emailCount"`
	TasksGenerated int    `json:"tasksGenerated"`
	TasksCompleted int    `json:"tasksCompleted"`
}

// TopSenders aggregates email and task counts per sender, ordered by
// email volume.
func (r *EmailRepository) TopSenders(ctx context.Context, userID int64, limit int) ([]SenderStats, error) {
	query := `
        SELECT e.sender_id,
               MAX(e.sender_name),
               COUNT(DISTINCT e.id),
               COUNT(t.id),
               COUNT(t.id) FILTER (WHERE t.status = 'Completed')
        FROM emails e
        LEFT JOIN tasks t ON t.email_id = e.id
        WHERE e.user_id = $1
        GROUP BY e.sender_id
        ORDER BY COUNT(DISTINCT e.id) DESC
        LIMIT $2
    `
	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := []SenderStats{}
	for rows.Next() {
		var s SenderStats
		if err := rows.Scan(&s.SenderID, &s.SenderName, &s.EmailCount, &s.TasksGenerated, &s.TasksCompleted); err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

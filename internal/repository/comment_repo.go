package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"mailboard/internal/model"
)

type CommentRepository struct {
	db *pgxpool.Pool
}

func NewCommentRepository(db *pgxpool.Pool) *CommentRepository {
	return &CommentRepository{db: db}
}

// Create inserts a comment on a task the user owns. Ownership is
// checked through the task row.
func (r *CommentRepository) Create(ctx context.Context, c *model.Comment) error {
	query := `
        INSERT INTO comments (task_id, user_id, content, created_at)
        SELECT $1, $2, $3, NOW()
        WHERE EXISTS (SELECT 1 FROM tasks WHERE id = $1 AND user_id = $2)
        RETURNING id, created_at
    `
	return r.db.QueryRow(ctx, query, c.TaskID, c.UserID, c.Content).Scan(&c.ID, &c.CreatedAt)
}

// ListByTask returns a task's comments, oldest first.
func (r *CommentRepository) ListByTask(ctx context.Context, userID, taskID int64) ([]model.Comment, error) {
	query := `
        SELECT id, task_id, user_id, content, created_at
        FROM comments
        WHERE task_id = $1 AND user_id = $2
        ORDER BY created_at ASC
    `
	rows, err := r.db.Query(ctx, query, taskID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	comments := []model.Comment{}
	for rows.Next() {
		var c model.Comment
		if err := rows.Scan(&c.ID, &c.TaskID, &c.UserID, &c.Content, &c.CreatedAt); err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

// Delete removes one comment owned by the user. Returns whether a row
// was deleted.
func (r *CommentRepository) Delete(ctx context.Context, userID, id int64) (bool, error) {
	ct, err := r.db.Exec(ctx,
		`DELETE FROM comments WHERE id = $1 AND user_id = $2`, id, userID,
	)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

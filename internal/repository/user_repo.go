package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"mailboard/internal/model"
)

type UserRepository struct {
	db *pgxpool.Pool
}

func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

// CreateUser inserts a new user.
func (r *UserRepository) CreateUser(ctx context.Context, u *model.User) error {
	query := `
        INSERT INTO users (email, password_hash, name, created_at, updated_at)
        VALUES ($1, $2, $3, NOW(), NOW())
        RETURNING id
    `
	return r.db.QueryRow(ctx, query, u.Email, u.PasswordHash, u.Name).Scan(&u.ID)
}

// FindByEmail returns a user by email.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `
        SELECT id, email, password_hash, name, gmail_configured, gmail_token,
               reference_date, last_import_at, tokens_used, created_at, updated_at
        FROM users
        WHERE email = $1
    `
	return r.scanUser(r.db.QueryRow(ctx, query, email))
}

// FindByID returns a user by id.
func (r *UserRepository) FindByID(ctx context.Context, id int64) (*model.User, error) {
	query := `
        SELECT id, email, password_hash, name, gmail_configured, gmail_token,
               reference_date, last_import_at, tokens_used, created_at, updated_at
        FROM users
        WHERE id = $1
    `
	return r.scanUser(r.db.QueryRow(ctx, query, id))
}

// UpdateGmailConfig marks the mailbox as authorized and stores the
// bearer token plus the informational reference date.
func (r *UserRepository) UpdateGmailConfig(ctx context.Context, userID int64, token string, referenceDate time.Time) error {
	query := `
        UPDATE users
        SET gmail_configured = TRUE, gmail_token = $1, reference_date = $2, updated_at = NOW()
        WHERE id = $3
    `
	_, err := r.db.Exec(ctx, query, token, referenceDate, userID)
	return err
}

// ClearGmailConfig drops the stored credential and marks the mailbox
// as unconfigured.
func (r *UserRepository) ClearGmailConfig(ctx context.Context, userID int64) error {
	query := `
        UPDATE users
        SET gmail_configured = FALSE, gmail_token = '', updated_at = NOW()
        WHERE id = $1
    `
	_, err := r.db.Exec(ctx, query, userID)
	return err
}

// UpdateLastImport moves the user's import cursor.
func (r *UserRepository) UpdateLastImport(ctx context.Context, userID int64, t time.Time) error {
	query := `
        UPDATE users
        SET last_import_at = $1, updated_at = NOW()
        WHERE id = $2
    `
	_, err := r.db.Exec(ctx, query, t, userID)
	return err
}

// IncrementTokensUsed adds provider-reported token usage to the
// user's cumulative counter.
func (r *UserRepository) IncrementTokensUsed(ctx context.Context, userID int64, tokens int64) error {
	query := `
        UPDATE users
        SET tokens_used = tokens_used + $1, updated_at = NOW()
        WHERE id = $2
    `
	_, err := r.db.Exec(ctx, query, tokens, userID)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *UserRepository) scanUser(row rowScanner) (*model.User, error) {
	var u model.User
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.Name,
		&u.GmailConfigured,
		&u.GmailToken,
		&u.ReferenceDate,
		&u.LastImportAt,
		&u.TokensUsed,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

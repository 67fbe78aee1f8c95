package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/duynhne/claims-auth/internal/core/domain"
)

// PgxUserRepository implements domain.UserRepository using pgxpool.
type PgxUserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new PgxUserRepository.
func NewUserRepository(pool *pgxpool.Pool) *PgxUserRepository {
	return &PgxUserRepository{pool: pool}
}

const userColumns = `id, email, password_hash, first_name, last_name, is_active,
	email_verified_at, locked_at, failed_login_attempts, sessions_invalid_before`

func scanUser(row pgx.Row) (*domain.UserRow, error) {
	var u domain.UserRow
	err := row.Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.IsActive,
		&u.EmailVerifiedAt, &u.LockedAt, &u.FailedLoginAttempts, &u.SessionsInvalidBefore,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

// GetByEmail returns the user matching the given email, case-insensitively.
// Returns (nil, nil) when no user is found.
func (r *PgxUserRepository) GetByEmail(ctx context.Context, email string) (*domain.UserRow, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1)`
	return scanUser(r.pool.QueryRow(ctx, query, email))
}

// GetByID returns the user with the given ID.
// Returns (nil, nil) when no user is found.
func (r *PgxUserRepository) GetByID(ctx context.Context, userID string) (*domain.UserRow, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.pool.QueryRow(ctx, query, userID))
}

// GetPermissions returns the flat permission strings granted to the user.
func (r *PgxUserRepository) GetPermissions(ctx context.Context, userID string) ([]string, error) {
	query := `SELECT permission FROM user_permissions WHERE user_id = $1 ORDER BY permission`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	perms := []string{}
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

// RecordFailedLogin increments the failed-login counter and conditionally
// sets locked_at, in one statement. The RETURNING value is the post-increment
// count; concurrent callers each observe a distinct value, so exactly one of
// them sees the threshold itself.
func (r *PgxUserRepository) RecordFailedLogin(ctx context.Context, userID string, threshold int) (int, error) {
	query := `
		UPDATE users
		SET failed_login_attempts = failed_login_attempts + 1,
		    locked_at = CASE
		        WHEN failed_login_attempts + 1 >= $2 AND locked_at IS NULL THEN now()
		        ELSE locked_at
		    END,
		    updated_at = now()
		WHERE id = $1
		RETURNING failed_login_attempts
	`

	var count int
	if err := r.pool.QueryRow(ctx, query, userID, threshold).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/duynhne/claims-auth/internal/core/domain"
)

// PgxSessionRepository implements domain.SessionRepository using pgxpool.
type PgxSessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository creates a new PgxSessionRepository.
func NewSessionRepository(pool *pgxpool.Pool) *PgxSessionRepository {
	return &PgxSessionRepository{pool: pool}
}

// CreateAndResetAttempts inserts the session and zeroes the user's
// failed-login counter in one transaction. A successful login must discard
// prior failure state atomically with session creation.
func (r *PgxSessionRepository) CreateAndResetAttempts(ctx context.Context, s domain.SessionRow) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO sessions (id, user_id, token_hash, expires_at, created_at, ip_address, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, s.ID, s.UserID, s.TokenHash, s.ExpiresAt, s.CreatedAt, s.IPAddress, s.UserAgent)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE users SET failed_login_attempts = 0, updated_at = now() WHERE id = $1
	`, s.UserID)
	if err != nil {
		return fmt.Errorf("reset failed attempts: %w", err)
	}

	return tx.Commit(ctx)
}

// Revoke sets revoked_at on the session. A second revoke leaves the original
// timestamp in place.
func (r *PgxSessionRepository) Revoke(ctx context.Context, sessionID string) error {
	query := `UPDATE sessions SET revoked_at = now() WHERE id = $1 AND revoked_at IS NULL`
	_, err := r.pool.Exec(ctx, query, sessionID)
	return err
}

// RevokeAllAndInvalidate moves the user's cutoff and revokes the current
// session in one transaction. Older sessions stay untouched; they fall out
// of the validity predicate by comparing created_at against the cutoff.
func (r *PgxSessionRepository) RevokeAllAndInvalidate(ctx context.Context, userID, currentSessionID string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		UPDATE users SET sessions_invalid_before = now(), updated_at = now() WHERE id = $1
	`, userID)
	if err != nil {
		return fmt.Errorf("set session cutoff: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE sessions SET revoked_at = now() WHERE id = $1 AND revoked_at IS NULL
	`, currentSessionID)
	if err != nil {
		return fmt.Errorf("revoke current session: %w", err)
	}

	return tx.Commit(ctx)
}

// GetValidByTokenHash evaluates the full session validity predicate in SQL.
// Returns (nil, nil) when the token matches no valid session.
func (r *PgxSessionRepository) GetValidByTokenHash(ctx context.Context, tokenHash string) (*domain.SessionRow, error) {
	query := `
		SELECT s.id, s.user_id, s.token_hash, s.expires_at, s.revoked_at,
		       s.created_at, s.ip_address, s.user_agent
		FROM sessions s
		JOIN users u ON u.id = s.user_id
		WHERE s.token_hash = $1
		  AND s.revoked_at IS NULL
		  AND s.expires_at > now()
		  AND (u.sessions_invalid_before IS NULL OR s.created_at >= u.sessions_invalid_before)
	`

	var s domain.SessionRow
	err := r.pool.QueryRow(ctx, query, tokenHash).Scan(
		&s.ID, &s.UserID, &s.TokenHash, &s.ExpiresAt, &s.RevokedAt,
		&s.CreatedAt, &s.IPAddress, &s.UserAgent,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

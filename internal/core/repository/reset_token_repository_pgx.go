package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/duynhne/claims-auth/internal/core/domain"
)

// PgxResetTokenRepository implements domain.ResetTokenRepository using pgxpool.
type PgxResetTokenRepository struct {
	pool *pgxpool.Pool
}

// NewResetTokenRepository creates a new PgxResetTokenRepository.
func NewResetTokenRepository(pool *pgxpool.Pool) *PgxResetTokenRepository {
	return &PgxResetTokenRepository{pool: pool}
}

// Replace rotates the user's reset token: delete all unused tokens, insert
// the new one, one transaction. Guarantees at most one live token per user.
func (r *PgxResetTokenRepository) Replace(ctx context.Context, t domain.ResetTokenRow) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		DELETE FROM password_reset_tokens WHERE user_id = $1 AND used_at IS NULL
	`, t.UserID)
	if err != nil {
		return fmt.Errorf("delete stale tokens: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO password_reset_tokens (id, user_id, token_hash, expires_at)
		VALUES ($1, $2, $3, $4)
	`, t.ID, t.UserID, t.TokenHash, t.ExpiresAt)
	if err != nil {
		return fmt.Errorf("insert token: %w", err)
	}

	return tx.Commit(ctx)
}

// GetActiveByHash returns the unused, unexpired token matching the hash.
// Returns (nil, nil) otherwise.
func (r *PgxResetTokenRepository) GetActiveByHash(ctx context.Context, tokenHash string) (*domain.ResetTokenRow, error) {
	query := `
		SELECT id, user_id, token_hash, expires_at, used_at
		FROM password_reset_tokens
		WHERE token_hash = $1 AND used_at IS NULL AND expires_at > now()
	`

	var t domain.ResetTokenRow
	err := r.pool.QueryRow(ctx, query, tokenHash).Scan(
		&t.ID, &t.UserID, &t.TokenHash, &t.ExpiresAt, &t.UsedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

// Consume marks the token used, swaps the password hash, and moves the
// session cutoff, all in one transaction. The token update is guarded by
// used_at IS NULL; when the guard fails the transaction rolls back and
// Consume returns false, so of two concurrent confirms exactly one wins.
func (r *PgxResetTokenRepository) Consume(ctx context.Context, tokenID, userID, newPasswordHash string) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE password_reset_tokens SET used_at = now()
		WHERE id = $1 AND used_at IS NULL
	`, tokenID)
	if err != nil {
		return false, fmt.Errorf("consume token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	_, err = tx.Exec(ctx, `
		UPDATE users
		SET password_hash = $2, sessions_invalid_before = now(), updated_at = now()
		WHERE id = $1
	`, userID, newPasswordHash)
	if err != nil {
		return false, fmt.Errorf("update password: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

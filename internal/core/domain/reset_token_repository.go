package domain

import (
	"context"
	"time"
)

// ResetTokenRow represents a password-reset token record. Like sessions,
// only the token hash is stored.
type ResetTokenRow struct {
	ID        string
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	UsedAt    *time.Time
}

// ResetTokenRepository defines the data-access contract for password-reset
// tokens. At most one unused, unexpired token exists per user; Replace
// enforces this by rotation, not by a uniqueness constraint.
type ResetTokenRepository interface {
	// Replace deletes every unused token belonging to the user and inserts
	// the new one, in a single transaction.
	Replace(ctx context.Context, token ResetTokenRow) error

	// GetActiveByHash returns the token matching the hash when it is unused
	// and unexpired. Returns (nil, nil) otherwise.
	GetActiveByHash(ctx context.Context, tokenHash string) (*ResetTokenRow, error)

	// Consume, in one transaction, marks the token used via a conditional
	// update guarded by used_at IS NULL, swaps the user's password hash, and
	// moves the user's sessions_invalid_before cutoff to now. It returns
	// false (and rolls back) when the guard fails, i.e. the token was already
	// consumed by a concurrent confirm.
	Consume(ctx context.Context, tokenID, userID, newPasswordHash string) (bool, error)
}

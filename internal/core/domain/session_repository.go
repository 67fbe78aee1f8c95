package domain

import (
	"context"
	"time"
)

// SessionRow represents a session record. The raw token is never persisted;
// only its hash is stored.
type SessionRow struct {
	ID        string
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	RevokedAt *time.Time
	CreatedAt time.Time
	IPAddress string
	UserAgent string
}

// SessionMeta carries request metadata recorded with a new session.
type SessionMeta struct {
	IPAddress string
	UserAgent string
}

// SessionRepository defines the data-access contract for session operations.
//
// A session is valid iff it is not revoked, not expired, and was created at
// or after the owning user's sessions_invalid_before cutoff (when set).
type SessionRepository interface {
	// CreateAndResetAttempts inserts the session row and resets the user's
	// failed_login_attempts to 0 in one transaction.
	CreateAndResetAttempts(ctx context.Context, session SessionRow) error

	// Revoke sets revoked_at on the session. Revoking an already revoked
	// session leaves it revoked.
	Revoke(ctx context.Context, sessionID string) error

	// RevokeAllAndInvalidate, in one transaction, moves the user's
	// sessions_invalid_before cutoff to now and explicitly revokes the
	// caller's current session. Cost is O(1) in the number of sessions.
	RevokeAllAndInvalidate(ctx context.Context, userID, currentSessionID string) error

	// GetValidByTokenHash returns the session matching the token hash only
	// when the full validity predicate holds. Returns (nil, nil) otherwise.
	GetValidByTokenHash(ctx context.Context, tokenHash string) (*SessionRow, error)
}

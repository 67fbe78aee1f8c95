package domain

import (
	"context"
	"time"
)

// UserRow represents a user record returned from the database.
// It includes the password hash and lockout state so the Logic layer can
// run the full login state machine.
type UserRow struct {
	ID                    string
	Email                 string
	PasswordHash          string
	FirstName             string
	LastName              string
	IsActive              bool
	EmailVerifiedAt       *time.Time
	LockedAt              *time.Time
	FailedLoginAttempts   int
	SessionsInvalidBefore *time.Time
}

// UserRepository defines the data-access contract for user operations.
// Implementations live in internal/core/repository (Core layer).
// The Logic layer depends on this interface only — never on SQL or pgx directly.
type UserRepository interface {
	// GetByEmail returns the user matching the given email, compared
	// case-insensitively. Returns (nil, nil) when no user is found.
	GetByEmail(ctx context.Context, email string) (*UserRow, error)

	// GetByID returns the user with the given ID.
	// Returns (nil, nil) when no user is found.
	GetByID(ctx context.Context, userID string) (*UserRow, error)

	// GetPermissions returns the flat permission strings granted to the user.
	GetPermissions(ctx context.Context, userID string) ([]string, error)

	// RecordFailedLogin atomically increments the user's failed-login counter
	// and, in the same statement, sets locked_at when the post-increment value
	// reaches threshold. It returns the post-increment count. Never implemented
	// as a read followed by a write.
	RecordFailedLogin(ctx context.Context, userID string, threshold int) (int, error)
}

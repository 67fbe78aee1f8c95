package v1

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/duynhne/claims-auth/config"
	"github.com/duynhne/claims-auth/internal/audit"
	"github.com/duynhne/claims-auth/internal/core/domain"
	"github.com/duynhne/claims-auth/internal/jobs"
	"github.com/duynhne/claims-auth/middleware"
)

// AuthService implements the credential and session security rules.
// It depends on repository interfaces (injected via constructor) and
// MUST NOT access the database or SQL directly.
//
// All cross-request coordination is pushed into the repositories' atomic
// operations; the service itself holds no mutable state.
type AuthService struct {
	users       domain.UserRepository
	sessions    domain.SessionRepository
	resetTokens domain.ResetTokenRepository
	verifier    PasswordVerifier
	auditor     *audit.Dispatcher
	jobs        *jobs.Dispatcher
	cfg         config.AuthConfig
}

// NewAuthService creates a new AuthService with the given dependencies.
func NewAuthService(
	users domain.UserRepository,
	sessions domain.SessionRepository,
	resetTokens domain.ResetTokenRepository,
	verifier PasswordVerifier,
	auditor *audit.Dispatcher,
	jobDispatcher *jobs.Dispatcher,
	cfg config.AuthConfig,
) *AuthService {
	return &AuthService{
		users:       users,
		sessions:    sessions,
		resetTokens: resetTokens,
		verifier:    verifier,
		auditor:     auditor,
		jobs:        jobDispatcher,
		cfg:         cfg,
	}
}

// Login runs the login state machine. Evaluation order is fixed:
// user lookup, unconditional password verification, then account state
// checks. Every rejection returns ErrInvalidCredentials; the reason is
// recorded only in the audit trail.
func (s *AuthService) Login(ctx context.Context, req domain.LoginRequest, meta domain.SessionMeta) (*domain.AuthResponse, error) {
	ctx, span := middleware.StartSpan(ctx, "auth.login", trace.WithAttributes(
		attribute.String("layer", "logic"),
	))
	defer span.End()

	row, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("query user by email: %w", err)
	}

	// The password check runs before any short-circuit on account state,
	// including "user not found", so latency does not leak existence.
	var storedHash string
	if row != nil {
		storedHash = row.PasswordHash
	}
	passwordOK := s.verifier.Verify(req.Password, storedHash)

	if row == nil {
		s.auditLoginFailed(req.Email, "", meta, "not_found", 0)
		return nil, s.loginRejected(span, "not_found")
	}
	if row.LockedAt != nil {
		s.auditLoginFailed(req.Email, row.ID, meta, "locked", row.FailedLoginAttempts)
		return nil, s.loginRejected(span, "locked")
	}
	if row.EmailVerifiedAt == nil {
		s.auditLoginFailed(req.Email, row.ID, meta, "unverified", row.FailedLoginAttempts)
		return nil, s.loginRejected(span, "unverified")
	}
	if !row.IsActive {
		s.auditLoginFailed(req.Email, row.ID, meta, "inactive", row.FailedLoginAttempts)
		return nil, s.loginRejected(span, "inactive")
	}

	if !passwordOK {
		return nil, s.handleWrongPassword(ctx, span, row, req.Email, meta)
	}

	return s.issueSession(ctx, span, row, meta)
}

// handleWrongPassword records the failure through the atomic counter. Only
// the request whose returned count equals the threshold fires the lockout
// notification and the locked_now audit entry; concurrent requests that push
// the count past the threshold observe a strictly greater value and stay
// silent. That equality is the whole dedup mechanism.
func (s *AuthService) handleWrongPassword(ctx context.Context, span trace.Span, row *domain.UserRow, email string, meta domain.SessionMeta) error {
	count, err := s.users.RecordFailedLogin(ctx, row.ID, s.cfg.LockoutThreshold)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("record failed login: %w", err)
	}

	span.SetAttributes(attribute.Int("auth.failed_attempts", count))

	if count == s.cfg.LockoutThreshold {
		s.jobs.Enqueue(jobs.KindAccountLocked, map[string]string{
			"user_id": row.ID,
			"email":   row.Email,
		})
		s.auditor.Emit(audit.Event{
			Action:   audit.ActionLoginFailed,
			Severity: audit.SeverityWarning,
			UserID:   row.ID,
			Email:    email,
			IP:       meta.IPAddress,
			Context: map[string]string{
				"reason":   "locked_now",
				"attempts": strconv.Itoa(count),
			},
		})
	} else {
		s.auditLoginFailed(email, row.ID, meta, "wrong_password", count)
	}

	return s.loginRejected(span, "wrong_password")
}

func (s *AuthService) issueSession(ctx context.Context, span trace.Span, row *domain.UserRow, meta domain.SessionMeta) (*domain.AuthResponse, error) {
	rawToken, tokenHash, err := GenerateToken()
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("generate session token: %w", err)
	}

	now := time.Now()
	session := domain.SessionRow{
		ID:        uuid.NewString(),
		UserID:    row.ID,
		TokenHash: tokenHash,
		ExpiresAt: now.Add(s.cfg.SessionTTL),
		CreatedAt: now,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
	}

	if err := s.sessions.CreateAndResetAttempts(ctx, session); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("create session: %w", err)
	}

	user, err := s.projectUser(ctx, row)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.auditor.Emit(audit.Event{
		Action:  audit.ActionLogin,
		UserID:  row.ID,
		Email:   row.Email,
		IP:      meta.IPAddress,
		Context: map[string]string{"session_id": session.ID},
	})

	span.SetAttributes(
		attribute.String("user.id", row.ID),
		attribute.Bool("auth.success", true),
	)
	span.AddEvent("user.authenticated")

	return &domain.AuthResponse{
		Token:     rawToken,
		ExpiresAt: session.ExpiresAt,
		User:      *user,
	}, nil
}

// Authenticate resolves a presented bearer token to its session through the
// full validity predicate (revocation, expiry, cutoff timestamp). This is
// the reference check the request-authentication middleware relies on.
func (s *AuthService) Authenticate(ctx context.Context, rawToken string) (*domain.SessionRow, error) {
	ctx, span := middleware.StartSpan(ctx, "auth.authenticate", trace.WithAttributes(
		attribute.String("layer", "logic"),
	))
	defer span.End()

	session, err := s.sessions.GetValidByTokenHash(ctx, HashToken(rawToken))
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("query session: %w", err)
	}
	if session == nil {
		span.SetAttributes(attribute.Bool("session.valid", false))
		return nil, fmt.Errorf("lookup session: %w", ErrSessionInvalid)
	}

	span.SetAttributes(attribute.Bool("session.valid", true))
	return session, nil
}

// Logout revokes the given session. Revoking twice leaves the session
// revoked; the race between concurrent logouts on the same token resolves at
// the Authenticate step, not here.
func (s *AuthService) Logout(ctx context.Context, session *domain.SessionRow) error {
	ctx, span := middleware.StartSpan(ctx, "auth.logout", trace.WithAttributes(
		attribute.String("layer", "logic"),
	))
	defer span.End()

	if err := s.sessions.Revoke(ctx, session.ID); err != nil {
		span.RecordError(err)
		return fmt.Errorf("revoke session: %w", err)
	}

	s.auditor.Emit(audit.Event{
		Action:  audit.ActionLogout,
		UserID:  session.UserID,
		Context: map[string]string{"session_id": session.ID},
	})

	return nil
}

// LogoutAll invalidates every session of the user by moving the cutoff
// timestamp, and explicitly revokes the caller's current session. Sessions
// created before the cutoff become invalid without per-row writes.
func (s *AuthService) LogoutAll(ctx context.Context, session *domain.SessionRow) error {
	ctx, span := middleware.StartSpan(ctx, "auth.logout_all", trace.WithAttributes(
		attribute.String("layer", "logic"),
	))
	defer span.End()

	if err := s.sessions.RevokeAllAndInvalidate(ctx, session.UserID, session.ID); err != nil {
		span.RecordError(err)
		return fmt.Errorf("revoke all sessions: %w", err)
	}

	s.auditor.Emit(audit.Event{
		Action:  audit.ActionLogoutAll,
		UserID:  session.UserID,
		Context: map[string]string{"session_id": session.ID},
	})

	return nil
}

// GetCurrentUser returns the external projection of the given user.
func (s *AuthService) GetCurrentUser(ctx context.Context, userID string) (*domain.User, error) {
	ctx, span := middleware.StartSpan(ctx, "auth.get_current_user", trace.WithAttributes(
		attribute.String("layer", "logic"),
	))
	defer span.End()

	row, err := s.users.GetByID(ctx, userID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("query user %q: %w", userID, err)
	}
	if row == nil {
		return nil, fmt.Errorf("lookup user %q: %w", userID, ErrUserNotFound)
	}

	return s.projectUser(ctx, row)
}

func (s *AuthService) projectUser(ctx context.Context, row *domain.UserRow) (*domain.User, error) {
	perms, err := s.users.GetPermissions(ctx, row.ID)
	if err != nil {
		return nil, fmt.Errorf("load permissions: %w", err)
	}

	return &domain.User{
		ID:          row.ID,
		Email:       row.Email,
		FirstName:   row.FirstName,
		LastName:    row.LastName,
		IsActive:    row.IsActive,
		Permissions: perms,
	}, nil
}

func (s *AuthService) loginRejected(span trace.Span, reason string) error {
	span.SetAttributes(
		attribute.Bool("auth.success", false),
		attribute.String("auth.reject_reason", reason),
	)
	span.AddEvent("authentication.failed")
	return fmt.Errorf("authenticate: %s: %w", reason, ErrInvalidCredentials)
}

func (s *AuthService) auditLoginFailed(email, userID string, meta domain.SessionMeta, reason string, attempts int) {
	s.auditor.Emit(audit.Event{
		Action: audit.ActionLoginFailed,
		UserID: userID,
		Email:  email,
		IP:     meta.IPAddress,
		Context: map[string]string{
			"reason":   reason,
			"attempts": strconv.Itoa(attempts),
		},
	})
}

// logger is a small indirection so logic methods can share the request-scoped
// zerolog instance without plumbing it through every call.
func logger(ctx context.Context) *zerolog.Logger {
	return zerolog.Ctx(ctx)
}

package v1

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/duynhne/claims-auth/internal/audit"
	"github.com/duynhne/claims-auth/internal/core/domain"
	"github.com/duynhne/claims-auth/internal/jobs"
	"github.com/duynhne/claims-auth/middleware"
)

// RequestPasswordReset issues a reset token for an active account. The
// response is identical whether or not the account exists: the "no user"
// branch burns the same hashing cost and returns success.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	ctx, span := middleware.StartSpan(ctx, "auth.password_reset_request", trace.WithAttributes(
		attribute.String("layer", "logic"),
	))
	defer span.End()

	row, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("query user by email: %w", err)
	}

	if row == nil || !row.IsActive {
		s.verifier.DummyWork()
		logger(ctx).Debug().Msg("Password reset requested for unknown or inactive account")
		return nil
	}

	rawToken, tokenHash, err := GenerateToken()
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("generate reset token: %w", err)
	}

	token := domain.ResetTokenRow{
		ID:        uuid.NewString(),
		UserID:    row.ID,
		TokenHash: tokenHash,
		ExpiresAt: time.Now().Add(s.cfg.ResetTokenTTL),
	}

	// Rotation: any token from an earlier, abandoned request dies here.
	if err := s.resetTokens.Replace(ctx, token); err != nil {
		span.RecordError(err)
		return fmt.Errorf("store reset token: %w", err)
	}

	s.jobs.Enqueue(jobs.KindPasswordResetEmail, map[string]string{
		"user_id": row.ID,
		"email":   row.Email,
		"token":   rawToken,
	})
	s.auditor.Emit(audit.Event{
		Action: audit.ActionPasswordResetRequested,
		UserID: row.ID,
		Email:  row.Email,
	})

	span.SetAttributes(attribute.Bool("reset.issued", true))
	return nil
}

// ValidateResetToken checks a presented token without consuming it. Safe to
// call repeatedly; a UI pre-check page uses this before showing the form.
func (s *AuthService) ValidateResetToken(ctx context.Context, rawToken string) (*domain.ResetValidateResponse, error) {
	ctx, span := middleware.StartSpan(ctx, "auth.password_reset_validate", trace.WithAttributes(
		attribute.String("layer", "logic"),
	))
	defer span.End()

	token, err := s.resetTokens.GetActiveByHash(ctx, HashToken(rawToken))
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("query reset token: %w", err)
	}
	if token == nil {
		span.SetAttributes(attribute.Bool("reset.token_valid", false))
		return nil, fmt.Errorf("validate reset token: %w", ErrInvalidResetToken)
	}

	span.SetAttributes(attribute.Bool("reset.token_valid", true))
	return &domain.ResetValidateResponse{ExpiresAt: token.ExpiresAt}, nil
}

// ConfirmPasswordReset consumes the token exactly once: the conditional
// update inside Consume decides the winner between concurrent confirms, and
// the loser observes the same error an invalid token would produce. A
// successful confirm swaps the password and invalidates every prior session
// via the cutoff timestamp.
func (s *AuthService) ConfirmPasswordReset(ctx context.Context, rawToken, newPassword string) error {
	ctx, span := middleware.StartSpan(ctx, "auth.password_reset_confirm", trace.WithAttributes(
		attribute.String("layer", "logic"),
	))
	defer span.End()

	token, err := s.resetTokens.GetActiveByHash(ctx, HashToken(rawToken))
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("query reset token: %w", err)
	}
	if token == nil {
		span.SetAttributes(attribute.Bool("reset.token_valid", false))
		return fmt.Errorf("confirm reset: %w", ErrInvalidResetToken)
	}

	newHash, err := s.verifier.Hash(newPassword)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("hash new password: %w", err)
	}

	consumed, err := s.resetTokens.Consume(ctx, token.ID, token.UserID, newHash)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("consume reset token: %w", err)
	}
	if !consumed {
		// Lost the race to a concurrent confirm. USED is terminal, so this
		// surfaces as an invalid token.
		span.SetAttributes(attribute.Bool("reset.token_valid", false))
		return fmt.Errorf("confirm reset: token already consumed: %w", ErrInvalidResetToken)
	}

	s.auditor.Emit(audit.Event{
		Action: audit.ActionPasswordResetCompleted,
		UserID: token.UserID,
	})

	span.SetAttributes(attribute.Bool("reset.confirmed", true))
	return nil
}

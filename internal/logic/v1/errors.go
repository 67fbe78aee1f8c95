// Package v1 implements the credential and session security logic for API
// version 1: login with progressive lockout, session issuance and
// revocation, and the password-reset token lifecycle.
//
// Sentinel errors are wrapped with context using fmt.Errorf("%w") when
// returned and matched with errors.Is in the web layer. Every login
// rejection maps to the same client-visible result; the distinguishing
// reason lives only in the audit trail.
package v1

import "errors"

var (
	// ErrInvalidCredentials covers every login rejection: unknown email,
	// wrong password, locked, unverified, or inactive account.
	// HTTP Status: 401 Unauthorized
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrSessionInvalid indicates the presented session token matches no
	// valid session (missing, expired, revoked, or behind the cutoff).
	// HTTP Status: 401 Unauthorized
	ErrSessionInvalid = errors.New("session invalid")

	// ErrInvalidResetToken indicates a missing, expired, or already-used
	// password-reset token.
	// HTTP Status: 404 Not Found, code INVALID_RESET_TOKEN
	ErrInvalidResetToken = errors.New("invalid reset token")

	// ErrUserNotFound indicates the user record does not exist.
	// HTTP Status: 404 Not Found
	ErrUserNotFound = errors.New("user not found")
)

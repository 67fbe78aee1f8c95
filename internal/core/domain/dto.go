package domain

import "time"

// User is the external user projection returned by login and /auth/me.
// The password hash and lockout state never leave the service.
type User struct {
	ID          string   `json:"id"`
	Email       string   `json:"email"`
	FirstName   string   `json:"first_name"`
	LastName    string   `json:"last_name"`
	IsActive    bool     `json:"is_active"`
	Permissions []string `json:"permissions"`
}

// LoginRequest is the login request body.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// AuthResponse is returned on successful login.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      User      `json:"user"`
}

// ResetRequestBody is the password-reset request body.
type ResetRequestBody struct {
	Email string `json:"email" binding:"required,email"`
}

// ResetValidateBody carries a presented reset token.
type ResetValidateBody struct {
	Token string `json:"token" binding:"required"`
}

// ResetValidateResponse is returned when a reset token checks out.
type ResetValidateResponse struct {
	ExpiresAt time.Time `json:"expires_at"`
}

// ResetConfirmBody is the password-reset confirmation body.
type ResetConfirmBody struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=8"`
}

package v1

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/duynhne/claims-auth/internal/core/domain"
	logicv1 "github.com/duynhne/claims-auth/internal/logic/v1"
	"github.com/duynhne/claims-auth/middleware"
)

// Handler groups HTTP handlers for the auth API v1.
// Dependencies are injected via the constructor — no global state.
type Handler struct {
	auth *logicv1.AuthService
}

// NewHandler creates a new Handler with the given AuthService.
func NewHandler(auth *logicv1.AuthService) *Handler {
	return &Handler{auth: auth}
}

// RegisterRoutes registers all auth API v1 routes on the given router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/auth/login", h.Login)
	rg.POST("/auth/logout", h.Logout)
	rg.POST("/auth/logout-all", h.LogoutAll)
	rg.GET("/auth/me", h.GetMe)
	rg.POST("/auth/password-reset/request", h.RequestPasswordReset)
	rg.POST("/auth/password-reset/validate", h.ValidateResetToken)
	rg.POST("/auth/password-reset/confirm", h.ConfirmPasswordReset)
}

// Login handles HTTP request for user login.
// POST /api/v1/auth/login
func (h *Handler) Login(c *gin.Context) {
	ctx, span := middleware.StartSpan(c.Request.Context(), "http.request", trace.WithAttributes(
		attribute.String("layer", "web"),
		attribute.String("method", c.Request.Method),
		attribute.String("path", c.Request.URL.Path),
	))
	defer span.End()

	logger := zerolog.Ctx(ctx)

	var req domain.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.SetAttributes(attribute.Bool("request.valid", false))
		span.RecordError(err)
		logger.Warn().Err(err).Msg("Invalid request")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	span.SetAttributes(attribute.Bool("request.valid", true))

	meta := domain.SessionMeta{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}

	response, err := h.auth.Login(ctx, req, meta)
	if err != nil {
		span.RecordError(err)
		logger.Warn().Err(err).Msg("Login failed")

		switch {
		case errors.Is(err, logicv1.ErrInvalidCredentials):
			// One response for every rejection reason; the reason is only
			// in the audit trail.
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		}
		return
	}

	logger.Info().Str("user_id", response.User.ID).Msg("Login successful")
	c.JSON(http.StatusOK, response)
}

// Logout revokes the session presented in the Authorization header.
// POST /api/v1/auth/logout
func (h *Handler) Logout(c *gin.Context) {
	ctx, span := middleware.StartSpan(c.Request.Context(), "http.request", trace.WithAttributes(
		attribute.String("layer", "web"),
		attribute.String("method", c.Request.Method),
		attribute.String("path", c.Request.URL.Path),
	))
	defer span.End()

	logger := zerolog.Ctx(ctx)

	session, ok := h.currentSession(c, ctx, span)
	if !ok {
		return
	}

	if err := h.auth.Logout(ctx, session); err != nil {
		span.RecordError(err)
		logger.Error().Err(err).Msg("Logout failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	logger.Info().Str("user_id", session.UserID).Msg("Logout successful")
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// LogoutAll invalidates every session of the calling user.
// POST /api/v1/auth/logout-all
func (h *Handler) LogoutAll(c *gin.Context) {
	ctx, span := middleware.StartSpan(c.Request.Context(), "http.request", trace.WithAttributes(
		attribute.String("layer", "web"),
		attribute.String("method", c.Request.Method),
		attribute.String("path", c.Request.URL.Path),
	))
	defer span.End()

	logger := zerolog.Ctx(ctx)

	session, ok := h.currentSession(c, ctx, span)
	if !ok {
		return
	}

	if err := h.auth.LogoutAll(ctx, session); err != nil {
		span.RecordError(err)
		logger.Error().Err(err).Msg("Logout-all failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	logger.Info().Str("user_id", session.UserID).Msg("All sessions invalidated")
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GetMe returns the current user resolved from the session token.
// GET /api/v1/auth/me
// Authorization: Bearer <token>
func (h *Handler) GetMe(c *gin.Context) {
	ctx, span := middleware.StartSpan(c.Request.Context(), "http.request", trace.WithAttributes(
		attribute.String("layer", "web"),
		attribute.String("method", c.Request.Method),
		attribute.String("path", c.Request.URL.Path),
	))
	defer span.End()

	logger := zerolog.Ctx(ctx)

	session, ok := h.currentSession(c, ctx, span)
	if !ok {
		return
	}

	user, err := h.auth.GetCurrentUser(ctx, session.UserID)
	if err != nil {
		span.RecordError(err)
		logger.Warn().Err(err).Msg("User lookup failed")

		switch {
		case errors.Is(err, logicv1.ErrUserNotFound):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		}
		return
	}

	logger.Info().Str("user_id", user.ID).Msg("Token validated")
	c.JSON(http.StatusOK, user)
}

// RequestPasswordReset issues a reset token. Always returns 200 so the
// response cannot confirm account existence.
// POST /api/v1/auth/password-reset/request
func (h *Handler) RequestPasswordReset(c *gin.Context) {
	ctx, span := middleware.StartSpan(c.Request.Context(), "http.request", trace.WithAttributes(
		attribute.String("layer", "web"),
		attribute.String("method", c.Request.Method),
		attribute.String("path", c.Request.URL.Path),
	))
	defer span.End()

	logger := zerolog.Ctx(ctx)

	var req domain.ResetRequestBody
	if err := c.ShouldBindJSON(&req); err != nil {
		span.RecordError(err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.auth.RequestPasswordReset(ctx, req.Email); err != nil {
		span.RecordError(err)
		logger.Error().Err(err).Msg("Password reset request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ValidateResetToken pre-checks a reset token without consuming it.
// POST /api/v1/auth/password-reset/validate
func (h *Handler) ValidateResetToken(c *gin.Context) {
	ctx, span := middleware.StartSpan(c.Request.Context(), "http.request", trace.WithAttributes(
		attribute.String("layer", "web"),
		attribute.String("method", c.Request.Method),
		attribute.String("path", c.Request.URL.Path),
	))
	defer span.End()

	var req domain.ResetValidateBody
	if err := c.ShouldBindJSON(&req); err != nil {
		span.RecordError(err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.auth.ValidateResetToken(ctx, req.Token)
	if err != nil {
		span.RecordError(err)

		switch {
		case errors.Is(err, logicv1.ErrInvalidResetToken):
			c.JSON(http.StatusNotFound, gin.H{"error": "Invalid reset token", "code": "INVALID_RESET_TOKEN"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		}
		return
	}

	c.JSON(http.StatusOK, result)
}

// ConfirmPasswordReset consumes a reset token and sets the new password.
// POST /api/v1/auth/password-reset/confirm
func (h *Handler) ConfirmPasswordReset(c *gin.Context) {
	ctx, span := middleware.StartSpan(c.Request.Context(), "http.request", trace.WithAttributes(
		attribute.String("layer", "web"),
		attribute.String("method", c.Request.Method),
		attribute.String("path", c.Request.URL.Path),
	))
	defer span.End()

	logger := zerolog.Ctx(ctx)

	var req domain.ResetConfirmBody
	if err := c.ShouldBindJSON(&req); err != nil {
		span.RecordError(err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.auth.ConfirmPasswordReset(ctx, req.Token, req.NewPassword); err != nil {
		span.RecordError(err)
		logger.Warn().Err(err).Msg("Password reset confirm failed")

		switch {
		case errors.Is(err, logicv1.ErrInvalidResetToken):
			c.JSON(http.StatusNotFound, gin.H{"error": "Invalid reset token", "code": "INVALID_RESET_TOKEN"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		}
		return
	}

	logger.Info().Msg("Password reset completed")
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// currentSession extracts the bearer token and resolves it through the
// session validity predicate. Writes the 401 itself when the token is
// missing or invalid.
func (h *Handler) currentSession(c *gin.Context, ctx context.Context, span trace.Span) (*domain.SessionRow, bool) {
	token, ok := bearerToken(c)
	if !ok {
		span.SetAttributes(attribute.Bool("auth.present", false))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
		return nil, false
	}

	span.SetAttributes(attribute.Bool("auth.present", true))

	session, err := h.auth.Authenticate(ctx, token)
	if err != nil {
		span.RecordError(err)

		switch {
		case errors.Is(err, logicv1.ErrSessionInvalid):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		}
		return nil, false
	}

	return session, true
}

func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	const bearerPrefix = "Bearer "
	if !strings.HasPrefix(authHeader, bearerPrefix) || len(authHeader) == len(bearerPrefix) {
		return "", false
	}
	return authHeader[len(bearerPrefix):], true
}

// Package audit provides fire-and-forget audit event dispatch. Emitting an
// event never blocks or fails the caller's primary operation; when the
// buffer is full the event is dropped and counted.
package audit

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Severity classifies an audit event.
type Severity string

const (
	SeverityInfo    Severity = "INFO"
	SeverityWarning Severity = "WARNING"
)

// Actions recorded by the credential and session subsystem.
const (
	ActionLogin                  = "LOGIN"
	ActionLoginFailed            = "LOGIN_FAILED"
	ActionLogout                 = "LOGOUT"
	ActionLogoutAll              = "LOGOUT_ALL"
	ActionPasswordResetRequested = "PASSWORD_RESET_REQUESTED"
	ActionPasswordResetCompleted = "PASSWORD_RESET_COMPLETED"
)

// Event is the audit event model.
type Event struct {
	Timestamp time.Time         `json:"timestamp"`
	Action    string            `json:"action"`
	Severity  Severity          `json:"severity"`
	UserID    string            `json:"user_id,omitempty"`
	Email     string            `json:"email,omitempty"`
	IP        string            `json:"ip,omitempty"`
	Context   map[string]string `json:"context,omitempty"`
}

// Sink receives emitted audit events.
type Sink interface {
	Log(ctx context.Context, event Event)
}

// NoOpSink drops audit events.
type NoOpSink struct{}

func (NoOpSink) Log(context.Context, Event) {}

// ZerologSink writes audit events through a zerolog logger. Stands in for
// the back office's audit-log persistence, which is owned elsewhere.
type ZerologSink struct {
	logger zerolog.Logger
}

func NewZerologSink(logger zerolog.Logger) *ZerologSink {
	return &ZerologSink{logger: logger}
}

func (s *ZerologSink) Log(_ context.Context, e Event) {
	event := s.logger.Info()
	if e.Severity == SeverityWarning {
		event = s.logger.Warn()
	}
	event.
		Time("timestamp", e.Timestamp).
		Str("action", e.Action).
		Str("severity", string(e.Severity)).
		Str("user_id", e.UserID).
		Str("email", e.Email).
		Str("ip", e.IP).
		Interface("context", e.Context).
		Msg("audit event")
}

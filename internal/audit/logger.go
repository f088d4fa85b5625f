// Package audit records security-relevant events. Writes are fire and
// forget: an audit failure must never abort an authentication flow.
package audit

import (
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/corvid-dev/authd/domain"
)

// Event types and data keys shared with log consumers.
const (
	EventAuthentication = "AUTHENTICATION"

	ActionLogin  = "LOGIN"
	ActionLogout = "LOGOUT"

	StatusSuccess = "SUCCESS"
	StatusFailure = "FAILURE"

	KeyAction = "action"
	KeyStatus = "status"
	KeyReason = "reason"
)

// Logger is the audit sink the authentication core writes to. Implementations
// must not return errors into the auth flow; failures are their own problem.
type Logger interface {
	LogEvent(principal, eventType string, data map[string]string, client domain.ClientContext)
}

// ZerologLogger writes audit events as structured JSON lines.
type ZerologLogger struct {
	logger zerolog.Logger
}

// NewLogger creates an audit logger writing to stdout.
func NewLogger() *ZerologLogger {
	return &ZerologLogger{
		logger: zerolog.New(os.Stdout).With().Timestamp().Logger(),
	}
}

// NewLoggerTo creates an audit logger with a custom destination, mostly for
// tests.
func NewLoggerTo(logger zerolog.Logger) *ZerologLogger {
	return &ZerologLogger{logger: logger}
}

// LogEvent records a single audit event.
func (l *ZerologLogger) LogEvent(principal, eventType string, data map[string]string, client domain.ClientContext) {
	event := l.logger.Log().
		Time("timestamp", time.Now().UTC()).
		Str("event_type", eventType).
		Str("principal", principal)

	for k, v := range data {
		event = event.Str(k, v)
	}

	if client.IPAddress != "" {
		event = event.Str("ip_address", client.IPAddress)
	}
	if client.UserAgent != "" {
		event = event.Str("user_agent", client.UserAgent)
	}

	event.Msg("audit_event")
}

var _ Logger = (*ZerologLogger)(nil)

package audit

import (
	"context"
	"io"
	"time"

	"github.com/org/feedbackvault/pkg/models"
	"github.com/rs/zerolog"
)

// Logger writes one structured audit record per request.
type Logger struct {
	log zerolog.Logger
}

// NewLogger creates an audit Logger writing JSON lines to w.
func NewLogger(w io.Writer) *Logger {
	return &Logger{log: zerolog.New(w).With().Str("stream", "audit").Logger()}
}

// LogRequest records a request. Feedback content must NEVER be passed here, only metadata.
func (l *Logger) LogRequest(_ context.Context, entry *models.AuditEntry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	l.log.Info().
		Time("ts", entry.Timestamp).
		Str("request_id", entry.RequestID).
		Str("principal", entry.PrincipalID).
		Str("operation", entry.Operation).
		Str("path", entry.Path).
		Str("feedback_id", entry.FeedbackID).
		Str("status", entry.Status).
		Int("code", entry.ResponseCode).
		Int64("duration_ms", entry.ResponseTimeMs).
		Str("client_ip", entry.ClientIP).
		Str("user_agent", entry.UserAgent).
		Send()
}

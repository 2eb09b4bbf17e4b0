package notify

import (
	"context"

	"github.com/stwalsh4118/covenant/internal/logger"
)

// LogMailer writes messages to the log instead of delivering them. It is used
// when no email provider is configured.
type LogMailer struct {
	log *logger.Logger
}

// NewLogMailer creates a LogMailer.
func NewLogMailer(log *logger.Logger) *LogMailer {
	return &LogMailer{log: log}
}

// Send logs the message envelope.
func (m *LogMailer) Send(_ context.Context, msg Message) error {
	m.log.Info("Email delivery disabled, message logged only", map[string]interface{}{
		"to":       msg.To,
		"subject":  msg.Subject,
		"category": msg.Category,
	})
	return nil
}

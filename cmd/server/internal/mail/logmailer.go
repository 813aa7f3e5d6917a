package mail

import (
	"context"
	"log/slog"
)

// LogMailer discards messages after logging them. Used when no provider
// credential is configured, so development setups exercise the full pipeline
// without sending real email.
type LogMailer struct {
	log *slog.Logger
}

// NewLogMailer returns a mailer that only logs.
func NewLogMailer(log *slog.Logger) *LogMailer {
	return &LogMailer{log: log}
}

// Send implements Mailer.
func (m *LogMailer) Send(_ context.Context, msgs []Message) error {
	for _, msg := range msgs {
		m.log.Info("mail suppressed (no provider configured)",
			"to", msg.To,
			"subject", msg.Subject,
		)
	}
	return nil
}

var _ Mailer = (*LogMailer)(nil)

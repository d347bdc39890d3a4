package mailer

import (
	"context"
	"log/slog"
)

// LogMailer writes magic links to the log instead of sending email. Used
// in local development when no Resend API key is configured.
type LogMailer struct {
	Logger *slog.Logger
}

var _ Mailer = (*LogMailer)(nil)

func (l *LogMailer) SendMagicLink(_ context.Context, email, url string) error {
	l.Logger.Info("magic link (email delivery disabled)",
		slog.String("email", email),
		slog.String("url", url),
	)
	return nil
}

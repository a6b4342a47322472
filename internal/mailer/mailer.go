// Package mailer sends introduction lifecycle emails. Sending is
// fire-and-forget; callers log failures and move on.
package mailer

import (
	"context"

	"go.uber.org/zap"

	"github.com/introhq/introhq/internal/model"
)

// Mailer notifies introduction parties by email.
type Mailer interface {
	SendReminder(ctx context.Context, intro *model.Introduction, message string) error
	SendConnected(ctx context.Context, intro *model.Introduction) error
}

// LogMailer records what would be sent instead of sending it. It stands
// in until a real delivery backend is configured.
type LogMailer struct{}

// NewLogMailer creates a LogMailer.
func NewLogMailer() *LogMailer {
	return &LogMailer{}
}

// SendReminder implements Mailer.
func (m *LogMailer) SendReminder(_ context.Context, intro *model.Introduction, message string) error {
	zap.L().Info("reminder email",
		zap.String("introduction_id", intro.ID),
		zap.String("introduced_email", intro.Introduced.Email),
		zap.String("introduced_to_email", intro.IntroducedTo.Email),
		zap.String("message", message),
	)
	return nil
}

// SendConnected implements Mailer.
func (m *LogMailer) SendConnected(_ context.Context, intro *model.Introduction) error {
	zap.L().Info("connected email",
		zap.String("introduction_id", intro.ID),
		zap.String("introduced_email", intro.Introduced.Email),
		zap.String("introduced_to_email", intro.IntroducedTo.Email),
	)
	return nil
}

package mail

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bkaraoglu/timberline-api/internal/models"
)

// Mailer is the delivery boundary. Implementations are called
// fire-and-forget: a failed send never fails the auth flow that requested
// it.
type Mailer interface {
	SendVerificationEmail(ctx context.Context, user *models.User, token string) error
	SendPasswordResetEmail(ctx context.Context, user *models.User, token string) error
}

// LogMailer stands in for a real delivery provider: it logs the message it
// would send, links included, at info level.
type LogMailer struct {
	baseURL string
}

func NewLogMailer(baseURL string) *LogMailer {
	return &LogMailer{baseURL: baseURL}
}

func (m *LogMailer) SendVerificationEmail(_ context.Context, user *models.User, token string) error {
	slog.Info("verification email queued",
		"email", user.Email,
		"link", fmt.Sprintf("%s/verify-email?email=%s&token=%s", m.baseURL, user.Email, token),
	)
	return nil
}

func (m *LogMailer) SendPasswordResetEmail(_ context.Context, user *models.User, token string) error {
	slog.Info("password reset email queued",
		"email", user.Email,
		"link", fmt.Sprintf("%s/reset-password?email=%s&token=%s", m.baseURL, user.Email, token),
	)
	return nil
}

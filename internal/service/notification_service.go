package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"quill/internal/middleware"
	"quill/internal/models"
	"quill/internal/observability"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// MailSender delivers a single email. Implementations must be safe for
// concurrent use.
type MailSender interface {
	Send(ctx context.Context, toEmail, subject, plainBody string) error
}

// SendGridSender delivers mail through the SendGrid API.
type SendGridSender struct {
	apiKey   string
	from     string
	fromName string
}

func NewSendGridSender(apiKey, from string) *SendGridSender {
	return &SendGridSender{apiKey: apiKey, from: from, fromName: "Quill"}
}

func (s *SendGridSender) Send(_ context.Context, toEmail, subject, plainBody string) error {
	from := mail.NewEmail(s.fromName, s.from)
	to := mail.NewEmail("", toEmail)
	message := mail.NewSingleEmail(from, subject, to, plainBody, "")

	client := sendgrid.NewSendClient(s.apiKey)
	resp, err := client.Send(message)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid rejected message: status %d", resp.StatusCode)
	}
	return nil
}

// LogSender writes the message to the log instead of delivering it. Used in
// development when no mail credentials are configured.
type LogSender struct{}

func (LogSender) Send(_ context.Context, toEmail, subject, plainBody string) error {
	middleware.Logger.Info("mail (log only)",
		slog.String("to", toEmail),
		slog.String("subject", subject),
		slog.String("body", plainBody),
	)
	return nil
}

// NotificationService composes and dispatches the password-reset email.
type NotificationService struct {
	auth     *AuthService
	sender   MailSender
	baseURL  string
	resetTTL time.Duration
}

func NewNotificationService(auth *AuthService, sender MailSender, baseURL string, resetTTL time.Duration) *NotificationService {
	return &NotificationService{auth: auth, sender: sender, baseURL: baseURL, resetTTL: resetTTL}
}

// SendPasswordReset issues a reset token for the user and mails a link
// embedding it. Delivery failures are logged and counted but never fail the
// request; the returned error is informational.
func (s *NotificationService) SendPasswordReset(ctx context.Context, user *models.User) error {
	token, err := s.auth.IssueResetToken(user, s.resetTTL)
	if err != nil {
		return models.NewInternalError(err)
	}

	link := fmt.Sprintf("%s/reset_password/%s", s.baseURL, token)
	body := fmt.Sprintf(`To reset your password, click this link: %s

If you did not request this, just ignore this email!
`, link)

	if err := s.sender.Send(ctx, user.Email, "Password reset request", body); err != nil {
		observability.ResetEmailFailures.Inc()
		middleware.Logger.Warn("password reset email delivery failed",
			slog.String("email", user.Email),
			slog.String("error", err.Error()),
		)
		return err
	}

	observability.ResetEmailsSent.Inc()
	return nil
}

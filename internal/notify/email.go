package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"handyhub/internal/config"
	"handyhub/internal/models"

	"github.com/rs/zerolog"
)

// EmailNotifier delivers OTP codes and booking status updates over SMTP.
// Without SMTP credentials it degrades to logging the message, which keeps
// local development and tests free of a mail server.
type EmailNotifier struct {
	cfg    config.SMTPConfig
	logger *zerolog.Logger

	// send подменяется в тестах.
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewEmailNotifier(cfg config.SMTPConfig, logger *zerolog.Logger) *EmailNotifier {
	return &EmailNotifier{
		cfg:    cfg,
		logger: logger,
		send:   smtp.SendMail,
	}
}

func (n *EmailNotifier) configured() bool {
	return n.cfg.Host != "" && n.cfg.Username != "" && n.cfg.Password != ""
}

// SendOTP emails the completion code. The code never appears in logs, even
// on the mock path.
func (n *EmailNotifier) SendOTP(ctx context.Context, email, name, code string, ttl time.Duration) error {
	if !n.configured() {
		n.logger.Info().Str("to", email).Msg("mock email: otp code issued")
		return nil
	}

	subject := "Your service completion code"
	body := fmt.Sprintf(
		"Hi %s,\n\n"+
			"Your completion code is: %s\n"+
			"It expires in %d minutes.\n\n"+
			"Share it with your provider only after the work is done.\n",
		sanitize(name), code, int(ttl.Minutes()),
	)

	return n.deliver(ctx, email, subject, body)
}

// SendStatusUpdate emails the customer about a booking status change.
func (n *EmailNotifier) SendStatusUpdate(ctx context.Context, email, name string, booking *models.Booking) error {
	if !n.configured() {
		n.logger.Info().
			Str("to", email).
			Str("booking_id", booking.ID).
			Str("status", booking.Status).
			Msg("mock email: status update")
		return nil
	}

	subject := fmt.Sprintf("Booking update: %s", booking.Service)
	body := fmt.Sprintf(
		"Hi %s,\n\n"+
			"Your booking for %q with %s is now %s.\n",
		sanitize(name), booking.Service, booking.ProviderUsername, statusPhrase(booking.Status),
	)

	return n.deliver(ctx, email, subject, body)
}

func (n *EmailNotifier) deliver(ctx context.Context, email, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	from := fmt.Sprintf("%s <%s>", n.cfg.FromName, n.cfg.Username)
	addr := fmt.Sprintf("%s:%d", n.cfg.Host, n.cfg.Port)
	auth := smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("From: %s\r\n", from))
	sb.WriteString(fmt.Sprintf("To: %s\r\n", email))
	sb.WriteString(fmt.Sprintf("Subject: %s\r\n", sanitize(subject)))
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	sb.WriteString(body)

	if err := n.send(addr, auth, n.cfg.Username, []string{email}, []byte(sb.String())); err != nil {
		n.logger.Error().Err(err).Str("to", email).Msg("send email error")
		return fmt.Errorf("send email: %w", err)
	}

	n.logger.Debug().Str("to", email).Msg("email sent")
	return nil
}

// sanitize strips header-injection material from user-supplied values.
func sanitize(s string) string {
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.TrimSpace(s)
}

func statusPhrase(status string) string {
	switch status {
	case models.StatusConfirm:
		return "confirmed"
	case models.StatusRejected:
		return "rejected by the provider"
	case models.StatusCancel:
		return "cancelled"
	case models.StatusCompleted:
		return "completed"
	default:
		return status
	}
}

package mailer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

// Mailer delivers login codes.
type Mailer interface {
	SendVerificationCode(ctx context.Context, to, code string, ttl time.Duration) error
}

const subject = "Your Travel Expense Manager login code"

func verificationBody(code string, ttl time.Duration) string {
	return fmt.Sprintf(
		"Your login code is %s.\n\nIt expires in %d minutes. If you did not request it, ignore this e-mail.\n",
		code, int(ttl.Minutes()))
}

// SMTPMailer sends mail through an SMTP relay. Port 465 uses implicit TLS, other ports STARTTLS when offered.
type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPMailer(host string, port int, username, password, from string) *SMTPMailer {
	return &SMTPMailer{
		dialer: gomail.NewDialer(host, port, username, password),
		from:   from,
	}
}

func (m *SMTPMailer) SendVerificationCode(ctx context.Context, to, code string, ttl time.Duration) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", verificationBody(code, ttl))

	// gomail has no context support; give up waiting when the request is gone.
	done := make(chan error, 1)
	go func() {
		done <- m.dialer.DialAndSend(msg)
	}()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send mail: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LogMailer writes codes to the log instead of sending them. Development only.
type LogMailer struct {
	logger *zap.Logger
}

func NewLogMailer(logger *zap.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) SendVerificationCode(_ context.Context, to, code string, ttl time.Duration) error {
	m.logger.Info("verification code (mail delivery disabled)",
		zap.String("to", to),
		zap.String("code", code),
		zap.Duration("ttl", ttl),
	)
	return nil
}

package auth

import (
	"fmt"

	"gopkg.in/gomail.v2"
)

// Mailer sends account lifecycle mails. Implementations must be safe
// for concurrent use.
type Mailer interface {
	SendVerificationMail(to, token string) error
	SendPasswordResetMail(to, token string) error
}

// SMTPConfig holds mail transport settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string

	// BaseURL is the public URL of this service, used to build the
	// links embedded in mails.
	BaseURL string
}

// SMTPMailer sends mails over SMTP via gomail.
type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
	base   string
}

// NewSMTPMailer creates a mailer from transport settings.
func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	return &SMTPMailer{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
		base:   cfg.BaseURL,
	}
}

// SendVerificationMail sends the email confirmation link.
func (m *SMTPMailer) SendVerificationMail(to, token string) error {
	link := fmt.Sprintf("%s/auth/confirm-email?token=%s", m.base, token)
	body := fmt.Sprintf(
		"Welcome to HomeLink.\r\n\r\n"+
			"Confirm your email address by opening this link:\r\n\r\n%s\r\n\r\n"+
			"The link expires in 24 hours. If you did not create an account, ignore this mail.\r\n",
		link,
	)
	return m.send(to, "Confirm your HomeLink account", body)
}

// SendPasswordResetMail sends the password reset link.
func (m *SMTPMailer) SendPasswordResetMail(to, token string) error {
	link := fmt.Sprintf("%s/auth/reset-password?token=%s", m.base, token)
	body := fmt.Sprintf(
		"A password reset was requested for your HomeLink account.\r\n\r\n"+
			"Open this link to choose a new password:\r\n\r\n%s\r\n\r\n"+
			"The link expires in 1 hour. If you did not request a reset, ignore this mail.\r\n",
		link,
	)
	return m.send(to, "Reset your HomeLink password", body)
}

func (m *SMTPMailer) send(to, subject, body string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("sending mail to %s: %w", to, err)
	}
	return nil
}

// NoopMailer discards all mails. Used in tests and in deployments
// without an SMTP relay, where tokens surface in logs instead.
type NoopMailer struct{}

// SendVerificationMail implements Mailer.
func (NoopMailer) SendVerificationMail(string, string) error { return nil }

// SendPasswordResetMail implements Mailer.
func (NoopMailer) SendPasswordResetMail(string, string) error { return nil }

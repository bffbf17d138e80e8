// Package notify delivers password reset and invite links to users.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/gomail.v2"
)

// Recipient is the addressee of a link.
type Recipient struct {
	Email string
	Name  string
}

// Sender dispatches one-time links. Implementations must not retain the link.
type Sender interface {
	SendResetLink(ctx context.Context, to Recipient, link string, expiresAt time.Time) error
	SendInviteLink(ctx context.Context, to Recipient, link string, expiresAt time.Time) error
}

// SMTPConfig holds SMTP settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Enabled reports whether enough is configured to send mail.
func (c SMTPConfig) Enabled() bool {
	return c.Host != "" && c.From != ""
}

type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPSender sends links by e-mail.
type SMTPSender struct {
	from   string
	dialer dialer
}

// NewSMTPSender returns an SMTPSender for cfg.
func NewSMTPSender(cfg SMTPConfig) (*SMTPSender, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("notify: SMTP host and from address are required")
	}
	port := cfg.Port
	if port == 0 {
		port = 587
	}
	return &SMTPSender{
		from:   cfg.From,
		dialer: gomail.NewDialer(cfg.Host, port, cfg.Username, cfg.Password),
	}, nil
}

func (s *SMTPSender) SendResetLink(ctx context.Context, to Recipient, link string, expiresAt time.Time) error {
	body := fmt.Sprintf("%s,\n\nA password reset was requested for your DFP-NEO account.\n"+
		"Use the link below to choose a new password. It expires at %s.\n\n%s\n\n"+
		"If you did not request this, you can ignore this message.\n",
		greeting(to), expiresAt.UTC().Format(time.RFC1123), link)
	return s.send(to, "Reset your DFP-NEO password", body)
}

func (s *SMTPSender) SendInviteLink(ctx context.Context, to Recipient, link string, expiresAt time.Time) error {
	body := fmt.Sprintf("%s,\n\nAn account has been created for you on DFP-NEO.\n"+
		"Use the link below to set your password. It expires at %s.\n\n%s\n",
		greeting(to), expiresAt.UTC().Format(time.RFC1123), link)
	return s.send(to, "Set up your DFP-NEO account", body)
}

func (s *SMTPSender) send(to Recipient, subject, body string) error {
	if to.Email == "" {
		return fmt.Errorf("notify: no recipient address")
	}
	msg := gomail.NewMessage()
	msg.SetHeader("From", s.from)
	if to.Name != "" {
		msg.SetAddressHeader("To", to.Email, to.Name)
	} else {
		msg.SetHeader("To", to.Email)
	}
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)
	if err := s.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("notify: send %q: %w", subject, err)
	}
	return nil
}

func greeting(to Recipient) string {
	if to.Name != "" {
		return "Hello " + to.Name
	}
	return "Hello"
}

// LogSender writes links to the log instead of sending them. Used when SMTP is not configured.
type LogSender struct {
	log zerolog.Logger
}

func NewLogSender(log zerolog.Logger) *LogSender {
	return &LogSender{log: log.With().Str("component", "notify").Logger()}
}

func (s *LogSender) SendResetLink(ctx context.Context, to Recipient, link string, expiresAt time.Time) error {
	s.log.Info().Str("email", to.Email).Str("link", link).Time("expires_at", expiresAt).Msg("password reset link")
	return nil
}

func (s *LogSender) SendInviteLink(ctx context.Context, to Recipient, link string, expiresAt time.Time) error {
	s.log.Info().Str("email", to.Email).Str("link", link).Time("expires_at", expiresAt).Msg("invite link")
	return nil
}

package mailer

import (
	"errors"
	"fmt"
	"strings"

	gomail "gopkg.in/gomail.v2"
)

// Config holds SMTP transport settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Mailer delivers plain-text email over SMTP.
type Mailer struct {
	dialer *gomail.Dialer
	from   string
}

// New builds a mailer from SMTP config.
func New(cfg Config) (*Mailer, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, errors.New("smtp host required")
	}
	if cfg.Port <= 0 {
		cfg.Port = 587
	}
	from := strings.TrimSpace(cfg.From)
	if from == "" {
		from = cfg.Username
	}
	if from == "" {
		return nil, errors.New("smtp from address required")
	}
	return &Mailer{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   from,
	}, nil
}

// Send delivers one message to all recipients.
func (m *Mailer) Send(subject, body string, recipients []string) error {
	if len(recipients) == 0 {
		return errors.New("recipients required")
	}
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", recipients...)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)
	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

// Package mailer delivers one-time codes by email.
//
// Delivery is decoupled from request handling by construction: handlers hand
// messages to a Dispatcher, which queues them on a buffered channel drained
// by a background worker. A slow or failing relay can therefore never block
// or fail an authentication response; failures are logged and counted, and
// a full queue drops rather than blocks.
package mailer

import (
	"errors"
	"fmt"
	"net/mail"

	"gopkg.in/gomail.v2"
)

// ErrInvalidAddress marks a recipient that can never receive mail. It is
// distinguished from transport failures only to pick a log level.
var ErrInvalidAddress = errors.New("invalid recipient address")

// Sender delivers a single message synchronously.
type Sender interface {
	Send(to, subject, body string) error
}

// SMTPConfig holds relay connection settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPSender delivers mail through an authenticated SMTP relay.
type SMTPSender struct {
	dialer *gomail.Dialer
	from   string
}

// NewSMTPSender returns a Sender for the given relay.
func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	return &SMTPSender{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

// Send delivers one message. Invalid recipients fail with
// ErrInvalidAddress before any relay contact.
func (s *SMTPSender) Send(to, subject, body string) error {
	if _, err := mail.ParseAddress(to); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", fmt.Sprintf("BoilerSwap <%s>", s.from))
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

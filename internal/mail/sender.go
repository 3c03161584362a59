// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credentia Contributors

// Package mail delivers confirmation and recovery codes by email.
package mail

import (
	"context"
	"net"
	"net/smtp"
	"strconv"

	"github.com/jordan-wright/email"
	"github.com/samber/oops"

	"github.com/credentia/credentia/internal/auth"
)

// SMTPConfig holds the SMTP relay settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
}

// Config configures a Sender.
type Config struct {
	From            string
	SMTP            SMTPConfig
	ConfirmationURL string
	RecoveryURL     string
}

// Transport hands a composed message to a mail relay.
type Transport interface {
	Send(e *email.Email) error
}

type smtpTransport struct {
	addr string
	auth smtp.Auth
}

func (t smtpTransport) Send(e *email.Email) error {
	return e.Send(t.addr, t.auth)
}

// NewSMTPTransport returns a Transport that delivers through cfg's relay.
// PLAIN auth is used only when a username is set.
func NewSMTPTransport(cfg SMTPConfig) Transport {
	var plainAuth smtp.Auth
	if cfg.Username != "" {
		plainAuth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return smtpTransport{
		addr: net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		auth: plainAuth,
	}
}

// Sender implements auth.EmailSender. Each call sends exactly one message and
// does not retry.
type Sender struct {
	cfg       Config
	transport Transport
}

// NewSender creates a Sender that delivers through transport.
func NewSender(cfg Config, transport Transport) (*Sender, error) {
	if cfg.From == "" {
		return nil, oops.Code("MAIL_CONFIG_INVALID").Errorf("mail.from is required")
	}
	if transport == nil {
		return nil, oops.Code("MAIL_CONFIG_INVALID").Errorf("transport is required")
	}
	return &Sender{cfg: cfg, transport: transport}, nil
}

// SendConfirmationEmail sends the registration confirmation code to address.
func (s *Sender) SendConfirmationEmail(ctx context.Context, address, code string) error {
	return s.send(ctx, KindConfirmation, s.cfg.ConfirmationURL, address, code)
}

// SendRecoveryEmail sends the password recovery code to address.
func (s *Sender) SendRecoveryEmail(ctx context.Context, address, code string) error {
	return s.send(ctx, KindRecovery, s.cfg.RecoveryURL, address, code)
}

func (s *Sender) send(ctx context.Context, kind Kind, baseURL, address, code string) error {
	if err := ctx.Err(); err != nil {
		return oops.Code("MAIL_SEND_FAILED").With("kind", kind).Wrap(err)
	}

	subject, body, err := Render(kind, baseURL, code)
	if err != nil {
		return err
	}

	e := email.NewEmail()
	e.From = s.cfg.From
	e.To = []string{address}
	e.Subject = subject
	e.HTML = body

	if err := s.transport.Send(e); err != nil {
		return oops.Code("MAIL_SEND_FAILED").
			With("operation", "smtp send").
			With("kind", kind).
			Wrap(err)
	}
	return nil
}

var _ auth.EmailSender = (*Sender)(nil)

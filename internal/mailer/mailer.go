package mailer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/joao-fontenele/storefront/internal/config"
)

// ErrInvalidMessage marks a message that can never be sent as built, such as
// one with a malformed address. Retrying it is pointless.
var ErrInvalidMessage = errors.New("invalid mail message")

type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
}

type Message struct {
	To          []string
	ReplyTo     string
	Subject     string
	Text        string
	Attachments []Attachment
}

// Sender delivers messages. Enabled is false when no real transport is
// configured and messages only end up in the log.
type Sender interface {
	Send(ctx context.Context, msg Message) error
	Enabled() bool
}

// New returns an SMTP sender when a host is configured and a LogSender otherwise.
func New(cfg config.SMTP, from string, logger *slog.Logger) Sender {
	if !cfg.Enabled() {
		logger.Warn("smtp not configured, mail will be logged only")
		return NewLogSender(logger)
	}
	return NewSMTPSender(cfg, from)
}

type SMTPSender struct {
	host string
	from string
	opts []mail.Option
}

func NewSMTPSender(cfg config.SMTP, from string) *SMTPSender {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTimeout(15 * time.Second),
	}
	if cfg.Secure {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}
	if cfg.User != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.User),
			mail.WithPassword(cfg.Pass),
		)
	}
	return &SMTPSender{host: cfg.Host, from: from, opts: opts}
}

func (s *SMTPSender) Enabled() bool { return true }

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	m, err := s.build(msg)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}

	// One client per message; a client holds a single connection.
	client, err := mail.NewClient(s.host, s.opts...)
	if err != nil {
		return fmt.Errorf("create smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("send mail %q: %w", msg.Subject, err)
	}
	return nil
}

func (s *SMTPSender) build(msg Message) (*mail.Msg, error) {
	m := mail.NewMsg()
	if s.from == "" {
		return nil, errors.New("no sender address, set FROM_EMAIL or SMTP_USER")
	}
	if err := m.From(s.from); err != nil {
		return nil, fmt.Errorf("set from: %w", err)
	}
	if err := m.To(msg.To...); err != nil {
		return nil, fmt.Errorf("set to: %w", err)
	}
	if msg.ReplyTo != "" {
		if err := m.ReplyTo(msg.ReplyTo); err != nil {
			return nil, fmt.Errorf("set reply-to: %w", err)
		}
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextPlain, msg.Text)
	for _, a := range msg.Attachments {
		err := m.AttachReader(a.Name, bytes.NewReader(a.Data),
			mail.WithFileContentType(mail.ContentType(a.ContentType)))
		if err != nil {
			return nil, fmt.Errorf("attach %s: %w", a.Name, err)
		}
	}
	return m, nil
}

// LogSender writes messages to the log instead of delivering them.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Enabled() bool { return false }

func (s *LogSender) Send(_ context.Context, msg Message) error {
	s.logger.Info("mail not sent, no transport",
		"to", msg.To,
		"subject", msg.Subject,
		"body", msg.Text,
		"attachments", len(msg.Attachments),
	)
	return nil
}

package notify

import (
	"context"
	"fmt"

	"github.com/wneessen/go-mail"
)

// Message is a rendered notification e-mail.
type Message struct {
	FromName  string
	FromEmail string
	To        []string
	Subject   string
	HTML      string
	Text      string
}

// Sender delivers messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPConfig configures the SMTP relay.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	TLS      bool
}

// SMTPSender sends messages through an SMTP relay.
type SMTPSender struct {
	client *mail.Client
}

// NewSMTPSender builds an SMTP client. Authentication is only enabled when a
// username is set.
func NewSMTPSender(cfg SMTPConfig) (*SMTPSender, error) {
	opts := []mail.Option{mail.WithPort(cfg.Port)}
	if cfg.TLS {
		opts = append(opts, mail.WithTLSPortPolicy(mail.TLSMandatory))
	} else {
		opts = append(opts, mail.WithTLSPortPolicy(mail.NoTLS))
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}
	return &SMTPSender{client: client}, nil
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	m, err := buildMsg(msg)
	if err != nil {
		return err
	}
	return s.client.DialAndSendWithContext(ctx, m)
}

func buildMsg(msg Message) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.FromFormat(msg.FromName, msg.FromEmail); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", msg.FromEmail, err)
	}
	if err := m.To(msg.To...); err != nil {
		return nil, fmt.Errorf("invalid recipients %v: %w", msg.To, err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextPlain, msg.Text)
	m.AddAlternativeString(mail.TypeTextHTML, msg.HTML)
	return m, nil
}

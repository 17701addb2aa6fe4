package mailer

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/wneessen/go-mail"

	"github.com/talentbridge/marketplace-api/internal/config"
)

// SMTPSender delivers through an SMTP relay, using PLAIN auth when a user
// is configured.
type SMTPSender struct {
	from string
	send func(ctx context.Context, m *mail.Msg) error
}

func tlsPolicy(name string) (mail.TLSPolicy, error) {
	switch strings.ToLower(name) {
	case "", "opportunistic":
		return mail.TLSOpportunistic, nil
	case "mandatory":
		return mail.TLSMandatory, nil
	case "none":
		return mail.NoTLS, nil
	}
	return mail.NoTLS, fmt.Errorf("unknown SMTP_TLS policy %q", name)
}

func NewSMTPSender(cfg config.MailConfig) (*SMTPSender, error) {
	port, err := strconv.Atoi(cfg.SMTPPort)
	if err != nil {
		return nil, fmt.Errorf("invalid SMTP_PORT %q", cfg.SMTPPort)
	}
	policy, err := tlsPolicy(cfg.SMTPTLS)
	if err != nil {
		return nil, err
	}
	opts := []mail.Option{mail.WithPort(port), mail.WithTLSPortPolicy(policy)}
	if cfg.SMTPUser != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.SMTPUser),
			mail.WithPassword(cfg.SMTPPass))
	}
	// fail at startup on a bad host or option set
	if _, err := mail.NewClient(cfg.SMTPHost, opts...); err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	return &SMTPSender{
		from: cfg.From,
		send: func(ctx context.Context, m *mail.Msg) error {
			// one client per delivery; the consumer may send concurrently
			c, err := mail.NewClient(cfg.SMTPHost, opts...)
			if err != nil {
				return err
			}
			return c.DialAndSendWithContext(ctx, m)
		},
	}, nil
}

// Send writes msg as a single-part HTML email.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	m, err := s.build(msg)
	if err != nil {
		return err
	}
	if err := s.send(ctx, m); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func (s *SMTPSender) build(msg Message) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(s.from); err != nil {
		return nil, fmt.Errorf("mail from: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("mail to: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetDate()
	m.SetMessageID()
	m.SetBodyString(mail.TypeTextHTML, msg.HTML)
	return m, nil
}

// Package mailer renders and sends transactional email.  Which Sender is
// used is chosen at startup from MAIL_TRANSPORT.
package mailer

import (
	"context"
	"fmt"
	"strings"

	"github.com/talentbridge/marketplace-api/internal/config"
	"github.com/talentbridge/marketplace-api/internal/queue"
	"go.uber.org/zap"
)

// Message is one rendered email.
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Sender delivers a message or reports why it could not.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// EmailPublisher is the part of queue.Publisher used by QueueSender.
type EmailPublisher interface {
	PublishEmail(ctx context.Context, msg queue.EmailMessage) error
}

// QueueSender hands messages to the broker; queue.StartEmailConsumer
// delivers them later.
type QueueSender struct{ pub EmailPublisher }

func NewQueueSender(pub EmailPublisher) *QueueSender { return &QueueSender{pub: pub} }

func (s *QueueSender) Send(ctx context.Context, msg Message) error {
	return s.pub.PublishEmail(ctx, queue.EmailMessage{To: msg.To, Subject: msg.Subject, HTML: msg.HTML})
}

// LogSender only records that a message would have been sent.  The body
// is not logged because it carries a credential link.
type LogSender struct{ log *zap.Logger }

func NewLogSender(log *zap.Logger) *LogSender { return &LogSender{log: log.Named("mailer")} }

func (s *LogSender) Send(_ context.Context, msg Message) error {
	s.log.Info("email suppressed", zap.String("to", msg.To), zap.String("subject", msg.Subject))
	return nil
}

// New picks the Sender named by cfg.Transport.  pub is only needed for
// the queue transport.
func New(cfg config.MailConfig, pub EmailPublisher, log *zap.Logger) (Sender, error) {
	switch strings.ToLower(cfg.Transport) {
	case "smtp":
		return NewSMTPSender(cfg)
	case "queue":
		if pub == nil {
			return nil, fmt.Errorf("mail transport queue needs a publisher")
		}
		return NewQueueSender(pub), nil
	case "", "log":
		return NewLogSender(log), nil
	default:
		return nil, fmt.Errorf("unknown mail transport %q", cfg.Transport)
	}
}

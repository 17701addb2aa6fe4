package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Publisher sends JSON messages to durable queues on the default
// exchange.  Each publish dials its own connection, so a broker outage
// only fails the calls made while it lasts.
type Publisher struct {
	url string
	log *zap.Logger
}

func NewPublisher(url string, log *zap.Logger) *Publisher {
	return &Publisher{url: url, log: log.Named("publisher")}
}

// PublishEmail enqueues msg on the outbound email queue.
func (p *Publisher) PublishEmail(ctx context.Context, msg EmailMessage) error {
	return p.publish(ctx, EmailQueue, msg)
}

// PublishWithdrawalRequested enqueues ev on the withdrawal queue.
func (p *Publisher) PublishWithdrawalRequested(ctx context.Context, ev WithdrawalRequestedEvent) error {
	return p.publish(ctx, WithdrawalQueue, ev)
}

func (p *Publisher) publish(ctx context.Context, queue string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", queue, err)
	}

	conn, err := amqp.Dial(p.url)
	if err != nil {
		p.log.Warn("dial failed", zap.String("queue", queue), zap.Error(err))
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.log.Warn("channel open failed", zap.String("queue", queue), zap.Error(err))
		return err
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		p.log.Warn("queue declare failed", zap.String("queue", queue), zap.Error(err))
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", queue, false, false, pub); err != nil {
		p.log.Warn("publish failed", zap.String("queue", queue), zap.Error(err))
		return err
	}
	return nil
}

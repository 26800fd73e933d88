package service

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/iliyamo/sales-tenancy/internal/logger"
	"github.com/iliyamo/sales-tenancy/internal/queue"
)

// Publisher emits hierarchy events.
type Publisher interface {
	PublishManagerChanged(ctx context.Context, ev queue.ManagerChangedEvent) error
}

// NewPublisher returns an AMQP publisher for url, or a no-op publisher
// when url is empty.
func NewPublisher(url string) Publisher {
	if url == "" {
		return NoopPublisher{}
	}
	return &AMQPPublisher{url: url}
}

// NoopPublisher drops every event.
type NoopPublisher struct{}

func (NoopPublisher) PublishManagerChanged(context.Context, queue.ManagerChangedEvent) error { return nil }

// AMQPPublisher publishes events to the hierarchy fanout exchange.  It
// dials per publish; manager changes are rare enough that a pooled
// connection is not worth the reconnect handling.
type AMQPPublisher struct {
	url string
}

// PublishManagerChanged publishes ev as a persistent JSON message.  Errors
// are logged and returned so the caller can choose to ignore them.
func (p *AMQPPublisher) PublishManagerChanged(ctx context.Context, ev queue.ManagerChangedEvent) error {
	log := logger.FromContext(ctx)
	conn, err := amqp.Dial(p.url)
	if err != nil {
		log.Warn("rabbitmq: dial failed", zap.Error(err))
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		log.Warn("rabbitmq: channel open failed", zap.Error(err))
		return err
	}
	defer func() { _ = ch.Close() }()

	if err := queue.DeclareExchange(ch); err != nil {
		log.Warn("rabbitmq: exchange declare failed", zap.Error(err))
		return err
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		Type:         queue.ManagerChangedType,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, queue.Exchange, "", false, false, pub); err != nil {
		log.Warn("rabbitmq: publish failed", zap.Error(err))
		return err
	}
	return nil
}

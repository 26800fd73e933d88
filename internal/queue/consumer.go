package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/iliyamo/sales-tenancy/internal/logger"
)

// Invalidator is the part of the hierarchy engine the consumer drives.
type Invalidator interface {
	ManagerChanged(ctx context.Context, userID uint64, oldManager, newManager *uint64) error
}

// DeclareExchange declares the durable fanout exchange.  Publisher and
// consumer both call it; declaring is idempotent.
func DeclareExchange(ch *amqp.Channel) error {
	return ch.ExchangeDeclare(Exchange, amqp.ExchangeFanout, true, false, false, false, nil)
}

// StartManagerChangedConsumer connects to RabbitMQ, binds an exclusive
// queue to the hierarchy exchange and applies every ManagerChangedEvent
// to inv.  It reconnects with exponential backoff and returns only when
// ctx is cancelled.
func StartManagerChangedConsumer(ctx context.Context, url string, inv Invalidator) error {
	log := logger.FromContext(ctx).Named("hierarchy-consumer")
	backoff := time.Second
	for {
		conn, err := amqp.Dial(url)
		if err != nil {
			log.Warn("dial broker failed", zap.Error(err), zap.Duration("retry_in", backoff))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		err = consumeLoop(ctx, conn, inv)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn("consume loop ended, reconnecting", zap.Error(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, inv Invalidator) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := DeclareExchange(ch); err != nil {
		return fmt.Errorf("exchange declare: %w", err)
	}
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	if err := ch.QueueBind(q.Name, "", Exchange, false, nil); err != nil {
		return fmt.Errorf("queue bind: %w", err)
	}
	msgs, err := ch.Consume(q.Name, "", false, true, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	log := logger.FromContext(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := HandleMessage(ctx, d.Type, d.Body, inv); err != nil {
				log.Error("handle hierarchy event", zap.Error(err))
				_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// HandleMessage decodes one delivery and applies it.  Unknown message
// types are ignored.
func HandleMessage(ctx context.Context, msgType string, body []byte, inv Invalidator) error {
	if msgType != "" && msgType != ManagerChangedType {
		return nil
	}
	var ev ManagerChangedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.UserID == 0 {
		return errors.New("event without user id")
	}
	return inv.ManagerChanged(ctx, ev.UserID, ev.OldManagerID, ev.NewManagerID)
}

package broadcast

import (
	"context"
	"fmt"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/goliatone/go-hookrelay/core"
)

const defaultExchange = "hookrelay.events"

// AMQPTarget publishes canonical events to a topic exchange, routed by the
// routing key. It opens a short-lived channel per publish so a failed
// publish never poisons a shared channel.
type AMQPTarget struct {
	conn     *amqp.Connection
	exchange string
}

func NewAMQPTarget(url string, exchange string) (*AMQPTarget, error) {
	exchange = strings.TrimSpace(exchange)
	if exchange == "" {
		exchange = defaultExchange
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("broadcast: dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("broadcast: open channel: %w", err)
	}
	defer ch.Close()
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("broadcast: declare exchange: %w", err)
	}
	return &AMQPTarget{conn: conn, exchange: exchange}, nil
}

func (t *AMQPTarget) Send(ctx context.Context, routingKey string, event []byte) error {
	if t == nil || t.conn == nil {
		return fmt.Errorf("broadcast: amqp target is not connected")
	}
	ch, err := t.conn.Channel()
	if err != nil {
		return fmt.Errorf("broadcast: open channel: %w", err)
	}
	defer ch.Close()

	return ch.PublishWithContext(
		ctx, t.exchange, routingKey, false, false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Type:         "hookrelay.event",
			Timestamp:    time.Now().UTC(),
			Body:         event,
		},
	)
}

func (t *AMQPTarget) Close() error {
	if t == nil || t.conn == nil {
		return nil
	}
	return t.conn.Close()
}

var _ core.BroadcastTarget = (*AMQPTarget)(nil)

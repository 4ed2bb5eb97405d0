package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// Payment routing keys consumed from the broker.
const (
	PaymentCompleted = "payment.completed"
	PaymentFailed    = "payment.failed"
)

// PaymentEvent reports a gateway outcome for a transaction.
type PaymentEvent struct {
	Event   string `json:"event"`
	EventID string `json:"event_id"`
	Data    struct {
		TransactionID string  `json:"transaction_id"`
		GatewayRef    string  `json:"gateway_ref"`
		Method        string  `json:"method"`
		Amount        float64 `json:"amount"`
	} `json:"data"`
}

// ErrPermanent marks a handler failure that retrying cannot fix.
var ErrPermanent = errors.New("permanent failure")

// PaymentHandler settles one payment event.
type PaymentHandler func(ctx context.Context, evt PaymentEvent) error

// Consumer reads payment outcomes from a durable queue bound to the exchange.
type Consumer struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
	log   zerolog.Logger
}

// NewConsumer dials the broker and binds queue to the payment routing keys.
func NewConsumer(url, exchange, queue string, log zerolog.Logger) (*Consumer, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	closeAll := func() {
		_ = ch.Close()
		_ = conn.Close()
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		closeAll()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	q, err := ch.QueueDeclare(queue, true, false, false, false, nil)
	if err != nil {
		closeAll()
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	for _, rk := range []string{PaymentCompleted, PaymentFailed} {
		if err := ch.QueueBind(q.Name, rk, exchange, false, nil); err != nil {
			closeAll()
			return nil, fmt.Errorf("bind %s: %w", rk, err)
		}
	}
	return &Consumer{conn: conn, ch: ch, queue: q.Name, log: log}, nil
}

// Run consumes until ctx is done or the channel closes.
func (c *Consumer) Run(ctx context.Context, handle PaymentHandler) error {
	msgs, err := c.ch.ConsumeWithContext(ctx, c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", c.queue, err)
	}
	for d := range msgs {
		c.dispatch(ctx, d, handle)
	}
	return nil
}

func (c *Consumer) dispatch(ctx context.Context, d amqp.Delivery, handle PaymentHandler) {
	log := c.log.With().Str("routing_key", d.RoutingKey).Logger()

	var evt PaymentEvent
	if err := json.Unmarshal(d.Body, &evt); err != nil {
		log.Error().Err(err).Msg("unmarshal payment event")
		_ = d.Nack(false, false)
		return
	}
	if evt.Event == "" {
		evt.Event = d.RoutingKey
	}
	if evt.EventID == "" {
		evt.EventID = d.MessageId
	}
	if evt.Data.TransactionID == "" || evt.EventID == "" {
		log.Warn().Msg("payment event without transaction or event id")
		_ = d.Ack(false)
		return
	}

	if err := handle(ctx, evt); err != nil {
		requeue := !errors.Is(err, ErrPermanent)
		log.Error().Err(err).Str("transaction_id", evt.Data.TransactionID).Bool("requeue", requeue).Msg("settle payment event")
		_ = d.Nack(false, requeue)
		return
	}
	_ = d.Ack(false)
}

func (c *Consumer) Close() error {
	if c.ch != nil {
		_ = c.ch.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

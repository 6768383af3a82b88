package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"famtree/pkg/email"
	"famtree/pkg/platform/sentinel"
)

// Publisher is the part of *amqp.Channel the notifier uses.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPNotifier publishes notifications to a RabbitMQ exchange.
type AMQPNotifier struct {
	ch         Publisher
	exchange   string
	routingKey string
	logger     *slog.Logger
	closers    []func() error
	closed     bool
}

type AMQPOption func(*AMQPNotifier)

func WithLogger(logger *slog.Logger) AMQPOption {
	return func(n *AMQPNotifier) {
		n.logger = logger
	}
}

func NewAMQPNotifier(ch Publisher, exchange, routingKey string, opts ...AMQPOption) (*AMQPNotifier, error) {
	if ch == nil {
		return nil, errors.New("amqp channel is required")
	}
	if routingKey == "" {
		return nil, errors.New("routing key is required")
	}
	n := &AMQPNotifier{
		ch:         ch,
		exchange:   exchange,
		routingKey: routingKey,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// DialAMQP connects to url, declares a durable direct exchange and returns a
// notifier that owns the connection. Close releases it.
func DialAMQP(url, exchange, routingKey string, opts ...AMQPOption) (*AMQPNotifier, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w: %w", sentinel.ErrUnavailable, err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}
	if exchange != "" {
		if err := ch.ExchangeDeclare(exchange, amqp.ExchangeDirect, true, false, false, false, nil); err != nil {
			_ = ch.Close()
			_ = conn.Close()
			return nil, fmt.Errorf("declare exchange %q: %w", exchange, err)
		}
	}
	n, err := NewAMQPNotifier(ch, exchange, routingKey, opts...)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	n.closers = []func() error{ch.Close, conn.Close}
	return n, nil
}

func (n *AMQPNotifier) Send(ctx context.Context, recipient, subject, body string) error {
	if n.closed {
		return fmt.Errorf("notifier closed: %w", sentinel.ErrInvalidState)
	}
	msg := newMessage(ctx, recipient, subject, body)
	payload, err := msg.encode()
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	err = n.ch.PublishWithContext(ctx, n.exchange, n.routingKey, false, false, amqp.Publishing{
		ContentType:   "application/json",
		Body:          payload,
		Timestamp:     msg.SentAt,
		DeliveryMode:  amqp.Persistent,
		CorrelationId: msg.CorrelationID,
	})
	if err != nil {
		return fmt.Errorf("publish notification: %w: %w", sentinel.ErrUnavailable, err)
	}
	n.logger.DebugContext(ctx, "notification published",
		"recipient", email.Mask(msg.Recipient),
		"exchange", n.exchange,
		"routing_key", n.routingKey,
	)
	return nil
}

// Close releases the channel and connection opened by DialAMQP.
func (n *AMQPNotifier) Close() error {
	var errs []error
	for _, c := range n.closers {
		if err := c(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, err)
		}
	}
	n.closers = nil
	n.closed = true
	return errors.Join(errs...)
}

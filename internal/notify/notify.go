// Package notify delivers workflow notifications to requesters.
//
// Two senders are provided: LogNotifier writes each message to the
// structured log, AMQPNotifier publishes it as JSON to a RabbitMQ exchange
// for a mail relay to pick up.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"famtree/pkg/email"
	"famtree/pkg/requestcontext"
)

// Message is the wire form of one notification.
type Message struct {
	Recipient     string    `json:"recipient"`
	Subject       string    `json:"subject"`
	Body          string    `json:"body"`
	SentAt        time.Time `json:"sent_at"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

func newMessage(ctx context.Context, recipient, subject, body string) Message {
	return Message{
		Recipient:     email.Normalize(recipient),
		Subject:       subject,
		Body:          body,
		SentAt:        requestcontext.Now(ctx).UTC(),
		CorrelationID: requestcontext.CorrelationID(ctx),
	}
}

func (m Message) encode() ([]byte, error) {
	return json.Marshal(m)
}

// LogNotifier records notifications in the log instead of sending them.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Send(ctx context.Context, recipient, subject, body string) error {
	msg := newMessage(ctx, recipient, subject, body)
	n.logger.InfoContext(ctx, "notification",
		"recipient", email.Mask(msg.Recipient),
		"subject", msg.Subject,
		"body_length", len(msg.Body),
		"correlation_id", msg.CorrelationID,
	)
	return nil
}

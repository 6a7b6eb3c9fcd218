package notify

import (
	"context"
	"errors"
	"log/slog"
)

// ErrMissingCredentials is returned when a sender is created without
// account SID or auth token.
var ErrMissingCredentials = errors.New("missing SMS credentials")

type Message struct {
	Body string
	From string
	To   string
}

// Sender delivers a message. Implementations honour ctx cancellation.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, msg Message) error

func (f SenderFunc) Send(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}

// LogSender only logs messages. Used for simulation runs without
// credentials.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	slog.Info("SMS (dry run)", "from", msg.From, "to", msg.To, "body", msg.Body)
	return nil
}

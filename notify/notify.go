// Package notify delivers outbound transactional email.
package notify

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// ErrDeliveryFailed wraps every transport failure returned by a Sender.
var ErrDeliveryFailed = errors.New("notification delivery failed")

// Message is a plain-text email addressed to the site operator or a user.
type Message struct {
	To      string
	ReplyTo string
	Subject string
	Body    string
}

// Sender delivers a Message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// LogSender writes messages to the logger instead of sending them. It is used
// when no SMTP server is configured.
type LogSender struct {
	log *zap.Logger
}

// NewLogSender returns a LogSender.
func NewLogSender(log *zap.Logger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return errors.Join(ErrDeliveryFailed, err)
	}
	s.log.Info("notification",
		zap.String("to", msg.To),
		zap.String("reply_to", msg.ReplyTo),
		zap.String("subject", msg.Subject),
		zap.Int("body_len", len(msg.Body)),
	)
	return nil
}

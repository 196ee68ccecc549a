package email

import (
	"context"
	"sync"

	"github.com/c21-japan/homemart-sub002/pkg/logger"
)

// LogSender writes messages to the log instead of delivering them.
// Used in development and by the CLI dry runs.
type LogSender struct {
	log *logger.Logger

	mu   sync.Mutex
	sent []Message
}

// NewLogSender creates a sender
func NewLogSender(log *logger.Logger) *LogSender {
	return &LogSender{log: log}
}

// Send implements Sender
func (s *LogSender) Send(_ context.Context, msg Message) error {
	s.mu.Lock()
	s.sent = append(s.sent, msg)
	s.mu.Unlock()

	s.log.WithFields(map[string]interface{}{
		"to":      msg.To,
		"subject": msg.Subject,
		"bytes":   len(msg.Body),
	}).Info("email (log provider)")
	return nil
}

// Sent returns a copy of every message handed to the sender
func (s *LogSender) Sent() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.sent))
	copy(out, s.sent)
	return out
}

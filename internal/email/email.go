// Package email delivers plain-text mail through a configurable provider.
package email

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidAddress is returned before any provider call when an address is malformed
var ErrInvalidAddress = errors.New("invalid email address")

// Message is one plain-text email
type Message struct {
	To      []string
	ReplyTo string
	Subject string
	Body    string
}

// Sender delivers a message in a single attempt
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Validate checks recipients and subject
func (m Message) Validate() error {
	if len(m.To) == 0 {
		return fmt.Errorf("%w: no recipients", ErrInvalidAddress)
	}
	for _, to := range m.To {
		if !IsValidEmail(to) {
			return fmt.Errorf("%w: %q", ErrInvalidAddress, to)
		}
	}
	if m.ReplyTo != "" && !IsValidEmail(m.ReplyTo) {
		return fmt.Errorf("%w: reply-to %q", ErrInvalidAddress, m.ReplyTo)
	}
	if strings.TrimSpace(m.Subject) == "" {
		return errors.New("email subject is empty")
	}
	return nil
}

// IsValidEmail performs the structural check local@domain.tld
func IsValidEmail(addr string) bool {
	addr = strings.TrimSpace(addr)
	if addr == "" || strings.ContainsAny(addr, " \r\n<>") {
		return false
	}
	parts := strings.Split(addr, "@")
	if len(parts) != 2 {
		return false
	}
	if parts[0] == "" || parts[1] == "" {
		return false
	}
	return strings.Contains(parts[1], ".")
}

// Dedupe drops empty and repeated addresses, keeping order
func Dedupe(addrs ...string) []string {
	seen := make(map[string]struct{}, len(addrs))
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		key := strings.ToLower(a)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, a)
	}
	return out
}

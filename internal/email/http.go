package email

import (
	"context"
	"fmt"
	"io"

	"github.com/c21-japan/homemart-sub002/pkg/httputil"
)

// HTTPSender posts {to, subject, content} to a mail API endpoint
type HTTPSender struct {
	client *httputil.Client
	url    string
}

type httpPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Content string `json:"content"`
	ReplyTo string `json:"replyTo,omitempty"`
}

// NewHTTPSender creates a sender. apiKey, when set, is sent as a bearer token.
// Requests carry no idempotency key, so the client makes a single attempt:
// a replayed POST could deliver the same report twice.
func NewHTTPSender(client *httputil.Client, url, apiKey string) *HTTPSender {
	return &HTTPSender{client: client.WithBearer(apiKey), url: url}
}

// Send implements Sender. One request is made per recipient.
func (s *HTTPSender) Send(ctx context.Context, msg Message) error {
	for _, to := range msg.To {
		resp, err := s.client.PostJSON(ctx, s.url, httpPayload{
			To:      to,
			Subject: msg.Subject,
			Content: msg.Body,
			ReplyTo: msg.ReplyTo,
		})
		if err != nil {
			return fmt.Errorf("mail api request: %w", err)
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("mail api returned status %d", resp.StatusCode)
		}
	}
	return nil
}

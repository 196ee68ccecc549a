package email

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"

	"github.com/c21-japan/homemart-sub002/pkg/config"
	"github.com/c21-japan/homemart-sub002/pkg/httputil"
	"github.com/c21-japan/homemart-sub002/pkg/logger"
	"github.com/c21-japan/homemart-sub002/pkg/metrics"
	"github.com/c21-japan/homemart-sub002/pkg/redis"
)

// Mailer validates, rate limits and instruments every send of a provider
type Mailer struct {
	sender   Sender
	provider string
	limiter  *redis.RateLimiter
	limit    redis.RateLimitConfig
	logger   *logger.Logger
}

// NewMailer wraps a provider. A nil limiter disables rate limiting.
func NewMailer(sender Sender, provider string, limiter *redis.RateLimiter, limit redis.RateLimitConfig, log *logger.Logger) *Mailer {
	return &Mailer{
		sender:   sender,
		provider: provider,
		limiter:  limiter,
		limit:    limit,
		logger:   log.WithField("provider", provider),
	}
}

// New builds the provider selected by EMAIL_PROVIDER
func New(ctx context.Context, cfg *config.Config, log *logger.Logger, rc *redis.Client) (*Mailer, error) {
	from := cfg.Email.From
	if from == "" {
		from = cfg.Reporting.SenderFallbackAddress
	}

	var sender Sender
	switch cfg.Email.Provider {
	case "ses":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Email.AWSRegion))
		if err != nil {
			return nil, fmt.Errorf("load AWS config: %w", err)
		}
		sender = NewSESSender(ses.NewFromConfig(awsCfg), from)
	case "smtp":
		sender = NewSMTPSender(SMTPConfig{
			Host:     cfg.Email.SMTPHost,
			Port:     cfg.Email.SMTPPort,
			Username: cfg.Email.SMTPUsername,
			Password: cfg.Email.SMTPPassword,
			From:     from,
			FromName: cfg.Email.FromName,
		})
	case "http":
		sender = NewHTTPSender(httputil.New(cfg, log), cfg.Email.APIURL, cfg.Email.APIKey)
	case "log":
		sender = NewLogSender(log)
	default:
		return nil, fmt.Errorf("unknown email provider %q", cfg.Email.Provider)
	}

	limiter := redis.NewRateLimiter(rc, "homemart")
	return NewMailer(sender, cfg.Email.Provider, limiter, redis.EmailRateLimit(cfg.Email.RatePerSecond), log), nil
}

// Provider returns the provider name
func (m *Mailer) Provider() string {
	return m.provider
}

// Send implements Sender
func (m *Mailer) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		metrics.EmailsSent.WithLabelValues(m.provider, "invalid").Inc()
		return err
	}

	if m.limiter != nil {
		if err := m.limiter.Wait(ctx, m.limit); err != nil {
			metrics.EmailsSent.WithLabelValues(m.provider, "throttled").Inc()
			return fmt.Errorf("email rate limit: %w", err)
		}
	}

	if err := m.sender.Send(ctx, msg); err != nil {
		metrics.EmailsSent.WithLabelValues(m.provider, "error").Inc()
		m.logger.WithError(err).WithField("subject", msg.Subject).Warn("email send failed")
		return err
	}

	metrics.EmailsSent.WithLabelValues(m.provider, "ok").Inc()
	return nil
}

package agreement

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/c21-japan/homemart-sub002/internal/deadline"
	"github.com/c21-japan/homemart-sub002/internal/email"
	"github.com/c21-japan/homemart-sub002/pkg/logger"
	"github.com/c21-japan/homemart-sub002/pkg/redis"
)

// Store is the persistence the service needs
type Store interface {
	Insert(ctx context.Context, a *Agreement) error
	Update(ctx context.Context, a *Agreement) error
	GetByID(ctx context.Context, id uuid.UUID) (*Agreement, error)
	FindDue(ctx context.Context, asOf time.Time) ([]DueAgreement, error)
	CountStats(ctx context.Context, today time.Time) (*Stats, error)
}

// Options configures the agreement use cases
type Options struct {
	// Office mailbox receiving registration warnings
	OfficeAddress string
	SiteBaseURL   string
	WarningDays   int
	StatsCacheTTL time.Duration
}

// Service implements the agreement use cases. Every write of a derived field
// goes through the deadline calculator.
type Service struct {
	store  Store
	calc   *deadline.Calculator
	mailer email.Sender
	cache  *redis.Cache
	opts   Options
	logger *logger.Logger
}

// NewService creates an agreement service. cache may be nil.
func NewService(store Store, calc *deadline.Calculator, mailer email.Sender, cache *redis.Cache, opts Options, log *logger.Logger) *Service {
	if cache == nil {
		cache = redis.NewCache(redis.Disabled(), "homemart")
	}
	return &Service{
		store:  store,
		calc:   calc,
		mailer: mailer,
		cache:  cache,
		opts:   opts,
		logger: log,
	}
}

// Create validates input, derives the statutory fields and stores a new active
// agreement. When the registration deadline is WarningDays business days away or
// closer, the office is warned by mail; a failed warning does not fail the create.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Agreement, error) {
	if err := validateSchema(createSchema, in); err != nil {
		return nil, err
	}

	ct, err := deadline.ParseContractType(in.ContractType)
	if err != nil {
		return nil, invalid("contract_type", "must be one of exclusive_right, exclusive, general")
	}
	signedAt, err := deadline.ParseDate(in.SignedAt)
	if err != nil {
		return nil, invalid("signed_at", "must be a calendar date YYYY-MM-DD")
	}
	leadID, err := uuid.Parse(in.LeadID)
	if err != nil {
		return nil, invalid("lead_id", "must be a uuid")
	}

	a := &Agreement{
		ID:           uuid.New(),
		LeadID:       leadID,
		ContractType: ct,
		SignedAt:     signedAt,
		Status:       StatusActive,
	}
	if in.PropertyID != "" {
		pid, err := uuid.Parse(in.PropertyID)
		if err != nil {
			return nil, invalid("property_id", "must be a uuid")
		}
		a.PropertyID = &pid
	}
	a.ApplyDerived(s.calc.Derive(signedAt, ct))

	if err := s.store.Insert(ctx, a); err != nil {
		return nil, err
	}

	s.logger.WithFields(map[string]interface{}{
		"agreement_id":  a.ID.String(),
		"contract_type": string(a.ContractType),
		"signed_at":     in.SignedAt,
	}).Info("listing agreement created")

	s.invalidateStats(ctx)

	if a.ReinsRequiredBy != nil {
		remaining := s.calc.RemainingBusinessDays(*a.ReinsRequiredBy)
		if remaining <= s.opts.WarningDays {
			s.sendReinsWarning(ctx, a, remaining)
		}
	}

	return a, nil
}

// Update applies a partial update. A changed contract type or signing date
// recomputes all derived fields from the merged values.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in UpdateInput) (*Agreement, error) {
	if err := validateSchema(updateSchema, in); err != nil {
		return nil, err
	}

	a, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	recompute := false
	if in.ContractType != nil {
		ct, err := deadline.ParseContractType(*in.ContractType)
		if err != nil {
			return nil, invalid("contract_type", "must be one of exclusive_right, exclusive, general")
		}
		recompute = recompute || ct != a.ContractType
		a.ContractType = ct
	}
	if in.SignedAt != nil {
		signedAt, err := deadline.ParseDate(*in.SignedAt)
		if err != nil {
			return nil, invalid("signed_at", "must be a calendar date YYYY-MM-DD")
		}
		recompute = recompute || !signedAt.Equal(a.SignedAt)
		a.SignedAt = signedAt
	}
	if in.ReinsRegisteredAt != nil {
		reg, err := deadline.ParseDate(*in.ReinsRegisteredAt)
		if err != nil {
			return nil, invalid("reins_registered_at", "must be a calendar date YYYY-MM-DD")
		}
		if reg.Before(a.SignedAt) {
			return nil, invalid("reins_registered_at", "must not precede signed_at")
		}
		a.ReinsRegisteredAt = &reg
	}
	if in.Status != nil {
		st, err := ParseStatus(*in.Status)
		if err != nil {
			return nil, invalid("status", "must be one of active, suspended, closed")
		}
		a.Status = st
	}

	if recompute {
		a.ApplyDerived(s.calc.Derive(a.SignedAt, a.ContractType))
		s.keepAfterLastReport(a)
	}

	if err := s.store.Update(ctx, a); err != nil {
		return nil, err
	}

	s.logger.WithAgreement(a.ID.String()).WithField("recomputed", recompute).Info("listing agreement updated")

	s.invalidateStats(ctx)
	return a, nil
}

// keepAfterLastReport rebases the next report date on the last send when the
// recomputed date would fall before a report already sent.
func (s *Service) keepAfterLastReport(a *Agreement) {
	if a.NextReportDate == nil || a.LastReportSentAt == nil {
		return
	}
	lastSent := s.calc.CivilDate(*a.LastReportSentAt)
	if a.NextReportDate.Before(lastSent) {
		if next, ok := s.calc.NextReportDate(lastSent, a.ContractType); ok {
			a.NextReportDate = &next
		}
	}
}

// Get loads one agreement
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Agreement, error) {
	return s.store.GetByID(ctx, id)
}

// GetDueAgreements returns active agreements whose next report is due on or
// before asOf, oldest due first. A zero asOf means today. Persistence errors are
// returned to the caller.
func (s *Service) GetDueAgreements(ctx context.Context, asOf time.Time) ([]DueAgreement, error) {
	if asOf.IsZero() {
		asOf = s.calc.Today()
	}
	due, err := s.store.FindDue(ctx, asOf)
	if err != nil {
		return nil, fmt.Errorf("select due agreements: %w", err)
	}
	return due, nil
}

// Stats returns the dashboard counters, cached for StatsCacheTTL
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	today := s.calc.Today()
	key := redis.AgreementStatsKey(today.Format(deadline.DateLayout))

	var stats Stats
	err := s.cache.GetOrSet(ctx, key, &stats, s.opts.StatsCacheTTL, func() (interface{}, error) {
		return s.store.CountStats(ctx, today)
	})
	if err != nil {
		return nil, fmt.Errorf("agreement stats: %w", err)
	}
	return &stats, nil
}

func (s *Service) invalidateStats(ctx context.Context) {
	key := redis.AgreementStatsKey(s.calc.Today().Format(deadline.DateLayout))
	if err := s.cache.Delete(ctx, key); err != nil {
		s.logger.WithError(err).Warn("failed to invalidate agreement stats cache")
	}
}

func (s *Service) sendReinsWarning(ctx context.Context, a *Agreement, remaining int) {
	msg := ReinsWarning(a, remaining, s.opts.OfficeAddress, s.opts.SiteBaseURL)

	log := s.logger.WithFields(map[string]interface{}{
		"agreement_id":   a.ID.String(),
		"remaining_days": remaining,
	})
	if err := s.mailer.Send(ctx, msg); err != nil {
		log.WithError(err).Error("failed to send REINS warning")
		return
	}
	log.Warn("REINS deadline warning sent")
}

// ReinsWarning builds the internal mail sent when registration is nearly due
func ReinsWarning(a *Agreement, remaining int, office, siteURL string) email.Message {
	var b strings.Builder
	b.WriteString("レインズ登録期限が近づいています。\n\n")
	b.WriteString("【契約情報】\n")
	fmt.Fprintf(&b, "契約種別: %s\n", a.ContractType.Label())
	fmt.Fprintf(&b, "締結日: %s\n", deadline.FormatJP(a.SignedAt))
	if a.ReinsRequiredBy != nil {
		fmt.Fprintf(&b, "登録期限: %s\n", deadline.FormatJP(*a.ReinsRequiredBy))
	}
	fmt.Fprintf(&b, "残り営業日: %d日\n\n", remaining)
	b.WriteString("早急にレインズへの登録を行ってください。\n\n")
	b.WriteString("管理画面で詳細を確認:\n")
	fmt.Fprintf(&b, "%s/admin/leads/%s", siteURL, a.LeadID)

	return email.Message{
		To:      []string{office},
		Subject: fmt.Sprintf("【重要】レインズ登録期限が近づいています（残り%d営業日）", remaining),
		Body:    b.String(),
	}
}

// AsValidation returns the *ValidationError in err's chain, if any
func AsValidation(err error) (*ValidationError, bool) {
	var v *ValidationError
	if errors.As(err, &v) {
		return v, true
	}
	return nil, false
}

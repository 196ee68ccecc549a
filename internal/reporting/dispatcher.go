// Package reporting sends the statutory sales-activity reports to sellers and
// advances each agreement's report schedule.
package reporting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/c21-japan/homemart-sub002/internal/agreement"
	"github.com/c21-japan/homemart-sub002/internal/deadline"
	"github.com/c21-japan/homemart-sub002/internal/email"
	"github.com/c21-japan/homemart-sub002/pkg/logger"
	"github.com/c21-japan/homemart-sub002/pkg/metrics"
	"github.com/c21-japan/homemart-sub002/pkg/redis"
)

// ErrBatchInProgress is returned when another run holds the batch lock
var ErrBatchInProgress = errors.New("report batch already in progress")

// ErrFutureAsOf is returned for an asOf after today. Sent reports are
// rescheduled from today, so a later asOf would leave them due and a second
// run would send them again.
var ErrFutureAsOf = errors.New("asOf must not be after today")

const lockName = "reporting:batch"

// Selector yields the agreements due on a date, oldest due first
type Selector interface {
	GetDueAgreements(ctx context.Context, asOf time.Time) ([]agreement.DueAgreement, error)
}

// Options configures a Dispatcher
type Options struct {
	// Reply-To of every seller report
	SenderFallbackAddress string
	SiteBaseURL           string
	OfficeName            string

	// Bound on each send and each persistence write
	ItemTimeout time.Duration
	LockTTL     time.Duration
}

// BatchResult summarises one run
type BatchResult struct {
	AsOf      string `json:"asOf"`
	Processed int    `json:"processed"`
	Succeeded int    `json:"successCount"`
	Failed    int    `json:"errors"`
	Skipped   int    `json:"skipped"`
}

// Dispatcher renders, sends and records reports for every due agreement
type Dispatcher struct {
	selector Selector
	store    Store
	sender   email.Sender
	calc     *deadline.Calculator
	source   MetricsSource
	locker   *redis.Locker
	opts     Options
	logger   *logger.Logger
}

// NewDispatcher creates a dispatcher. A nil source reports zero activity and
// a nil locker disables the batch lock.
func NewDispatcher(selector Selector, store Store, sender email.Sender, calc *deadline.Calculator, source MetricsSource, locker *redis.Locker, opts Options, log *logger.Logger) *Dispatcher {
	if source == nil {
		source = ZeroMetrics{}
	}
	if opts.ItemTimeout <= 0 {
		opts.ItemTimeout = 30 * time.Second
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 30 * time.Minute
	}
	if opts.OfficeName == "" {
		opts.OfficeName = "センチュリー21 ホームマート"
	}
	return &Dispatcher{
		selector: selector,
		store:    store,
		sender:   sender,
		calc:     calc,
		source:   source,
		locker:   locker,
		opts:     opts,
		logger:   log,
	}
}

// Run processes every agreement due on asOf (today when zero). Items are
// handled one at a time; a failed item never stops the batch. An error is
// returned only when the batch could not start or was cancelled.
func (d *Dispatcher) Run(ctx context.Context, asOf time.Time) (*BatchResult, error) {
	today := d.calc.Today()
	if asOf.IsZero() {
		asOf = today
	}
	if asOf.After(today) {
		return nil, fmt.Errorf("%w: %s > %s", ErrFutureAsOf, asOf.Format(deadline.DateLayout), today.Format(deadline.DateLayout))
	}

	if d.locker != nil {
		release, err := d.locker.Acquire(ctx, lockName, d.opts.LockTTL)
		if errors.Is(err, redis.ErrLockHeld) {
			return nil, ErrBatchInProgress
		}
		if err != nil {
			return nil, fmt.Errorf("acquire batch lock: %w", err)
		}
		defer release()
	}

	start := time.Now()
	defer func() {
		metrics.ReportBatchDuration.Observe(time.Since(start).Seconds())
	}()

	result := &BatchResult{AsOf: asOf.Format(deadline.DateLayout)}

	due, err := d.selector.GetDueAgreements(ctx, asOf)
	if err != nil {
		return nil, err
	}

	d.logger.WithFields(map[string]interface{}{
		"as_of": result.AsOf,
		"due":   len(due),
	}).Info("Starting report batch")

	for _, a := range due {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("report batch cancelled after %d items: %w", result.Processed, err)
		}

		result.Processed++
		switch d.process(ctx, a) {
		case outcomeSent:
			result.Succeeded++
		case outcomeSkipped:
			result.Skipped++
		default:
			result.Failed++
		}
	}

	d.logger.WithFields(map[string]interface{}{
		"as_of":     result.AsOf,
		"processed": result.Processed,
		"success":   result.Succeeded,
		"failed":    result.Failed,
		"skipped":   result.Skipped,
		"duration":  time.Since(start).String(),
	}).Info("Report batch completed")

	return result, nil
}

type outcome string

const (
	outcomeSent    outcome = "sent"
	outcomeFailed  outcome = "failed"
	outcomeSkipped outcome = "skipped"
)

func (d *Dispatcher) process(ctx context.Context, a agreement.DueAgreement) (out outcome) {
	defer func() {
		metrics.ReportsProcessed.WithLabelValues(string(out)).Inc()
	}()

	log := d.logger.WithAgreement(a.ID.String()).WithFields(map[string]interface{}{
		"lead_id": a.LeadID.String(),
		"to":      logger.MaskEmail(a.Lead.Email),
	})

	if a.Lead.Email == "" {
		log.Warn("lead has no email address, report skipped")
		return outcomeSkipped
	}

	now := d.calc.Now()
	next, ok := d.calc.NextReportDate(d.calc.CivilDate(now), a.ContractType)
	var nextPtr *time.Time
	if ok {
		nextPtr = &next
	}

	activity, err := d.activity(ctx, a)
	if err != nil {
		log.WithError(err).Warn("activity metrics unavailable, reporting zero")
	}

	report, err := Render(a, activity, SequenceNumber(a.LastReportSentAt, now), nextPtr, d.opts.OfficeName, d.opts.SiteBaseURL)
	if err != nil {
		log.WithError(err).Error("failed to render report")
		return outcomeFailed
	}

	delivery := Delivery{
		AgreementID:    a.ID,
		To:             a.Lead.Email,
		Subject:        report.Subject,
		Body:           report.Body,
		Metrics:        activity,
		SentAt:         now,
		NextReportDate: nextPtr,
	}

	if err := d.send(ctx, delivery); err != nil {
		log.WithError(err).Error("report send failed")
		d.recordFailure(ctx, log, delivery, err.Error())
		return outcomeFailed
	}

	if err := d.recordDelivery(ctx, delivery); err != nil {
		// The seller has the mail; the schedule was not advanced so the next run resends.
		log.WithError(err).Error("report sent but schedule update failed")
		d.recordFailure(ctx, log, delivery, "sent but not recorded: "+err.Error())
		return outcomeFailed
	}

	log.WithField("next_report_date", formatNext(nextPtr)).Info("report sent")
	return outcomeSent
}

func (d *Dispatcher) activity(ctx context.Context, a agreement.DueAgreement) (ActivityMetrics, error) {
	itemCtx, cancel := context.WithTimeout(ctx, d.opts.ItemTimeout)
	defer cancel()

	m, err := d.source.ActivityFor(itemCtx, a)
	if err != nil {
		return ActivityMetrics{}, err
	}
	return m, nil
}

func (d *Dispatcher) send(ctx context.Context, del Delivery) error {
	itemCtx, cancel := context.WithTimeout(ctx, d.opts.ItemTimeout)
	defer cancel()

	return d.sender.Send(itemCtx, email.Message{
		To:      []string{del.To},
		ReplyTo: d.opts.SenderFallbackAddress,
		Subject: del.Subject,
		Body:    del.Body,
	})
}

func (d *Dispatcher) recordDelivery(ctx context.Context, del Delivery) error {
	itemCtx, cancel := context.WithTimeout(ctx, d.opts.ItemTimeout)
	defer cancel()

	return d.store.RecordDelivery(itemCtx, del)
}

func (d *Dispatcher) recordFailure(ctx context.Context, log *logger.Logger, del Delivery, reason string) {
	itemCtx, cancel := context.WithTimeout(ctx, d.opts.ItemTimeout)
	defer cancel()

	if err := d.store.RecordFailure(itemCtx, del, reason); err != nil {
		log.WithError(err).Error("failed to write report log")
	}
}

func formatNext(next *time.Time) string {
	if next == nil {
		return ""
	}
	return next.Format(deadline.DateLayout)
}

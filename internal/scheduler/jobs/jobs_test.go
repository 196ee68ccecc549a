package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c21-japan/homemart-sub002/internal/agreement"
	"github.com/c21-japan/homemart-sub002/internal/deadline"
	"github.com/c21-japan/homemart-sub002/internal/email"
	"github.com/c21-japan/homemart-sub002/internal/notify"
	"github.com/c21-japan/homemart-sub002/internal/reporting"
	"github.com/c21-japan/homemart-sub002/internal/scheduler"
	"github.com/c21-japan/homemart-sub002/pkg/config"
	"github.com/c21-japan/homemart-sub002/pkg/logger"
)

type noDue struct{}

func (noDue) GetDueAgreements(context.Context, time.Time) ([]agreement.DueAgreement, error) {
	return nil, nil
}

type noStore struct{}

func (noStore) RecordDelivery(context.Context, reporting.Delivery) error { return nil }
func (noStore) RecordFailure(context.Context, reporting.Delivery, string) error { return nil }
func (noStore) PendingRegistrations(context.Context, time.Time) ([]notify.PendingRegistration, error) {
	return nil, nil
}
func (noStore) StaleChecklists(context.Context, []notify.ChecklistType, int, time.Time) ([]notify.Checklist, error) {
	return nil, nil
}
func (noStore) ChecklistByID(context.Context, uuid.UUID) (*notify.Checklist, error) {
	return nil, notify.ErrChecklistNotFound
}
func (noStore) TeamLoad(context.Context, time.Time, time.Time) ([]notify.AssigneeLoad, error) {
	return nil, nil
}
func (noStore) InsertLog(context.Context, notify.LogEntry) error { return nil }

func testConfig() *config.Config {
	return &config.Config{Reporting: config.ReportingConfig{
		ReportsSchedule:   "0 0 9 * * *",
		AlertsSchedule:    "0 5 9 * * *",
		RemindersSchedule: "0 10 9 * * *",
		ReformSchedule:    "0 15 9 * * *",
		TeamSchedule:      "0 30 8 * * MON",
	}}
}

func TestRegister(t *testing.T) {
	log := logger.NewNop()
	calc := deadline.NewCalculator(nil, time.UTC)
	sender := email.NewLogSender(log)
	d := reporting.NewDispatcher(noDue{}, noStore{}, sender, calc, nil, nil, reporting.Options{}, log)
	n := notify.NewNotifier(noStore{}, sender, nil, calc, notify.Options{OfficeAddress: "office@example.com"}, log)

	s := scheduler.New(log)
	require.NoError(t, Register(s, testConfig(), d, n, log))
	assert.Equal(t, []string{"alerts", "reform", "reminders", "reports", "team"}, s.GetAllJobs())

	schedule, err := s.Schedule("team")
	require.NoError(t, err)
	assert.Equal(t, "0 30 8 * * MON", schedule)

	for _, name := range s.GetAllJobs() {
		result, err := s.RunNow(context.Background(), name)
		require.NoError(t, err, name)
		assert.True(t, result.Success, name)
		assert.Zero(t, result.Outcome.Processed, name)
	}
}

func TestRegisterRejectsBadSchedule(t *testing.T) {
	log := logger.NewNop()
	cfg := testConfig()
	cfg.Reporting.AlertsSchedule = "at nine"

	calc := deadline.NewCalculator(nil, time.UTC)
	d := reporting.NewDispatcher(noDue{}, noStore{}, email.NewLogSender(log), calc, nil, nil, reporting.Options{}, log)
	n := notify.NewNotifier(noStore{}, email.NewLogSender(log), nil, calc, notify.Options{}, log)

	err := Register(scheduler.New(log), cfg, d, n, log)
	assert.ErrorContains(t, err, "register alerts")
}

func TestReportsJobIsNeverRetried(t *testing.T) {
	var job scheduler.Job = NewReportsJob(nil, "0 0 9 * * *", logger.NewNop())
	r, ok := job.(scheduler.Retrier)
	require.True(t, ok)
	assert.Zero(t, r.MaxRetries())
}

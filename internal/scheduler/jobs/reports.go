package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/c21-japan/homemart-sub002/internal/reporting"
	"github.com/c21-japan/homemart-sub002/internal/scheduler"
	"github.com/c21-japan/homemart-sub002/pkg/logger"
)

// ReportsJob sends the statutory seller reports
// ⭐ SSOT: the daily report batch is scheduled only by this job
type ReportsJob struct {
	dispatcher *reporting.Dispatcher
	schedule   string
	logger     *logger.Logger
}

// NewReportsJob creates a new reports job
func NewReportsJob(d *reporting.Dispatcher, schedule string, log *logger.Logger) *ReportsJob {
	return &ReportsJob{
		dispatcher: d,
		schedule:   schedule,
		logger:     log,
	}
}

// Name returns the job name
func (j *ReportsJob) Name() string {
	return "reports"
}

// Schedule returns the cron schedule (09:00 daily by default)
func (j *ReportsJob) Schedule() string {
	return j.schedule
}

// MaxRetries disables automatic retries. A rerun after a partial send would
// be safe but a retry racing a stuck send is not.
func (j *ReportsJob) MaxRetries() int {
	return 0
}

// Run executes the report batch for today
func (j *ReportsJob) Run(ctx context.Context) (scheduler.Outcome, error) {
	j.logger.Info("Starting scheduled report batch")

	result, err := j.dispatcher.Run(ctx, time.Time{})
	if err != nil {
		return scheduler.Outcome{}, fmt.Errorf("report batch: %w", err)
	}

	return scheduler.Outcome{
		Processed: result.Processed,
		Succeeded: result.Succeeded,
		Failed:    result.Failed,
		Skipped:   result.Skipped,
	}, nil
}

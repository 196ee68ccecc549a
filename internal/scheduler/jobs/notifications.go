package jobs

import (
	"context"

	"github.com/c21-japan/homemart-sub002/internal/scheduler"
)

// NotificationJob runs one internal notification task on a schedule
type NotificationJob struct {
	name     string
	schedule string
	run      func(ctx context.Context) (scheduler.Outcome, error)
}

// NewNotificationJob creates a job named after its task
func NewNotificationJob(name, schedule string, run func(ctx context.Context) (scheduler.Outcome, error)) *NotificationJob {
	return &NotificationJob{
		name:     name,
		schedule: schedule,
		run:      run,
	}
}

// Name returns the job name
func (j *NotificationJob) Name() string {
	return j.name
}

// Schedule returns the cron schedule
func (j *NotificationJob) Schedule() string {
	return j.schedule
}

// Run executes the task
func (j *NotificationJob) Run(ctx context.Context) (scheduler.Outcome, error) {
	return j.run(ctx)
}

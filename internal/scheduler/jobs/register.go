package jobs

import (
	"fmt"

	"github.com/c21-japan/homemart-sub002/internal/notify"
	"github.com/c21-japan/homemart-sub002/internal/reporting"
	"github.com/c21-japan/homemart-sub002/internal/scheduler"
	"github.com/c21-japan/homemart-sub002/pkg/config"
	"github.com/c21-japan/homemart-sub002/pkg/logger"
)

// Register adds every reporting and notification job to s
func Register(s *scheduler.Scheduler, cfg *config.Config, d *reporting.Dispatcher, n *notify.Notifier, log *logger.Logger) error {
	r := cfg.Reporting
	all := []scheduler.Job{
		NewReportsJob(d, r.ReportsSchedule, log),
		NewNotificationJob(notify.TaskAlerts, r.AlertsSchedule, n.Alerts),
		NewNotificationJob(notify.TaskReminders, r.RemindersSchedule, n.Reminders),
		NewNotificationJob(notify.TaskReform, r.ReformSchedule, n.Reform),
		NewNotificationJob(notify.TaskTeam, r.TeamSchedule, n.TeamDigest),
	}

	for _, job := range all {
		if err := s.AddJob(job); err != nil {
			return fmt.Errorf("register %s: %w", job.Name(), err)
		}
	}
	return nil
}

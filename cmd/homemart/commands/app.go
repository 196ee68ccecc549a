package commands

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"github.com/c21-japan/homemart-sub002/internal/agreement"
	"github.com/c21-japan/homemart-sub002/internal/deadline"
	"github.com/c21-japan/homemart-sub002/internal/email"
	"github.com/c21-japan/homemart-sub002/internal/notify"
	"github.com/c21-japan/homemart-sub002/internal/reporting"
	"github.com/c21-japan/homemart-sub002/internal/scheduler"
	"github.com/c21-japan/homemart-sub002/internal/scheduler/jobs"
	"github.com/c21-japan/homemart-sub002/pkg/config"
	"github.com/c21-japan/homemart-sub002/pkg/database"
	"github.com/c21-japan/homemart-sub002/pkg/logger"
	"github.com/c21-japan/homemart-sub002/pkg/redis"
)

// app holds every wired component. Commands build one with newApp and
// release it with Close.
type app struct {
	cfg        *config.Config
	log        *logger.Logger
	db         *database.DB
	redis      *redis.Client
	calc       *deadline.Calculator
	agreements *agreement.Service
	dispatcher *reporting.Dispatcher
	notifier   *notify.Notifier
	scheduler  *scheduler.Scheduler
}

// newCalculator builds the deadline calculator from config alone. It needs
// no database and backs the offline `deadline calc` command.
func newCalculator(cfg *config.Config) (*deadline.Calculator, error) {
	cal, err := deadline.LoadCalendar(cfg.Reporting.HolidaysFile)
	if err != nil {
		return nil, fmt.Errorf("load holidays: %w", err)
	}
	return deadline.NewCalculator(cal, cfg.Location()), nil
}

func newApp(ctx context.Context) (*app, error) {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	// 3. Deadline rules
	calc, err := newCalculator(cfg)
	if err != nil {
		return nil, err
	}

	// 4. Connect to database
	db, err := database.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	// 5. Redis (disabled client when REDIS_ENABLED=false)
	rc, err := redis.New(cfg)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	// 6. Mail provider
	mailer, err := email.New(ctx, cfg, log, rc)
	if err != nil {
		rc.Close()
		db.Close()
		return nil, fmt.Errorf("init mailer: %w", err)
	}

	// 7. Optional SNS fan-out for staff alerts
	var publisher notify.Publisher
	if cfg.Alerts.SNSTopicARN != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Email.AWSRegion))
		if err != nil {
			rc.Close()
			db.Close()
			return nil, fmt.Errorf("load AWS config: %w", err)
		}
		publisher = notify.NewSNSPublisher(sns.NewFromConfig(awsCfg), cfg.Alerts.SNSTopicARN)
	}

	// 8. Use cases
	r := cfg.Reporting
	agreements := agreement.NewService(
		agreement.NewRepository(db.Pool),
		calc,
		mailer,
		redis.NewCache(rc, "homemart"),
		agreement.Options{
			OfficeAddress: r.SenderFallbackAddress,
			SiteBaseURL:   r.SiteBaseURL,
			WarningDays:   r.WarningDays,
			StatsCacheTTL: r.StatsCacheTTL,
		},
		log,
	)

	dispatcher := reporting.NewDispatcher(
		agreements,
		reporting.NewPgStore(db),
		mailer,
		calc,
		reporting.ZeroMetrics{},
		redis.NewLocker(rc, "homemart", log),
		reporting.Options{
			SenderFallbackAddress: r.SenderFallbackAddress,
			SiteBaseURL:           r.SiteBaseURL,
			ItemTimeout:           r.ItemTimeout,
			LockTTL:               r.LockTTL,
		},
		log,
	)

	notifier := notify.NewNotifier(
		notify.NewRepository(db.Pool),
		mailer,
		publisher,
		calc,
		notify.Options{
			OfficeAddress:   r.SenderFallbackAddress,
			SiteBaseURL:     r.SiteBaseURL,
			AlertWindowDays: r.AlertWindowDays,
			StaleDays:       r.ReminderStaleDays,
			ProgressBelow:   r.ReminderProgressLT,
		},
		log,
	)

	// 9. Scheduler with every job registered
	sched := scheduler.New(log, scheduler.WithLocation(cfg.Location()))
	if err := jobs.Register(sched, cfg, dispatcher, notifier, log); err != nil {
		rc.Close()
		db.Close()
		return nil, fmt.Errorf("register jobs: %w", err)
	}

	log.WithFields(map[string]interface{}{
		"email_provider": mailer.Provider(),
		"redis":          rc.Enabled(),
		"sns":            publisher != nil,
		"timezone":       r.TimeZone,
		"holidays":       calc.Calendar().Len(),
	}).Debug("Application wired")

	return &app{
		cfg:        cfg,
		log:        log,
		db:         db,
		redis:      rc,
		calc:       calc,
		agreements: agreements,
		dispatcher: dispatcher,
		notifier:   notifier,
		scheduler:  sched,
	}, nil
}

// Close releases the connections held by the app
func (a *app) Close() {
	if err := a.redis.Close(); err != nil {
		a.log.WithError(err).Warn("Failed to close redis")
	}
	a.db.Close()
}

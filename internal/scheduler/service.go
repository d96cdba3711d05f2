package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/azure/controversy-analyzer/internal/config"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Runner is the job the scheduler triggers
type Runner interface {
	RunMonitoring(ctx context.Context) error
}

// Service handles scheduling of monitoring tasks
type Service struct {
	config *config.Config
	runner Runner
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
}

// NewService creates a new scheduler service
func NewService(cfg *config.Config, runner Runner) *Service {
	ctx, cancel := context.WithCancel(context.Background())

	return &Service{
		config: cfg,
		runner: runner,
		cron:   cron.New(cron.WithSeconds(), cron.WithLocation(time.UTC)),
		ctx:    ctx,
		cancel: cancel,
	}
}

// CronExpression maps a report schedule to its cron spec (seconds field first)
func CronExpression(schedule string) (string, error) {
	switch schedule {
	case "daily":
		// Run daily at 9 AM UTC
		return "0 0 9 * * *", nil
	case "weekly":
		// Run weekly on Monday at 9 AM UTC
		return "0 0 9 * * MON", nil
	default:
		return "", fmt.Errorf("unsupported report schedule %q", schedule)
	}
}

// Start begins the scheduled monitoring
func (s *Service) Start() error {
	cronExpression, err := CronExpression(s.config.ReportSchedule)
	if err != nil {
		return err
	}

	_, err = s.cron.AddFunc(cronExpression, s.run)
	if err != nil {
		return err
	}

	s.cron.Start()
	logrus.Infof("Scheduler started with %s schedule (%s)", s.config.ReportSchedule, cronExpression)
	return nil
}

func (s *Service) run() {
	logrus.Info("Starting scheduled monitoring run")
	if err := s.runner.RunMonitoring(s.ctx); err != nil {
		logrus.Errorf("Scheduled monitoring run failed: %v", err)
	}
}

// Stop stops the scheduler and cancels a run in progress
func (s *Service) Stop() {
	if s.cron != nil {
		s.cancel()
		<-s.cron.Stop().Done()
		logrus.Info("Scheduler stopped")
	}
}

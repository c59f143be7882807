package audit

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
	"github.com/zulandar/boardcore/internal/config"
	"gorm.io/gorm"
)

// Scheduler runs the audit on a cron schedule.
type Scheduler struct {
	db       *gorm.DB
	schedule cron.Schedule
	logger   *log.Logger

	// OnReport, if set, receives every completed report.
	OnReport func(Report)
}

// NewScheduler parses a 5-field cron expression.
func NewScheduler(db *gorm.DB, expr string, logger *log.Logger) (*Scheduler, error) {
	sched, err := config.CronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("audit: parse schedule %q: %w", expr, err)
	}
	return &Scheduler{db: db, schedule: sched, logger: logger}, nil
}

// Run blocks until ctx is cancelled, auditing at every scheduled time. An
// audit still running when the next one is due is not overlapped.
func (s *Scheduler) Run(ctx context.Context) {
	c := cron.New(cron.WithChain(
		cron.Recover(cron.PrintfLogger(s.logger)),
		cron.SkipIfStillRunning(cron.PrintfLogger(s.logger)),
	))
	c.Schedule(s.schedule, cron.FuncJob(func() { s.runOnce(ctx) }))
	c.Start()
	s.logger.Info("audit: scheduler started")

	<-ctx.Done()
	<-c.Stop().Done()
	s.logger.Info("audit: scheduler stopped")
}

func (s *Scheduler) runOnce(ctx context.Context) {
	r, err := Run(ctx, s.db, s.logger)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.WithError(err).Error("audit: run failed")
		}
		return
	}
	if s.OnReport != nil {
		s.OnReport(r)
	}
}

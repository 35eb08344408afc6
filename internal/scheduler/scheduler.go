// Package scheduler provides cron-based job scheduling for the bot.
//
// The campaign normally fires through its own daily trigger; the cron
// scheduler serves operator-supplied expressions such as an alternate
// DEFAULT_SCHEDULE for the campaign run.
package scheduler

import (
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Scheduler wraps a running cron instance.
type Scheduler struct {
	cron *cron.Cron
}

// NewScheduler creates and starts a scheduler using standard 5-field cron
// expressions (minute, hour, day of month, month, day of week). Panicking
// jobs are recovered so one bad run does not take the process down.
func NewScheduler() *Scheduler {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	c := cron.New(cron.WithParser(parser), cron.WithChain(cron.Recover(cron.DefaultLogger)))
	c.Start()
	return &Scheduler{cron: c}
}

// AddJob schedules task under the given cron expression.
func (s *Scheduler) AddJob(expr string, task func()) error {
	if _, err := s.cron.AddFunc(expr, task); err != nil {
		return err
	}
	slog.Info("Scheduler.AddJob: job scheduled", "expression", expr)
	return nil
}

// Stop stops the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	slog.Info("Scheduler.Stop: scheduler stopped")
}

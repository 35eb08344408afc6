package campaign

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/preconak-maker/aman-reactivation-bot/internal/models"
)

// DefaultCheckInterval is how often the daily trigger polls the clock.
const DefaultCheckInterval = 30 * time.Minute

// DailyTrigger fires the campaign once per local calendar day at or after
// the configured hour. It polls rather than computing the next fire time,
// so clock adjustments and DST transitions need no special handling.
type DailyTrigger struct {
	runner   *Runner
	fireHour int
	tz       *time.Location
	interval time.Duration

	mu        sync.Mutex
	lastFired string

	now func() time.Time
}

// NewDailyTrigger creates a trigger for the given runner using its
// configured fire hour and time zone.
func NewDailyTrigger(runner *Runner) *DailyTrigger {
	return &DailyTrigger{
		runner:   runner,
		fireHour: runner.cfg.FireHour,
		tz:       runner.cfg.Timezone,
		interval: DefaultCheckInterval,
		now:      time.Now,
	}
}

// Run polls until the context is cancelled. An immediate check runs on
// startup so a process started after the fire hour still sends that day.
func (d *DailyTrigger) Run(ctx context.Context) {
	slog.Info("DailyTrigger.Run: starting", "fire_hour", d.fireHour, "interval", d.interval)
	d.tick(ctx)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Info("DailyTrigger.Run: stopping", "reason", ctx.Err())
			return
		case <-ticker.C:
			d.tick(ctx)
		}
	}
}

// tick checks whether today's run is due and fires it. A panic in the run
// is contained so one bad tick cannot kill the trigger loop.
func (d *DailyTrigger) tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("DailyTrigger.tick: recovered from panic", "panic", r)
		}
	}()

	now := d.now().In(d.tz)
	if now.Hour() < d.fireHour {
		return
	}
	today := now.Format("2006-01-02")

	d.mu.Lock()
	due := d.lastFired != today
	d.mu.Unlock()
	if !due {
		return
	}

	if d.runner.Paused() {
		// Leave lastFired unset so the day's run is not lost; a later tick
		// fires once the operator resumes.
		slog.Info("DailyTrigger.tick: campaign paused, will retry", "date", today)
		return
	}

	slog.Info("DailyTrigger.tick: firing daily campaign run", "date", today, "hour", now.Hour())
	sent, err := d.runner.RunOnce(ctx)
	if errors.Is(err, models.ErrRunInProgress) {
		// A manual trigger is mid-flight. Leave lastFired unset so a later
		// tick retries today.
		slog.Warn("DailyTrigger.tick: run already in progress, will retry")
		return
	}
	if err != nil {
		slog.Error("DailyTrigger.tick: campaign run failed", "error", err, "date", today)
	}

	d.mu.Lock()
	d.lastFired = today
	d.mu.Unlock()
	slog.Info("DailyTrigger.tick: daily run finished", "date", today, "sent", sent)
}

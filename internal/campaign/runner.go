package campaign

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/preconak-maker/aman-reactivation-bot/internal/messaging"
	"github.com/preconak-maker/aman-reactivation-bot/internal/models"
	"github.com/preconak-maker/aman-reactivation-bot/internal/store"
	"github.com/preconak-maker/aman-reactivation-bot/internal/templates"
	"github.com/preconak-maker/aman-reactivation-bot/internal/util"
)

// Config holds the campaign pacing and gating knobs. One instance is held
// by the Runner; it is not persisted and resets on restart.
type Config struct {
	// DailyLimit caps messages sent in one run (follow-ups plus initial).
	DailyLimit int
	// SendHourStart/SendHourEnd bound the permitted window [start, end) in
	// local hours of the configured time zone.
	SendHourStart int
	SendHourEnd   int
	// Timezone is the local zone for hour gating and the daily trigger.
	Timezone *time.Location
	// DelayMin/DelayMax bound the randomized pause between consecutive sends.
	DelayMin time.Duration
	DelayMax time.Duration
	// FollowUpDays is the whole-day threshold before an unanswered lead is
	// nudged again.
	FollowUpDays int
	// FireHour is the local hour at which the daily trigger runs the campaign.
	FireHour int
}

// DefaultConfig mirrors the production settings: 50 messages/day between
// 9am and 8pm Toronto time, 45-90s between sends, follow-up after 3 days,
// daily fire at 10am.
func DefaultConfig() Config {
	loc, err := time.LoadLocation("America/Toronto")
	if err != nil {
		loc = time.UTC
	}
	return Config{
		DailyLimit:    50,
		SendHourStart: 9,
		SendHourEnd:   20,
		Timezone:      loc,
		DelayMin:      45 * time.Second,
		DelayMax:      90 * time.Second,
		FollowUpDays:  3,
		FireHour:      10,
	}
}

// Validate checks the configuration for nonsensical values.
func (c Config) Validate() error {
	if c.DailyLimit <= 0 {
		return fmt.Errorf("daily limit must be positive, got %d", c.DailyLimit)
	}
	if c.SendHourStart < 0 || c.SendHourStart > 23 || c.SendHourEnd < 0 || c.SendHourEnd > 24 {
		return fmt.Errorf("send hours out of range: [%d, %d)", c.SendHourStart, c.SendHourEnd)
	}
	if c.SendHourStart >= c.SendHourEnd {
		return fmt.Errorf("send window is empty: [%d, %d)", c.SendHourStart, c.SendHourEnd)
	}
	if c.DelayMin < 0 || c.DelayMax < c.DelayMin {
		return fmt.Errorf("invalid send delay bounds: [%s, %s]", c.DelayMin, c.DelayMax)
	}
	if c.FollowUpDays < 0 {
		return fmt.Errorf("follow-up threshold must not be negative, got %d", c.FollowUpDays)
	}
	if c.Timezone == nil {
		return fmt.Errorf("timezone must be set")
	}
	return nil
}

// Runner executes bounded campaign runs: gate on pause and sending hours,
// snapshot the lead list once, send follow-ups before initial outreach,
// and pace sends with randomized delays. A single in-progress guard keeps
// the daily trigger and manual triggers from overlapping.
type Runner struct {
	store    store.Store
	msg      messaging.Service
	identity templates.Identity
	cfg      Config

	mu      sync.Mutex
	paused  bool
	running bool

	// now and sleep are injected so tests control time.
	now   func() time.Time
	sleep func(time.Duration)
}

// NewRunner creates a campaign runner.
func NewRunner(st store.Store, msg messaging.Service, identity templates.Identity, cfg Config) *Runner {
	return &Runner{
		store:    st,
		msg:      msg,
		identity: identity,
		cfg:      cfg,
		now:      time.Now,
		sleep:    time.Sleep,
	}
}

// TogglePause flips the pause flag and returns the new state. Pausing is
// cooperative: an in-flight send or inter-send delay completes before the
// flag is honored at the next loop boundary.
func (r *Runner) TogglePause() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paused = !r.paused
	slog.Info("Runner.TogglePause: pause state changed", "paused", r.paused)
	return r.paused
}

// Paused reports the current pause state.
func (r *Runner) Paused() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.paused
}

// Running reports whether a campaign run is currently executing.
func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Config returns the runner's configuration.
func (r *Runner) Config() Config {
	return r.cfg
}

// RunOnce executes one bounded campaign run and returns the number of
// messages sent. Overlapping invocations fail with models.ErrRunInProgress.
func (r *Runner) RunOnce(ctx context.Context) (int, error) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		slog.Warn("Runner.RunOnce: run already in progress, skipping")
		return 0, models.ErrRunInProgress
	}
	r.running = true
	paused := r.paused
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	if paused {
		slog.Info("Runner.RunOnce: campaign paused, skipping run")
		return 0, nil
	}

	now := r.now().In(r.cfg.Timezone)
	if now.Hour() < r.cfg.SendHourStart || now.Hour() >= r.cfg.SendHourEnd {
		slog.Info("Runner.RunOnce: outside sending hours, skipping run",
			"hour", now.Hour(), "window_start", r.cfg.SendHourStart, "window_end", r.cfg.SendHourEnd)
		return 0, nil
	}

	// One consistent snapshot per run. Eligibility decisions use the
	// snapshot even though writes land on the live store.
	leads, err := r.store.ListLeads()
	if err != nil {
		slog.Error("Runner.RunOnce: failed to load lead snapshot", "error", err)
		return 0, fmt.Errorf("failed to load leads: %w", err)
	}

	sent := 0
	aborted := false

	// Follow-ups go first: leads we already nudged take priority over fresh
	// outreach within a run.
	followups := SelectFollowups(leads, r.cfg.FollowUpDays, now)
	slog.Info("Runner.RunOnce: starting run", "followup_candidates", len(followups), "total_leads", len(leads))
	sent, aborted = r.sendBatch(ctx, followups, sent, r.renderFollowUp)

	if !aborted {
		pending := SelectPending(leads)
		slog.Debug("Runner.RunOnce: follow-up batch complete, starting initial batch",
			"sent_so_far", sent, "pending_candidates", len(pending))
		sent, _ = r.sendBatch(ctx, pending, sent, r.renderInitial)
	}

	slog.Info("Runner.RunOnce: campaign run complete", "sent", sent)
	return sent, nil
}

// sendBatch walks one eligible batch, re-checking the cap and the pause
// flag before every send. It returns the updated send count and whether the
// run was aborted by cap, pause, or context cancellation.
func (r *Runner) sendBatch(ctx context.Context, batch []models.Lead, sent int, render func(models.Lead) string) (int, bool) {
	for _, lead := range batch {
		if sent >= r.cfg.DailyLimit {
			slog.Info("Runner.sendBatch: daily limit reached, stopping", "sent", sent)
			return sent, true
		}
		if r.Paused() {
			slog.Info("Runner.sendBatch: pause requested, stopping mid-run", "sent", sent)
			return sent, true
		}
		if ctx.Err() != nil {
			slog.Warn("Runner.sendBatch: context cancelled, stopping", "sent", sent)
			return sent, true
		}

		body := render(lead)
		if err := r.msg.SendMessage(ctx, lead.Phone, body); err != nil {
			// One attempt per run; the lead stays eligible next run.
			slog.Error("Runner.sendBatch: send failed, skipping lead", "error", err, "phone", lead.Phone)
			continue
		}

		if err := r.store.MarkSent(lead.Phone, body, r.now()); err != nil {
			// Send succeeded but the update failed: do not count the send.
			// The lead may be re-sent next run; accepted over silent loss.
			slog.Error("Runner.sendBatch: failed to record send, continuing", "error", err, "phone", lead.Phone)
			continue
		}

		sent++
		slog.Debug("Runner.sendBatch: message sent", "phone", lead.Phone, "sent", sent)

		// Randomized pacing only between consecutive sends, never after the
		// final permitted one.
		if sent < r.cfg.DailyLimit {
			delay := util.RandomDurationBetween(r.cfg.DelayMin, r.cfg.DelayMax)
			slog.Debug("Runner.sendBatch: waiting before next message", "delay", delay)
			r.sleep(delay)
		}
	}
	return sent, false
}

func (r *Runner) renderInitial(lead models.Lead) string {
	return templates.Initial(r.identity, models.ParsePhase(string(lead.Phase)), lead.FirstName, lead.BuyerSeller, lead.City)
}

func (r *Runner) renderFollowUp(lead models.Lead) string {
	return templates.FollowUp(r.identity, models.ParsePhase(string(lead.Phase)), lead.FirstName)
}

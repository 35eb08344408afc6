package campaign

import (
	"context"
	"testing"
	"time"
)

func newTestTrigger(t *testing.T) (*DailyTrigger, *Runner, func(time.Time)) {
	t.Helper()
	r, st, _ := newTestRunner(t, testConfig())
	addPending(t, st, "+15550001111", "Lead")

	trigger := NewDailyTrigger(r)
	current := insideWindow
	trigger.now = func() time.Time { return current }
	r.now = func() time.Time { return current }
	setNow := func(tm time.Time) { current = tm }
	return trigger, r, setNow
}

func TestDailyTriggerFiresOncePerDay(t *testing.T) {
	trigger, _, setNow := newTestTrigger(t)

	// 11:00, past the 10:00 fire hour: fires.
	trigger.tick(context.Background())
	if trigger.lastFired != "2026-08-27" {
		t.Fatalf("expected lastFired set to today, got %q", trigger.lastFired)
	}

	// Later the same day: no second fire (lastFired unchanged, and a second
	// run would find no pending leads anyway, so check via lastFired).
	setNow(insideWindow.Add(3 * time.Hour))
	trigger.tick(context.Background())
	if trigger.lastFired != "2026-08-27" {
		t.Errorf("expected lastFired unchanged, got %q", trigger.lastFired)
	}

	// Next day after the fire hour: fires again.
	setNow(insideWindow.AddDate(0, 0, 1))
	trigger.tick(context.Background())
	if trigger.lastFired != "2026-08-28" {
		t.Errorf("expected lastFired advanced to next day, got %q", trigger.lastFired)
	}
}

func TestDailyTriggerBeforeFireHour(t *testing.T) {
	trigger, _, setNow := newTestTrigger(t)
	setNow(time.Date(2026, 8, 27, 9, 30, 0, 0, time.UTC))

	trigger.tick(context.Background())
	if trigger.lastFired != "" {
		t.Errorf("expected no fire before fire hour, lastFired=%q", trigger.lastFired)
	}
}

func TestDailyTriggerRetriesWhenPaused(t *testing.T) {
	trigger, r, _ := newTestTrigger(t)
	r.TogglePause()

	trigger.tick(context.Background())
	if trigger.lastFired != "" {
		t.Errorf("expected lastFired unset while paused, got %q", trigger.lastFired)
	}

	r.TogglePause()
	trigger.tick(context.Background())
	if trigger.lastFired != "2026-08-27" {
		t.Errorf("expected run after resume, lastFired=%q", trigger.lastFired)
	}
}

func TestDailyTriggerRetriesWhenRunInProgress(t *testing.T) {
	trigger, r, _ := newTestTrigger(t)

	// Simulate a manual run holding the guard.
	r.mu.Lock()
	r.running = true
	r.mu.Unlock()

	trigger.tick(context.Background())
	if trigger.lastFired != "" {
		t.Errorf("expected lastFired unset when run guard held, got %q", trigger.lastFired)
	}

	r.mu.Lock()
	r.running = false
	r.mu.Unlock()

	trigger.tick(context.Background())
	if trigger.lastFired != "2026-08-27" {
		t.Errorf("expected retry to fire, lastFired=%q", trigger.lastFired)
	}
}

// Package timer provides cancellable scheduled actions for delayed sends.
//
// The reply intake uses it to detach the "typing delay" send from the
// webhook response, while keeping a handle so shutdown can abandon pending
// sends explicitly instead of leaking fire-and-forget goroutines.
package timer

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/preconak-maker/aman-reactivation-bot/internal/models"
)

// Timer schedules functions to run later and tracks them until they fire.
type Timer interface {
	// ScheduleAfter runs fn after delay and returns a cancellable ID.
	ScheduleAfter(delay time.Duration, description string, fn func()) (string, error)
	// Cancel stops a scheduled function by ID. Unknown IDs are a no-op.
	Cancel(id string) error
	// ListActive returns the currently pending entries.
	ListActive() []models.TimerInfo
	// Stop cancels all pending entries.
	Stop()
}

type entry struct {
	timer       *time.Timer
	scheduledAt time.Time
	expiresAt   time.Time
	description string
}

// SimpleTimer implements Timer with time.AfterFunc.
type SimpleTimer struct {
	mu     sync.RWMutex
	timers map[string]*entry
	nextID int64
}

// NewSimpleTimer creates an empty timer registry.
func NewSimpleTimer() *SimpleTimer {
	return &SimpleTimer{timers: make(map[string]*entry)}
}

// ScheduleAfter schedules fn to run after delay.
func (t *SimpleTimer) ScheduleAfter(delay time.Duration, description string, fn func()) (string, error) {
	t.mu.Lock()
	t.nextID++
	id := fmt.Sprintf("timer_%d", t.nextID)
	t.mu.Unlock()

	now := time.Now()
	tm := time.AfterFunc(delay, func() {
		slog.Debug("SimpleTimer executing scheduled function", "id", id, "description", description)
		fn()
		t.mu.Lock()
		delete(t.timers, id)
		t.mu.Unlock()
	})

	t.mu.Lock()
	t.timers[id] = &entry{
		timer:       tm,
		scheduledAt: now,
		expiresAt:   now.Add(delay),
		description: description,
	}
	t.mu.Unlock()

	slog.Debug("SimpleTimer ScheduleAfter succeeded", "id", id, "delay", delay, "description", description)
	return id, nil
}

// Cancel stops a scheduled function by ID.
func (t *SimpleTimer) Cancel(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.timers[id]; ok {
		e.timer.Stop()
		delete(t.timers, id)
		slog.Debug("SimpleTimer Cancel succeeded", "id", id)
	}
	return nil
}

// ListActive returns information about all pending timers.
func (t *SimpleTimer) ListActive() []models.TimerInfo {
	t.mu.RLock()
	defer t.mu.RUnlock()

	now := time.Now()
	infos := make([]models.TimerInfo, 0, len(t.timers))
	for id, e := range t.timers {
		remaining := e.expiresAt.Sub(now)
		if remaining < 0 {
			remaining = 0
		}
		infos = append(infos, models.TimerInfo{
			ID:          id,
			ScheduledAt: e.scheduledAt,
			ExpiresAt:   e.expiresAt,
			Remaining:   remaining.String(),
			Description: e.description,
		})
	}
	return infos
}

// Stop cancels all pending timers. Delayed sends scheduled before shutdown
// are abandoned, matching the at-most-one-attempt delivery model.
func (t *SimpleTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, e := range t.timers {
		e.timer.Stop()
		slog.Debug("SimpleTimer stopped timer", "id", id)
	}
	t.timers = make(map[string]*entry)
	slog.Info("SimpleTimer stopped all timers")
}

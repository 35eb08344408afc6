package campaign

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/preconak-maker/aman-reactivation-bot/internal/messaging"
	"github.com/preconak-maker/aman-reactivation-bot/internal/models"
	"github.com/preconak-maker/aman-reactivation-bot/internal/store"
	"github.com/preconak-maker/aman-reactivation-bot/internal/templates"
	"github.com/preconak-maker/aman-reactivation-bot/internal/twiliosms"
)

// insideWindow is a fixed instant at 11:00 UTC, inside the default 9-20 window.
var insideWindow = time.Date(2026, 8, 27, 11, 0, 0, 0, time.UTC)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Timezone = time.UTC
	cfg.DelayMin = 0
	cfg.DelayMax = 0
	return cfg
}

func newTestRunner(t *testing.T, cfg Config) (*Runner, *store.InMemoryStore, *twiliosms.MockClient) {
	t.Helper()
	st := store.NewInMemoryStore()
	sender := twiliosms.NewMockClient()
	r := NewRunner(st, messaging.NewTwilioService(sender), templates.DefaultIdentity(), cfg)
	r.now = func() time.Time { return insideWindow }
	r.sleep = func(time.Duration) {}
	return r, st, sender
}

func addPending(t *testing.T, st *store.InMemoryStore, phone, firstName string) {
	t.Helper()
	_, err := st.AddLead(models.Lead{
		Phone:     phone,
		FirstName: firstName,
		Phase:     models.PhaseRecent,
	})
	if err != nil {
		t.Fatalf("failed to add lead %s: %v", phone, err)
	}
}

func addUnanswered(t *testing.T, st *store.InMemoryStore, phone string, daysAgo int) {
	t.Helper()
	addPending(t, st, phone, "Lead")
	sentAt := insideWindow.AddDate(0, 0, -daysAgo)
	if err := st.MarkSent(phone, "initial message", sentAt); err != nil {
		t.Fatalf("failed to mark lead %s sent: %v", phone, err)
	}
}

func TestRunOnceSendsInitialMessages(t *testing.T) {
	r, st, sender := newTestRunner(t, testConfig())
	addPending(t, st, "+15550000001", "Alice")
	addPending(t, st, "+15550000002", "Bob")

	sent, err := r.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}
	if sent != 2 {
		t.Fatalf("expected 2 sends, got %d", sent)
	}

	msgs := sender.Sent()
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages on the wire, got %d", len(msgs))
	}
	if !strings.Contains(msgs[0].Body, "Alice") {
		t.Errorf("expected personalized message, got %q", msgs[0].Body)
	}
	if !strings.Contains(msgs[0].Body, templates.OptOutLine) {
		t.Errorf("expected opt-out line in message, got %q", msgs[0].Body)
	}

	lead, err := st.GetLead("+15550000001")
	if err != nil {
		t.Fatalf("GetLead failed: %v", err)
	}
	if lead.SMSStatus != models.SMSStatusSent {
		t.Errorf("expected status Sent, got %q", lead.SMSStatus)
	}
	if _, ok := lead.SentAtTime(); !ok {
		t.Errorf("expected parseable sent timestamp, got %q", lead.SentAt)
	}
}

func TestRunOnceRespectsDailyLimit(t *testing.T) {
	cfg := testConfig()
	cfg.DailyLimit = 3
	r, st, sender := newTestRunner(t, cfg)
	for _, phone := range []string{"+15550000001", "+15550000002", "+15550000003", "+15550000004", "+15550000005"} {
		addPending(t, st, phone, "Lead")
	}

	sent, err := r.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}
	if sent != 3 {
		t.Errorf("expected sends capped at 3, got %d", sent)
	}
	if len(sender.Sent()) != 3 {
		t.Errorf("expected 3 messages on the wire, got %d", len(sender.Sent()))
	}
}

func TestRunOnceFollowupsBeforeInitialSharedCap(t *testing.T) {
	cfg := testConfig()
	cfg.DailyLimit = 4
	r, st, sender := newTestRunner(t, cfg)

	addUnanswered(t, st, "+15550000101", 5)
	addUnanswered(t, st, "+15550000102", 4)
	addUnanswered(t, st, "+15550000103", 3)
	for _, phone := range []string{"+15550000201", "+15550000202", "+15550000203", "+15550000204", "+15550000205"} {
		addPending(t, st, phone, "Lead")
	}

	sent, err := r.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}
	if sent != 4 {
		t.Fatalf("expected 4 sends, got %d", sent)
	}

	msgs := sender.Sent()
	for i, want := range []string{"+15550000101", "+15550000102", "+15550000103", "+15550000201"} {
		if msgs[i].To != want {
			t.Errorf("send %d went to %s, want %s", i, msgs[i].To, want)
		}
	}

	leads, _ := st.ListLeads()
	pendingLeft := 0
	for _, lead := range leads {
		if lead.SMSStatus == models.SMSStatusPending {
			pendingLeft++
		}
	}
	if pendingLeft != 4 {
		t.Errorf("expected 4 leads still Pending, got %d", pendingLeft)
	}
}

func TestRunOnceOutsideSendingHours(t *testing.T) {
	r, st, sender := newTestRunner(t, testConfig())
	addPending(t, st, "+15550000001", "Lead")
	r.now = func() time.Time { return time.Date(2026, 8, 27, 22, 0, 0, 0, time.UTC) }

	sent, err := r.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}
	if sent != 0 {
		t.Errorf("expected 0 sends outside window, got %d", sent)
	}
	if len(sender.Sent()) != 0 {
		t.Errorf("expected no messages outside window, got %d", len(sender.Sent()))
	}

	lead, _ := st.GetLead("+15550000001")
	if lead.SMSStatus != models.SMSStatusPending {
		t.Errorf("expected lead untouched outside window, got status %q", lead.SMSStatus)
	}
}

func TestRunOnceWindowEndExclusive(t *testing.T) {
	r, st, _ := newTestRunner(t, testConfig())
	addPending(t, st, "+15550000001", "Lead")
	r.now = func() time.Time { return time.Date(2026, 8, 27, 20, 0, 0, 0, time.UTC) }

	sent, err := r.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}
	if sent != 0 {
		t.Errorf("expected no sends at the end hour, got %d", sent)
	}
}

func TestRunOncePausedSkipsEntirely(t *testing.T) {
	r, st, sender := newTestRunner(t, testConfig())
	addPending(t, st, "+15550000001", "Lead")
	r.TogglePause()

	sent, err := r.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}
	if sent != 0 || len(sender.Sent()) != 0 {
		t.Errorf("expected paused run to send nothing, sent=%d wire=%d", sent, len(sender.Sent()))
	}
}

func TestRunOncePauseMidRun(t *testing.T) {
	r, st, sender := newTestRunner(t, testConfig())
	for _, phone := range []string{"+15550000001", "+15550000002", "+15550000003", "+15550000004"} {
		addPending(t, st, phone, "Lead")
	}
	// Pause after the second inter-send delay.
	calls := 0
	r.sleep = func(time.Duration) {
		calls++
		if calls == 2 {
			r.TogglePause()
		}
	}

	sent, err := r.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}
	if sent != 2 {
		t.Errorf("expected run to stop after 2 sends, got %d", sent)
	}
	if len(sender.Sent()) != 2 {
		t.Errorf("expected 2 messages on the wire, got %d", len(sender.Sent()))
	}
}

func TestRunOnceSendFailureSkipsLead(t *testing.T) {
	r, st, sender := newTestRunner(t, testConfig())
	addPending(t, st, "+15550000666", "Lead")
	addPending(t, st, "+15550000001", "Lead")
	sender.FailNumbers["+15550000666"] = true

	sent, err := r.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}
	if sent != 1 {
		t.Errorf("expected 1 successful send, got %d", sent)
	}

	bad, _ := st.GetLead("+15550000666")
	if bad.SMSStatus != models.SMSStatusPending {
		t.Errorf("expected failed lead to stay Pending, got %q", bad.SMSStatus)
	}
	good, _ := st.GetLead("+15550000001")
	if good.SMSStatus != models.SMSStatusSent {
		t.Errorf("expected good lead marked Sent, got %q", good.SMSStatus)
	}
}

func TestRunOnceContextCancellation(t *testing.T) {
	r, st, _ := newTestRunner(t, testConfig())
	for _, phone := range []string{"+15550000001", "+15550000002", "+15550000003"} {
		addPending(t, st, phone, "Lead")
	}
	ctx, cancel := context.WithCancel(context.Background())
	r.sleep = func(time.Duration) { cancel() }

	sent, err := r.RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}
	if sent != 1 {
		t.Errorf("expected run to stop after cancellation, got %d sends", sent)
	}
}

func TestRunOnceSingleRunGuard(t *testing.T) {
	r, st, _ := newTestRunner(t, testConfig())
	addPending(t, st, "+15550000001", "Lead")

	started := make(chan struct{})
	release := make(chan struct{})
	blocker := &sync.WaitGroup{}
	blocker.Add(1)
	// Hold the first run inside its inter-send delay so the second call
	// observes the running guard.
	r.sleep = func(time.Duration) {
		close(started)
		<-release
	}
	go func() {
		defer blocker.Done()
		if _, err := r.RunOnce(context.Background()); err != nil {
			t.Errorf("first run failed: %v", err)
		}
	}()

	<-started
	if _, err := r.RunOnce(context.Background()); !errors.Is(err, models.ErrRunInProgress) {
		t.Errorf("expected ErrRunInProgress for overlapping run, got %v", err)
	}
	close(release)
	blocker.Wait()

	if r.Running() {
		t.Error("expected running flag cleared after run completes")
	}
}

func TestTogglePause(t *testing.T) {
	r, _, _ := newTestRunner(t, testConfig())
	if r.Paused() {
		t.Fatal("expected runner to start unpaused")
	}
	if !r.TogglePause() {
		t.Error("expected first toggle to pause")
	}
	if r.TogglePause() {
		t.Error("expected second toggle to resume")
	}
}

func TestConfigValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("default config should validate, got %v", err)
	}

	bad := []Config{
		func() Config { c := testConfig(); c.DailyLimit = 0; return c }(),
		func() Config { c := testConfig(); c.SendHourStart = 20; c.SendHourEnd = 9; return c }(),
		func() Config { c := testConfig(); c.SendHourStart = -1; return c }(),
		func() Config { c := testConfig(); c.DelayMin = 10 * time.Second; c.DelayMax = time.Second; return c }(),
		func() Config { c := testConfig(); c.FollowUpDays = -1; return c }(),
		func() Config { c := testConfig(); c.Timezone = nil; return c }(),
	}
	for i, cfg := range bad {
		if err := cfg.Validate(); err == nil {
			t.Errorf("config %d should fail validation", i)
		}
	}
}

// sendBatch must not sleep after the last permitted send.
func TestNoDelayAfterFinalSend(t *testing.T) {
	cfg := testConfig()
	cfg.DailyLimit = 2
	cfg.DelayMin = time.Second
	cfg.DelayMax = time.Second
	r, st, _ := newTestRunner(t, cfg)
	for _, phone := range []string{"+15550000001", "+15550000002", "+15550000003"} {
		addPending(t, st, phone, "Lead")
	}
	sleeps := 0
	r.sleep = func(time.Duration) { sleeps++ }

	if _, err := r.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}
	if sleeps != 1 {
		t.Errorf("expected exactly 1 inter-send delay for 2 sends, got %d", sleeps)
	}
}

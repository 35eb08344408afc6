package messaging

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/preconak-maker/aman-reactivation-bot/internal/genai"
	"github.com/preconak-maker/aman-reactivation-bot/internal/models"
	"github.com/preconak-maker/aman-reactivation-bot/internal/store"
	"github.com/preconak-maker/aman-reactivation-bot/internal/templates"
	"github.com/preconak-maker/aman-reactivation-bot/internal/timer"
	"github.com/preconak-maker/aman-reactivation-bot/internal/twiliosms"
)

func newTestHandler(t *testing.T, ai *genai.MockClient) (*ReplyHandler, *store.InMemoryStore, *twiliosms.MockClient, *timer.SimpleTimer) {
	t.Helper()
	st := store.NewInMemoryStore()
	sender := twiliosms.NewMockClient()
	tm := timer.NewSimpleTimer()
	t.Cleanup(tm.Stop)

	h := NewReplyHandler(st, NewTwilioService(sender), ai, tm, templates.DefaultIdentity())
	// Immediate dispatch in tests; the delay math is covered separately.
	h.delayFor = func(string) time.Duration { return 0 }
	return h, st, sender, tm
}

func seedSentLead(t *testing.T, st *store.InMemoryStore, phone string) {
	t.Helper()
	if _, err := st.AddLead(models.Lead{Phone: phone, FirstName: "Alice", Phase: models.PhaseRecent}); err != nil {
		t.Fatalf("failed to seed lead: %v", err)
	}
	if err := st.MarkSent(phone, "initial outreach", time.Now().Add(-48*time.Hour)); err != nil {
		t.Fatalf("failed to mark lead sent: %v", err)
	}
}

func waitForSend(t *testing.T, sender *twiliosms.MockClient, want int) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if len(sender.Sent()) >= want {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %d sends, have %d", want, len(sender.Sent()))
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestHandleInboundOptOut(t *testing.T) {
	ai := genai.NewMockClient()
	h, st, sender, _ := newTestHandler(t, ai)
	seedSentLead(t, st, "+14165550001")

	reply, err := h.HandleInbound(context.Background(), "+14165550001", "STOP")
	if err != nil {
		t.Fatalf("HandleInbound failed: %v", err)
	}
	if reply != templates.UnsubscribeConfirmation {
		t.Errorf("expected unsubscribe confirmation, got %q", reply)
	}

	lead, _ := st.GetLead("+14165550001")
	if lead.SMSStatus != models.SMSStatusOptedOut {
		t.Errorf("expected status Opted Out, got %q", lead.SMSStatus)
	}
	if len(ai.ClassifyCalls) != 0 || len(ai.GenerateCalls) != 0 {
		t.Error("opt-out must not invoke the AI")
	}
	if len(sender.Sent()) != 0 {
		t.Error("opt-out must not schedule an outbound message")
	}
}

func TestHandleInboundOptOutVariants(t *testing.T) {
	for _, body := range []string{"stop", " Unsubscribe ", "QUIT", "cancel", "End"} {
		ai := genai.NewMockClient()
		h, st, _, _ := newTestHandler(t, ai)
		seedSentLead(t, st, "+14165550001")

		reply, err := h.HandleInbound(context.Background(), "+14165550001", body)
		if err != nil {
			t.Fatalf("HandleInbound(%q) failed: %v", body, err)
		}
		if reply != templates.UnsubscribeConfirmation {
			t.Errorf("HandleInbound(%q) = %q, want unsubscribe confirmation", body, reply)
		}
	}
}

func TestHandleInboundRepeatedOptOut(t *testing.T) {
	ai := genai.NewMockClient()
	h, st, _, _ := newTestHandler(t, ai)
	seedSentLead(t, st, "+14165550001")

	for i := 0; i < 2; i++ {
		reply, err := h.HandleInbound(context.Background(), "+14165550001", "STOP")
		if err != nil {
			t.Fatalf("opt-out %d failed: %v", i+1, err)
		}
		if reply != templates.UnsubscribeConfirmation {
			t.Errorf("opt-out %d: expected confirmation, got %q", i+1, reply)
		}
	}
}

func TestHandleInboundConversationalReply(t *testing.T) {
	ai := genai.NewMockClient()
	ai.Reply = "Great to hear from you! Are mornings or evenings better for a quick call?"
	ai.Temp = models.TemperatureHot
	h, st, sender, _ := newTestHandler(t, ai)
	seedSentLead(t, st, "+14165550001")

	reply, err := h.HandleInbound(context.Background(), "+1 (416) 555-0001", "Yes, still looking to buy!")
	if err != nil {
		t.Fatalf("HandleInbound failed: %v", err)
	}
	if reply != "" {
		t.Errorf("conversational replies go out delayed, expected empty webhook reply, got %q", reply)
	}

	lead, _ := st.GetLead("+14165550001")
	if lead.ReplyReceived != models.ReplyReceivedYes {
		t.Errorf("expected reply recorded, got %q", lead.ReplyReceived)
	}
	if lead.Temperature != models.TemperatureHot {
		t.Errorf("expected Hot classification stored, got %q", lead.Temperature)
	}
	if lead.SMSStatus != models.SMSStatusSent {
		t.Errorf("reply must not change SMS status, got %q", lead.SMSStatus)
	}

	turns, _ := st.GetConversation("+14165550001")
	if len(turns) != 2 {
		t.Fatalf("expected user and assistant turns logged, got %d", len(turns))
	}
	if turns[0].Role != models.RoleUser || turns[1].Role != models.RoleAssistant {
		t.Errorf("unexpected turn roles: %s, %s", turns[0].Role, turns[1].Role)
	}

	waitForSend(t, sender, 1)
	msgs := sender.Sent()
	if msgs[0].To != "+14165550001" || msgs[0].Body != ai.Reply {
		t.Errorf("unexpected delayed send: %+v", msgs[0])
	}
}

func TestHandleInboundClassificationFailureDefaultsWarm(t *testing.T) {
	ai := genai.NewMockClient()
	ai.ClassifyErr = errors.New("model unavailable")
	h, st, _, _ := newTestHandler(t, ai)
	seedSentLead(t, st, "+14165550001")

	if _, err := h.HandleInbound(context.Background(), "+14165550001", "maybe next year"); err != nil {
		t.Fatalf("HandleInbound failed: %v", err)
	}
	lead, _ := st.GetLead("+14165550001")
	if lead.Temperature != models.TemperatureWarm {
		t.Errorf("expected Warm default on classification failure, got %q", lead.Temperature)
	}
}

func TestHandleInboundGenerationFailure(t *testing.T) {
	ai := genai.NewMockClient()
	ai.ReplyErr = errors.New("model unavailable")
	h, st, sender, tm := newTestHandler(t, ai)
	seedSentLead(t, st, "+14165550001")

	reply, err := h.HandleInbound(context.Background(), "+14165550001", "tell me more")
	if err != nil {
		t.Fatalf("HandleInbound should swallow generation failures, got %v", err)
	}
	if reply != "" {
		t.Errorf("expected no reply on generation failure, got %q", reply)
	}

	// The inbound side is still recorded.
	lead, _ := st.GetLead("+14165550001")
	if lead.ReplyReceived != models.ReplyReceivedYes {
		t.Error("expected inbound reply recorded despite generation failure")
	}
	turns, _ := st.GetConversation("+14165550001")
	if len(turns) != 1 || turns[0].Role != models.RoleUser {
		t.Errorf("expected only the user turn logged, got %d turns", len(turns))
	}
	if len(tm.ListActive()) != 0 {
		t.Error("expected no delayed send scheduled")
	}
	if len(sender.Sent()) != 0 {
		t.Error("expected nothing on the wire")
	}
}

func TestHandleInboundUnknownSender(t *testing.T) {
	ai := genai.NewMockClient()
	h, st, _, _ := newTestHandler(t, ai)

	if _, err := h.HandleInbound(context.Background(), "+19998887777", "who is this?"); err != nil {
		t.Fatalf("HandleInbound failed: %v", err)
	}
	lead, err := st.GetLead("+19998887777")
	if err != nil {
		t.Fatalf("expected unknown sender registered as lead: %v", err)
	}
	if lead.ReplyReceived != models.ReplyReceivedYes {
		t.Errorf("expected reply recorded for new lead, got %q", lead.ReplyReceived)
	}
}

func TestHandleInboundInvalidSender(t *testing.T) {
	ai := genai.NewMockClient()
	h, _, _, _ := newTestHandler(t, ai)
	if _, err := h.HandleInbound(context.Background(), "not-a-number", "hello"); err == nil {
		t.Error("expected error for invalid sender")
	}
}

func TestHandleInboundHistoryExcludesIncoming(t *testing.T) {
	ai := genai.NewMockClient()
	h, st, _, _ := newTestHandler(t, ai)
	seedSentLead(t, st, "+14165550001")

	if _, err := h.HandleInbound(context.Background(), "+14165550001", "first message"); err != nil {
		t.Fatalf("HandleInbound failed: %v", err)
	}
	if len(ai.GenerateCalls) != 1 {
		t.Fatalf("expected 1 generate call, got %d", len(ai.GenerateCalls))
	}
	call := ai.GenerateCalls[0]
	if call.Incoming != "first message" {
		t.Errorf("expected incoming passed separately, got %q", call.Incoming)
	}
	for _, turn := range call.History {
		if turn.Content == "first message" {
			t.Error("incoming message must not be duplicated into history")
		}
	}
}

func TestTypingDelayGrowsWithLength(t *testing.T) {
	short := typingDelay("ok")
	long := typingDelay("this reply has quite a few more words in it than the short one does overall today for sure honestly")
	if short < typingDelayMin || short > typingDelayMax {
		t.Errorf("short delay %v outside base bounds", short)
	}
	if long < typingDelayMin {
		t.Errorf("long delay %v below minimum", long)
	}
	minLong := typingDelayMin + time.Duration(19/wordsPerExtraSecond)*time.Second
	if long < minLong {
		t.Errorf("expected length bonus for long reply, got %v", long)
	}
}

package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/preconak-maker/aman-reactivation-bot/internal/genai"
	"github.com/preconak-maker/aman-reactivation-bot/internal/models"
	"github.com/preconak-maker/aman-reactivation-bot/internal/store"
	"github.com/preconak-maker/aman-reactivation-bot/internal/templates"
	"github.com/preconak-maker/aman-reactivation-bot/internal/timer"
	"github.com/preconak-maker/aman-reactivation-bot/internal/util"
)

// Typing delay bounds for the humanized reply pacing. The base is randomized
// and the total grows with reply length, one extra second per five words.
const (
	typingDelayMin      = 20 * time.Second
	typingDelayMax      = 45 * time.Second
	wordsPerExtraSecond = 5
)

// ReplyHandler processes inbound SMS replies: opt-out takes absolute
// priority, everything else is classified, logged, answered by the AI and
// sent back after a humanized typing delay.
type ReplyHandler struct {
	store    store.Store
	msg      Service
	ai       genai.ClientInterface
	timer    timer.Timer
	identity templates.Identity

	// delayFor is injected so tests can pin the typing delay.
	delayFor func(reply string) time.Duration

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewReplyHandler creates a reply handler wired to the given collaborators.
func NewReplyHandler(st store.Store, msg Service, ai genai.ClientInterface, tm timer.Timer, identity templates.Identity) *ReplyHandler {
	return &ReplyHandler{
		store:    st,
		msg:      msg,
		ai:       ai,
		timer:    tm,
		identity: identity,
		delayFor: typingDelay,
		locks:    make(map[string]*sync.Mutex),
	}
}

// phoneLock returns the serialization lock for one phone number. Replies
// from different leads proceed concurrently; replies from the same lead are
// handled one at a time so the conversation log stays ordered.
func (h *ReplyHandler) phoneLock(phone string) *sync.Mutex {
	h.mu.Lock()
	defer h.mu.Unlock()
	l, ok := h.locks[phone]
	if !ok {
		l = &sync.Mutex{}
		h.locks[phone] = l
	}
	return l
}

// HandleInbound processes one inbound message and returns the immediate
// webhook reply body. An empty return means no synchronous reply; the AI
// response, if any, goes out later through the timer.
func (h *ReplyHandler) HandleInbound(ctx context.Context, from, body string) (string, error) {
	phone, err := CanonicalizePhone(from)
	if err != nil {
		slog.Error("ReplyHandler.HandleInbound: invalid sender", "error", err, "from", from)
		return "", fmt.Errorf("invalid sender: %w", err)
	}

	lock := h.phoneLock(phone)
	lock.Lock()
	defer lock.Unlock()

	slog.Info("ReplyHandler.HandleInbound: received reply", "phone", phone, "length", len(body))

	if models.IsOptOut(body) {
		return h.handleOptOut(phone)
	}

	lead, err := h.store.GetLead(phone)
	if errors.Is(err, models.ErrLeadNotFound) {
		// Unknown sender. Register a minimal lead so the conversation has a
		// home row, then continue as normal.
		slog.Warn("ReplyHandler.HandleInbound: reply from unknown number, registering lead", "phone", phone)
		if _, addErr := h.store.AddLead(models.Lead{Phone: phone, Phase: models.PhaseRecent}); addErr != nil {
			slog.Error("ReplyHandler.HandleInbound: failed to register unknown sender", "error", addErr, "phone", phone)
			return "", addErr
		}
		lead, err = h.store.GetLead(phone)
	}
	if err != nil {
		slog.Error("ReplyHandler.HandleInbound: failed to load lead", "error", err, "phone", phone)
		return "", err
	}

	temp, err := h.ai.ClassifyTemperature(ctx, body)
	if err != nil {
		// Classification is best effort; the Warm default is already applied.
		slog.Warn("ReplyHandler.HandleInbound: classification failed, using default", "error", err, "phone", phone)
		temp = models.TemperatureWarm
	}
	if err := h.store.RecordReply(phone, body, temp); err != nil {
		slog.Error("ReplyHandler.HandleInbound: failed to record reply", "error", err, "phone", phone)
		return "", err
	}

	if err := h.store.AppendConversationTurn(models.ConversationTurn{
		Phone:   phone,
		Role:    models.RoleUser,
		Content: body,
	}); err != nil {
		slog.Error("ReplyHandler.HandleInbound: failed to log inbound turn", "error", err, "phone", phone)
	}

	history, err := h.store.GetConversation(phone)
	if err != nil {
		slog.Error("ReplyHandler.HandleInbound: failed to load conversation", "error", err, "phone", phone)
		history = nil
	}
	// The inbound turn was just appended; it goes to the model as the new
	// message, not as history.
	if n := len(history); n > 0 && history[n-1].Role == models.RoleUser && history[n-1].Content == body {
		history = history[:n-1]
	}

	prompt := templates.SystemPrompt(h.identity, models.ParsePhase(string(lead.Phase)))
	reply, err := h.ai.GenerateReply(ctx, prompt, history, body)
	if err != nil {
		// The reply stays recorded and classified; the lead simply gets no
		// automated answer this time.
		slog.Error("ReplyHandler.HandleInbound: reply generation failed, not responding", "error", err, "phone", phone)
		return "", nil
	}
	if strings.TrimSpace(reply) == "" {
		slog.Warn("ReplyHandler.HandleInbound: empty reply generated, not responding", "phone", phone)
		return "", nil
	}

	if err := h.store.AppendConversationTurn(models.ConversationTurn{
		Phone:   phone,
		Role:    models.RoleAssistant,
		Content: reply,
	}); err != nil {
		slog.Error("ReplyHandler.HandleInbound: failed to log outbound turn", "error", err, "phone", phone)
	}

	h.scheduleReply(phone, reply)
	return "", nil
}

// handleOptOut records the terminal opt-out and returns the confirmation to
// send synchronously in the webhook response. Repeated STOPs re-confirm.
func (h *ReplyHandler) handleOptOut(phone string) (string, error) {
	slog.Info("ReplyHandler.handleOptOut: lead opted out", "phone", phone)
	if err := h.store.MarkOptedOut(phone); err != nil && !errors.Is(err, models.ErrLeadNotFound) {
		slog.Error("ReplyHandler.handleOptOut: failed to mark opt-out", "error", err, "phone", phone)
		return "", err
	}
	return templates.UnsubscribeConfirmation, nil
}

// scheduleReply queues the AI reply for delivery after the typing delay.
func (h *ReplyHandler) scheduleReply(phone, reply string) {
	delay := h.delayFor(reply)
	desc := fmt.Sprintf("delayed reply to %s", phone)
	id, err := h.timer.ScheduleAfter(delay, desc, func() {
		if err := h.msg.SendMessage(context.Background(), phone, reply); err != nil {
			slog.Error("ReplyHandler: delayed reply send failed", "error", err, "phone", phone)
		}
	})
	if err != nil {
		slog.Error("ReplyHandler.scheduleReply: failed to schedule reply", "error", err, "phone", phone)
		return
	}
	slog.Info("ReplyHandler.scheduleReply: reply scheduled", "phone", phone, "timer_id", id, "delay", delay)
}

// typingDelay computes a humanized delay for a reply: a randomized base plus
// one second per five words of reply text.
func typingDelay(reply string) time.Duration {
	base := util.RandomDurationBetween(typingDelayMin, typingDelayMax)
	words := len(strings.Fields(reply))
	return base + time.Duration(words/wordsPerExtraSecond)*time.Second
}

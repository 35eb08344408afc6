package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/preconak-maker/aman-reactivation-bot/internal/messaging"
	"github.com/preconak-maker/aman-reactivation-bot/internal/models"
)

// smsWebhookHandler receives Twilio's inbound SMS callback. Twilio posts
// form-encoded From and Body fields and expects a TwiML document back.
func (s *Server) smsWebhookHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		slog.Warn("Server.smsWebhookHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		slog.Warn("Server.smsWebhookHandler: failed to parse form", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	from := r.PostFormValue("From")
	body := strings.TrimSpace(r.PostFormValue("Body"))
	if from == "" {
		slog.Warn("Server.smsWebhookHandler: missing From field")
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	reply, err := s.replies.HandleInbound(r.Context(), from, body)
	if err != nil {
		slog.Error("Server.smsWebhookHandler: failed to handle inbound message", "error", err, "from", from)
		// Twilio retries on 5xx; an empty TwiML acknowledgment avoids
		// duplicate webhook deliveries for a reply we already logged about.
		writeTwiMLResponse(w, "")
		return
	}
	writeTwiMLResponse(w, reply)
}

// triggerHandler starts a campaign run in the background.
func (s *Server) triggerHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		slog.Warn("Server.triggerHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.runner.Running() {
		slog.Warn("Server.triggerHandler: campaign already running")
		writeJSONResponse(w, http.StatusConflict, models.Error("Campaign run already in progress"))
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), DefaultTriggerTimeout)
		defer cancel()
		sent, err := s.runner.RunOnce(ctx)
		if err != nil && !errors.Is(err, models.ErrRunInProgress) {
			slog.Error("Server.triggerHandler: campaign run failed", "error", err)
			return
		}
		slog.Info("Server.triggerHandler: campaign run finished", "sent", sent)
	}()

	slog.Info("Server.triggerHandler: campaign run triggered")
	writeJSONResponse(w, http.StatusAccepted, models.Triggered("Campaign run started"))
}

// pauseHandler toggles the campaign pause flag.
func (s *Server) pauseHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		slog.Warn("Server.pauseHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	paused := s.runner.TogglePause()
	msg := "Campaign resumed"
	if paused {
		msg = "Campaign paused"
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage(msg, map[string]bool{"paused": paused}))
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("ok", map[string]interface{}{
		"running": s.runner.Running(),
		"paused":  s.runner.Paused(),
	}))
}

// statsHandler returns the campaign dashboard summary.
func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		slog.Warn("Server.statsHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	byStatus, err := s.st.CountByStatus()
	if err != nil {
		slog.Error("Server.statsHandler: failed to count by status", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to fetch stats"))
		return
	}
	byTemp, err := s.st.CountByTemperature()
	if err != nil {
		slog.Error("Server.statsHandler: failed to count by temperature", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to fetch stats"))
		return
	}

	total := 0
	for _, n := range byStatus {
		total += n
	}
	summary := models.StatsSummary{
		TotalLeads:     total,
		ByStatus:       byStatus,
		ByTemperature:  byTemp,
		PendingSends:   len(s.timer.ListActive()),
		CampaignPaused: s.runner.Paused(),
	}
	writeJSONResponse(w, http.StatusOK, models.Success(summary))
}

// leadsHandler lists or searches leads on GET, registers a lead on POST.
func (s *Server) leadsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	switch r.Method {
	case http.MethodGet:
		s.listLeads(w, r)
	case http.MethodPost:
		s.createLead(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		slog.Warn("Server.leadsHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) listLeads(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	leads, err := s.st.SearchLeads(query)
	if err != nil {
		slog.Error("Server.listLeads: failed to search leads", "error", err, "query", query)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to fetch leads"))
		return
	}
	if leads == nil {
		leads = []models.Lead{}
	}
	writeJSONResponse(w, http.StatusOK, models.Success(leads))
}

func (s *Server) createLead(w http.ResponseWriter, r *http.Request) {
	var lead models.Lead
	if err := json.NewDecoder(r.Body).Decode(&lead); err != nil {
		slog.Warn("Server.createLead: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if strings.TrimSpace(lead.Phone) == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing required field: phone"))
		return
	}
	// Leads are keyed by canonical phone everywhere; inserting the raw form
	// would split one person across two rows once they reply.
	phone, err := messaging.CanonicalizePhone(lead.Phone)
	if err != nil {
		slog.Warn("Server.createLead: invalid phone", "error", err, "phone", lead.Phone)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid phone number"))
		return
	}
	lead.Phone = phone
	if lead.Phase != "" {
		lead.Phase = models.ParsePhase(string(lead.Phase))
	}

	inserted, err := s.st.AddLead(lead)
	if err != nil {
		slog.Error("Server.createLead: failed to add lead", "error", err, "phone", lead.Phone)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to add lead"))
		return
	}
	if !inserted {
		slog.Warn("Server.createLead: duplicate phone", "phone", lead.Phone)
		writeJSONResponse(w, http.StatusConflict, models.Error("Lead with this phone already exists"))
		return
	}
	slog.Info("Server.createLead: lead added", "phone", lead.Phone)
	writeJSONResponse(w, http.StatusCreated, models.SuccessWithMessage("Lead added", nil))
}

// conversationsHandler returns the conversation log for one phone number.
func (s *Server) conversationsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		slog.Warn("Server.conversationsHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	phone := r.URL.Query().Get("phone")
	if phone == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing required parameter: phone"))
		return
	}

	turns, err := s.st.GetConversation(phone)
	if err != nil {
		slog.Error("Server.conversationsHandler: failed to fetch conversation", "error", err, "phone", phone)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to fetch conversation"))
		return
	}
	if turns == nil {
		turns = []models.ConversationTurn{}
	}
	writeJSONResponse(w, http.StatusOK, models.Success(turns))
}

// Package models defines the core data structures for the reactivation bot.
//
// It includes the lead record, the conversation log entry, and the closed
// enums for campaign state, which are shared across modules.
package models

import (
	"errors"
	"strings"
	"time"
)

// SMSStatus describes where a lead sits in the outbound campaign.
type SMSStatus string

const (
	// SMSStatusPending marks a lead that has never been contacted.
	SMSStatusPending SMSStatus = "Pending"
	// SMSStatusSent marks a lead that received at least one outbound message.
	SMSStatusSent SMSStatus = "Sent"
	// SMSStatusOptedOut marks a lead that unsubscribed. Terminal: an opted-out
	// lead is never selected for outreach again.
	SMSStatusOptedOut SMSStatus = "Opted Out"
)

// Temperature is the classified interest level of a lead's reply.
type Temperature string

const (
	// TemperatureUnknown is the zero value before any reply was classified.
	TemperatureUnknown Temperature = ""
	TemperatureHot     Temperature = "Hot"
	TemperatureWarm    Temperature = "Warm"
	TemperatureCold    Temperature = "Cold"
)

// IsValidTemperature reports whether t is one of the three classified labels.
func IsValidTemperature(t Temperature) bool {
	switch t {
	case TemperatureHot, TemperatureWarm, TemperatureCold:
		return true
	default:
		return false
	}
}

// Phase is the recency tier of a lead's original intake. It drives the tone
// of the outreach templates and the AI system prompt.
type Phase string

const (
	// PhaseRecent covers leads from the last two years. Direct, confident tone.
	PhaseRecent Phase = "Phase 1"
	// PhaseWarm covers leads between two and five years old. Softer tone.
	PhaseWarm Phase = "Phase 2"
	// PhaseCold covers leads older than five years. Re-consent first.
	PhaseCold Phase = "Phase 3"
)

// ParsePhase maps the stored phase string to a closed Phase value.
// Unknown or empty values fall back to PhaseRecent, matching the source
// data where the column defaults to "Phase 1".
func ParsePhase(s string) Phase {
	switch strings.TrimSpace(s) {
	case string(PhaseWarm), "2":
		return PhaseWarm
	case string(PhaseCold), "3":
		return PhaseCold
	default:
		return PhaseRecent
	}
}

// Reply-received values stored on the lead record.
const (
	ReplyReceivedYes = "Yes"
	ReplyReceivedNo  = "No"
)

// Conversation roles for the conversation log.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// SentAtLayout is the timestamp format stored in the lead's SentAt column.
// Kept as text so a malformed value degrades to "excluded from follow-ups"
// rather than poisoning the whole lead list.
const SentAtLayout = "2006-01-02 15:04"

// Lead is one contact record, keyed by phone number.
type Lead struct {
	ID               int64       `json:"id"`
	FirstName        string      `json:"first_name"`
	LastName         string      `json:"last_name"`
	Phone            string      `json:"phone"`
	Email            string      `json:"email"`
	BuyerSeller      string      `json:"buyer_seller"`
	Phase            Phase       `json:"phase"`
	City             string      `json:"city"`
	PipelineStage    string      `json:"pipeline_stage"`
	Source           string      `json:"source"`
	Notes            string      `json:"notes"`
	SMSStatus        SMSStatus   `json:"sms_status"`
	SentAt           string      `json:"sms_sent_at"`
	MessageSent      string      `json:"sms_message_sent"`
	ReplyReceived    string      `json:"reply_received"`
	ReplyText        string      `json:"reply_text"`
	Temperature      Temperature `json:"lead_temperature"`
	FollowUpRequired string      `json:"follow_up_required"`
	AgentNotes       string      `json:"agent_notes"`
	CreatedAt        time.Time   `json:"created_at"`
}

// SentAtTime parses the lead's SentAt column. The second return value is
// false when the column is empty or unparseable.
func (l *Lead) SentAtTime() (time.Time, bool) {
	if strings.TrimSpace(l.SentAt) == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(SentAtLayout, l.SentAt)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// ConversationTurn is one entry in the append-only conversation log.
type ConversationTurn struct {
	Phone     string    `json:"phone"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// optOutKeywords is the fixed unsubscribe vocabulary. Matching is an exact,
// case-insensitive comparison of the whole message body.
var optOutKeywords = map[string]bool{
	"STOP":        true,
	"UNSUBSCRIBE": true,
	"CANCEL":      true,
	"QUIT":        true,
	"END":         true,
}

// IsOptOut reports whether an inbound message body is an unsubscribe request.
func IsOptOut(body string) bool {
	return optOutKeywords[strings.ToUpper(strings.TrimSpace(body))]
}

// Sentinel errors shared across modules.
var (
	// ErrLeadNotFound indicates an operation referenced a phone number with
	// no lead record.
	ErrLeadNotFound = errors.New("lead not found")
	// ErrDuplicatePhone indicates an insert collided with an existing lead.
	ErrDuplicatePhone = errors.New("lead with this phone already exists")
	// ErrEmptyPhone indicates a lead operation was attempted without a phone.
	ErrEmptyPhone = errors.New("phone cannot be empty")
	// ErrRunInProgress indicates a campaign run was requested while another
	// run holds the single-run guard.
	ErrRunInProgress = errors.New("campaign run already in progress")
	// ErrServiceStopped indicates the messaging service was already stopped.
	ErrServiceStopped = errors.New("messaging service is stopped")
)

// StatsSummary aggregates lead counts for the operator dashboard.
type StatsSummary struct {
	TotalLeads     int                 `json:"total_leads"`
	ByStatus       map[SMSStatus]int   `json:"by_status"`
	ByTemperature  map[Temperature]int `json:"by_temperature"`
	PendingSends   int                 `json:"pending_sends"`
	CampaignPaused bool                `json:"campaign_paused"`
}

// TimerInfo describes one scheduled delayed send.
type TimerInfo struct {
	ID          string    `json:"id"`
	ScheduledAt time.Time `json:"scheduled_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	Remaining   string    `json:"remaining"`
	Description string    `json:"description"`
}

// API response types for consistent JSON responses.

// APIStatus enumerates the status values used by the HTTP layer.
type APIStatus string

const (
	APIStatusOK        APIStatus = "ok"
	APIStatusError     APIStatus = "error"
	APIStatusTriggered APIStatus = "triggered"
)

// APIResponse is the standard envelope returned by every JSON endpoint.
type APIResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Result  interface{} `json:"result,omitempty"`
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Result: result}
}

// SuccessWithMessage creates a successful API response with a message.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Message: message, Result: result}
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return APIResponse{Status: string(APIStatusError), Message: message}
}

// Triggered creates a response for an asynchronously started campaign run.
func Triggered(message string) APIResponse {
	return APIResponse{Status: string(APIStatusTriggered), Message: message}
}

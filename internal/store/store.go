// Package store provides storage backends for the reactivation bot.
//
// It persists the lead table and the append-only conversation log, and
// exposes the narrow operation set the campaign runner and reply intake
// mutate the shared state through. SQLite and PostgreSQL backends are
// provided for deployment; the in-memory store backs tests and DSN-less
// development runs.
package store

import (
	"strings"
	"sync"
	"time"

	"github.com/preconak-maker/aman-reactivation-bot/internal/models"
)

// Store is the persistence contract shared by all backends. Every write is
// durable the moment the call returns; there is no write-behind buffering,
// so concurrent readers (dashboard, a mid-run campaign loop) always observe
// committed state.
type Store interface {
	// ListLeads returns all leads in stable insertion order.
	ListLeads() ([]models.Lead, error)
	// GetLead returns the lead for a phone, or models.ErrLeadNotFound.
	GetLead(phone string) (*models.Lead, error)
	// AddLead inserts a lead if the phone is not already present. Returns
	// whether an insert occurred; a duplicate phone is a no-op returning false.
	AddLead(lead models.Lead) (bool, error)
	// MarkSent records a successful outbound send for a lead.
	MarkSent(phone, messageBody string, sentAt time.Time) error
	// RecordReply records an inbound reply and its classified temperature.
	// It never alters the lead's SMS status.
	RecordReply(phone, replyText string, temperature models.Temperature) error
	// MarkOptedOut moves a lead to the terminal Opted Out status. Idempotent.
	MarkOptedOut(phone string) error
	// UpdateAgentNotes replaces the operator notes on a lead.
	UpdateAgentNotes(phone, notes string) error
	// AppendConversationTurn appends one turn to the conversation log.
	AppendConversationTurn(turn models.ConversationTurn) error
	// GetConversation returns the full conversation for a phone, oldest first.
	GetConversation(phone string) ([]models.ConversationTurn, error)
	// CountByStatus returns lead counts grouped by SMS status.
	CountByStatus() (map[models.SMSStatus]int, error)
	// CountByTemperature returns lead counts grouped by reply temperature.
	CountByTemperature() (map[models.Temperature]int, error)
	// SearchLeads returns leads whose name, phone, email or city contains the
	// query, case-insensitively. An empty query returns all leads.
	SearchLeads(query string) ([]models.Lead, error)
	// Close releases the backend's resources.
	Close() error
}

// Opts holds configuration for store backends.
type Opts struct {
	DSN string
}

// Option defines a configuration option for store backends.
type Option func(*Opts)

// WithSQLiteDSN configures the store with a SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithPostgresDSN configures the store with a PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// InMemoryStore keeps all state in process memory. It implements the same
// contract as the durable backends and serves as the storage double in tests.
type InMemoryStore struct {
	mu     sync.RWMutex
	leads  map[string]*models.Lead
	order  []string
	conv   map[string][]models.ConversationTurn
	nextID int64
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		leads: make(map[string]*models.Lead),
		conv:  make(map[string][]models.ConversationTurn),
	}
}

func (s *InMemoryStore) ListLeads() ([]models.Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	leads := make([]models.Lead, 0, len(s.order))
	for _, phone := range s.order {
		leads = append(leads, *s.leads[phone])
	}
	return leads, nil
}

func (s *InMemoryStore) GetLead(phone string) (*models.Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lead, ok := s.leads[phone]
	if !ok {
		return nil, models.ErrLeadNotFound
	}
	copied := *lead
	return &copied, nil
}

func (s *InMemoryStore) AddLead(lead models.Lead) (bool, error) {
	phone := strings.TrimSpace(lead.Phone)
	if phone == "" {
		return false, models.ErrEmptyPhone
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.leads[phone]; exists {
		return false, nil
	}
	s.nextID++
	lead.ID = s.nextID
	lead.Phone = phone
	if lead.SMSStatus == "" {
		lead.SMSStatus = models.SMSStatusPending
	}
	if lead.ReplyReceived == "" {
		lead.ReplyReceived = models.ReplyReceivedNo
	}
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = time.Now()
	}
	s.leads[phone] = &lead
	s.order = append(s.order, phone)
	return true, nil
}

func (s *InMemoryStore) MarkSent(phone, messageBody string, sentAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	lead, ok := s.leads[phone]
	if !ok {
		return models.ErrLeadNotFound
	}
	lead.SMSStatus = models.SMSStatusSent
	lead.SentAt = sentAt.Format(models.SentAtLayout)
	lead.MessageSent = messageBody
	return nil
}

func (s *InMemoryStore) RecordReply(phone, replyText string, temperature models.Temperature) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	lead, ok := s.leads[phone]
	if !ok {
		return models.ErrLeadNotFound
	}
	lead.ReplyReceived = models.ReplyReceivedYes
	lead.ReplyText = replyText
	lead.Temperature = temperature
	return nil
}

func (s *InMemoryStore) MarkOptedOut(phone string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	lead, ok := s.leads[phone]
	if !ok {
		return models.ErrLeadNotFound
	}
	lead.SMSStatus = models.SMSStatusOptedOut
	lead.FollowUpRequired = "No"
	return nil
}

func (s *InMemoryStore) UpdateAgentNotes(phone, notes string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	lead, ok := s.leads[phone]
	if !ok {
		return models.ErrLeadNotFound
	}
	lead.AgentNotes = notes
	return nil
}

func (s *InMemoryStore) AppendConversationTurn(turn models.ConversationTurn) error {
	if strings.TrimSpace(turn.Phone) == "" {
		return models.ErrEmptyPhone
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conv[turn.Phone] = append(s.conv[turn.Phone], turn)
	return nil
}

func (s *InMemoryStore) GetConversation(phone string) ([]models.ConversationTurn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	turns := s.conv[phone]
	out := make([]models.ConversationTurn, len(turns))
	copy(out, turns)
	return out, nil
}

func (s *InMemoryStore) CountByStatus() (map[models.SMSStatus]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[models.SMSStatus]int)
	for _, lead := range s.leads {
		counts[lead.SMSStatus]++
	}
	return counts, nil
}

func (s *InMemoryStore) CountByTemperature() (map[models.Temperature]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[models.Temperature]int)
	for _, lead := range s.leads {
		if lead.Temperature != models.TemperatureUnknown {
			counts[lead.Temperature]++
		}
	}
	return counts, nil
}

func (s *InMemoryStore) SearchLeads(query string) ([]models.Lead, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	s.mu.RLock()
	defer s.mu.RUnlock()
	var leads []models.Lead
	for _, phone := range s.order {
		lead := s.leads[phone]
		if q == "" || leadMatches(lead, q) {
			leads = append(leads, *lead)
		}
	}
	return leads, nil
}

func leadMatches(lead *models.Lead, q string) bool {
	for _, field := range []string{lead.FirstName, lead.LastName, lead.Phone, lead.Email, lead.City} {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	return false
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error { return nil }

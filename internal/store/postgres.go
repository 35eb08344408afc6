// Package store provides storage backends for the reactivation bot.
//
// This file implements the PostgreSQL-backed store for leads and conversations.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "embed"

	"github.com/preconak-maker/aman-reactivation-bot/internal/models"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants.
const (
	// DefaultMaxOpenConns is the maximum number of open connections.
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the maximum number of idle connections in the pool.
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the maximum amount of time a connection may be reused.
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running Postgres migrations")
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) ListLeads() ([]models.Lead, error) {
	rows, err := s.db.Query(`SELECT ` + leadColumns + ` FROM leads ORDER BY id`)
	if err != nil {
		slog.Error("PostgresStore ListLeads query failed", "error", err)
		return nil, fmt.Errorf("failed to query leads: %w", err)
	}
	leads, err := collectLeads(rows)
	if err != nil {
		slog.Error("PostgresStore ListLeads scan failed", "error", err)
		return nil, err
	}
	slog.Debug("PostgresStore ListLeads succeeded", "count", len(leads))
	return leads, nil
}

func (s *PostgresStore) GetLead(phone string) (*models.Lead, error) {
	row := s.db.QueryRow(`SELECT `+leadColumns+` FROM leads WHERE phone = $1`, phone)
	lead, err := scanLead(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrLeadNotFound
		}
		slog.Error("PostgresStore GetLead failed", "error", err, "phone", phone)
		return nil, err
	}
	return &lead, nil
}

// AddLead inserts a lead with ON CONFLICT DO NOTHING so concurrent inserts
// of the same phone resolve to a single row.
func (s *PostgresStore) AddLead(lead models.Lead) (bool, error) {
	phone := strings.TrimSpace(lead.Phone)
	if phone == "" {
		return false, models.ErrEmptyPhone
	}
	if lead.SMSStatus == "" {
		lead.SMSStatus = models.SMSStatusPending
	}
	if lead.ReplyReceived == "" {
		lead.ReplyReceived = models.ReplyReceivedNo
	}
	var id int64
	err := s.db.QueryRow(`
		INSERT INTO leads
			(first_name, last_name, phone, email, buyer_seller, phase, city,
			 pipeline_stage, source, notes, sms_status, reply_received)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (phone) DO NOTHING
		RETURNING id`,
		lead.FirstName, lead.LastName, phone, lead.Email, lead.BuyerSeller,
		string(lead.Phase), lead.City, lead.PipelineStage, lead.Source,
		lead.Notes, string(lead.SMSStatus), lead.ReplyReceived).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		slog.Debug("PostgresStore AddLead skipped duplicate", "phone", phone)
		return false, nil
	}
	if err != nil {
		slog.Error("PostgresStore AddLead failed", "error", err, "phone", phone)
		return false, fmt.Errorf("failed to insert lead %s: %w", phone, err)
	}
	slog.Debug("PostgresStore AddLead succeeded", "phone", phone, "id", id)
	return true, nil
}

func (s *PostgresStore) MarkSent(phone, messageBody string, sentAt time.Time) error {
	res, err := s.db.Exec(`
		UPDATE leads SET sms_status = $1, sms_sent_at = $2, sms_message_sent = $3
		WHERE phone = $4`,
		string(models.SMSStatusSent), sentAt.Format(models.SentAtLayout), messageBody, phone)
	if err != nil {
		slog.Error("PostgresStore MarkSent failed", "error", err, "phone", phone)
		return fmt.Errorf("failed to mark lead %s sent: %w", phone, err)
	}
	return requireRow(res, phone)
}

func (s *PostgresStore) RecordReply(phone, replyText string, temperature models.Temperature) error {
	res, err := s.db.Exec(`
		UPDATE leads SET reply_received = $1, reply_text = $2, lead_temperature = $3
		WHERE phone = $4`,
		models.ReplyReceivedYes, replyText, string(temperature), phone)
	if err != nil {
		slog.Error("PostgresStore RecordReply failed", "error", err, "phone", phone)
		return fmt.Errorf("failed to record reply for %s: %w", phone, err)
	}
	return requireRow(res, phone)
}

func (s *PostgresStore) MarkOptedOut(phone string) error {
	res, err := s.db.Exec(`
		UPDATE leads SET sms_status = $1, follow_up_required = 'No'
		WHERE phone = $2`,
		string(models.SMSStatusOptedOut), phone)
	if err != nil {
		slog.Error("PostgresStore MarkOptedOut failed", "error", err, "phone", phone)
		return fmt.Errorf("failed to opt out %s: %w", phone, err)
	}
	return requireRow(res, phone)
}

func (s *PostgresStore) UpdateAgentNotes(phone, notes string) error {
	res, err := s.db.Exec(`UPDATE leads SET agent_notes = $1 WHERE phone = $2`, notes, phone)
	if err != nil {
		slog.Error("PostgresStore UpdateAgentNotes failed", "error", err, "phone", phone)
		return fmt.Errorf("failed to update notes for %s: %w", phone, err)
	}
	return requireRow(res, phone)
}

func (s *PostgresStore) AppendConversationTurn(turn models.ConversationTurn) error {
	if strings.TrimSpace(turn.Phone) == "" {
		return models.ErrEmptyPhone
	}
	createdAt := turn.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.db.Exec(`
		INSERT INTO conversations (phone, role, content, created_at)
		VALUES ($1, $2, $3, $4)`,
		turn.Phone, turn.Role, turn.Content, createdAt)
	if err != nil {
		slog.Error("PostgresStore AppendConversationTurn failed", "error", err, "phone", turn.Phone)
		return fmt.Errorf("failed to append conversation turn for %s: %w", turn.Phone, err)
	}
	return nil
}

func (s *PostgresStore) GetConversation(phone string) ([]models.ConversationTurn, error) {
	rows, err := s.db.Query(`
		SELECT phone, role, content, created_at FROM conversations
		WHERE phone = $1 ORDER BY id`, phone)
	if err != nil {
		slog.Error("PostgresStore GetConversation query failed", "error", err, "phone", phone)
		return nil, fmt.Errorf("failed to query conversation for %s: %w", phone, err)
	}
	return collectTurns(rows)
}

func (s *PostgresStore) CountByStatus() (map[models.SMSStatus]int, error) {
	rows, err := s.db.Query(`SELECT sms_status, COUNT(*) FROM leads GROUP BY sms_status`)
	if err != nil {
		slog.Error("PostgresStore CountByStatus query failed", "error", err)
		return nil, fmt.Errorf("failed to count leads by status: %w", err)
	}
	return collectStatusCounts(rows)
}

func (s *PostgresStore) CountByTemperature() (map[models.Temperature]int, error) {
	rows, err := s.db.Query(`
		SELECT lead_temperature, COUNT(*) FROM leads
		WHERE lead_temperature != '' GROUP BY lead_temperature`)
	if err != nil {
		slog.Error("PostgresStore CountByTemperature query failed", "error", err)
		return nil, fmt.Errorf("failed to count leads by temperature: %w", err)
	}
	return collectTemperatureCounts(rows)
}

func (s *PostgresStore) SearchLeads(query string) ([]models.Lead, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return s.ListLeads()
	}
	pattern := "%" + q + "%"
	rows, err := s.db.Query(`
		SELECT `+leadColumns+` FROM leads
		WHERE first_name ILIKE $1 OR last_name ILIKE $1
		   OR phone LIKE $1 OR email ILIKE $1 OR city ILIKE $1
		ORDER BY id`, pattern)
	if err != nil {
		slog.Error("PostgresStore SearchLeads query failed", "error", err)
		return nil, fmt.Errorf("failed to search leads: %w", err)
	}
	return collectLeads(rows)
}

// Close closes the PostgreSQL database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing PostgreSQL database connection")
	return s.db.Close()
}

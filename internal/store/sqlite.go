// Package store provides storage backends for the reactivation bot.
//
// This file implements the SQLite-backed store for leads and conversations.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "embed"

	"github.com/preconak-maker/aman-reactivation-bot/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions defines the permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN is a file path to the SQLite database file; the parent directory
// is created if it does not exist.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	// The lead store is mutated concurrently by the campaign runner and the
	// webhook path; a single connection sidesteps SQLITE_BUSY contention.
	db.SetMaxOpenConns(1)

	slog.Debug("Running SQLite migrations")
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) ListLeads() ([]models.Lead, error) {
	rows, err := s.db.Query(`SELECT ` + leadColumns + ` FROM leads ORDER BY id`)
	if err != nil {
		slog.Error("SQLiteStore ListLeads query failed", "error", err)
		return nil, fmt.Errorf("failed to query leads: %w", err)
	}
	leads, err := collectLeads(rows)
	if err != nil {
		slog.Error("SQLiteStore ListLeads scan failed", "error", err)
		return nil, err
	}
	slog.Debug("SQLiteStore ListLeads succeeded", "count", len(leads))
	return leads, nil
}

func (s *SQLiteStore) GetLead(phone string) (*models.Lead, error) {
	row := s.db.QueryRow(`SELECT `+leadColumns+` FROM leads WHERE phone = ?`, phone)
	lead, err := scanLead(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrLeadNotFound
		}
		slog.Error("SQLiteStore GetLead failed", "error", err, "phone", phone)
		return nil, err
	}
	return &lead, nil
}

// AddLead inserts a lead unless the phone already exists. The UNIQUE
// constraint on phone makes concurrent duplicate inserts a single winner.
func (s *SQLiteStore) AddLead(lead models.Lead) (bool, error) {
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
	res, err := s.db.Exec(`
		INSERT OR IGNORE INTO leads
			(first_name, last_name, phone, email, buyer_seller, phase, city,
			 pipeline_stage, source, notes, sms_status, reply_received)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		lead.FirstName, lead.LastName, phone, lead.Email, lead.BuyerSeller,
		string(lead.Phase), lead.City, lead.PipelineStage, lead.Source,
		lead.Notes, string(lead.SMSStatus), lead.ReplyReceived)
	if err != nil {
		slog.Error("SQLiteStore AddLead failed", "error", err, "phone", phone)
		return false, fmt.Errorf("failed to insert lead %s: %w", phone, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read insert result for %s: %w", phone, err)
	}
	slog.Debug("SQLiteStore AddLead finished", "phone", phone, "inserted", n > 0)
	return n > 0, nil
}

func (s *SQLiteStore) MarkSent(phone, messageBody string, sentAt time.Time) error {
	res, err := s.db.Exec(`
		UPDATE leads SET sms_status = ?, sms_sent_at = ?, sms_message_sent = ?
		WHERE phone = ?`,
		string(models.SMSStatusSent), sentAt.Format(models.SentAtLayout), messageBody, phone)
	if err != nil {
		slog.Error("SQLiteStore MarkSent failed", "error", err, "phone", phone)
		return fmt.Errorf("failed to mark lead %s sent: %w", phone, err)
	}
	return requireRow(res, phone)
}

func (s *SQLiteStore) RecordReply(phone, replyText string, temperature models.Temperature) error {
	res, err := s.db.Exec(`
		UPDATE leads SET reply_received = ?, reply_text = ?, lead_temperature = ?
		WHERE phone = ?`,
		models.ReplyReceivedYes, replyText, string(temperature), phone)
	if err != nil {
		slog.Error("SQLiteStore RecordReply failed", "error", err, "phone", phone)
		return fmt.Errorf("failed to record reply for %s: %w", phone, err)
	}
	return requireRow(res, phone)
}

func (s *SQLiteStore) MarkOptedOut(phone string) error {
	res, err := s.db.Exec(`
		UPDATE leads SET sms_status = ?, follow_up_required = 'No'
		WHERE phone = ?`,
		string(models.SMSStatusOptedOut), phone)
	if err != nil {
		slog.Error("SQLiteStore MarkOptedOut failed", "error", err, "phone", phone)
		return fmt.Errorf("failed to opt out %s: %w", phone, err)
	}
	return requireRow(res, phone)
}

func (s *SQLiteStore) UpdateAgentNotes(phone, notes string) error {
	res, err := s.db.Exec(`UPDATE leads SET agent_notes = ? WHERE phone = ?`, notes, phone)
	if err != nil {
		slog.Error("SQLiteStore UpdateAgentNotes failed", "error", err, "phone", phone)
		return fmt.Errorf("failed to update notes for %s: %w", phone, err)
	}
	return requireRow(res, phone)
}

func (s *SQLiteStore) AppendConversationTurn(turn models.ConversationTurn) error {
	if strings.TrimSpace(turn.Phone) == "" {
		return models.ErrEmptyPhone
	}
	createdAt := turn.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.db.Exec(`
		INSERT INTO conversations (phone, role, content, created_at)
		VALUES (?, ?, ?, ?)`,
		turn.Phone, turn.Role, turn.Content, createdAt)
	if err != nil {
		slog.Error("SQLiteStore AppendConversationTurn failed", "error", err, "phone", turn.Phone)
		return fmt.Errorf("failed to append conversation turn for %s: %w", turn.Phone, err)
	}
	return nil
}

func (s *SQLiteStore) GetConversation(phone string) ([]models.ConversationTurn, error) {
	rows, err := s.db.Query(`
		SELECT phone, role, content, created_at FROM conversations
		WHERE phone = ? ORDER BY id`, phone)
	if err != nil {
		slog.Error("SQLiteStore GetConversation query failed", "error", err, "phone", phone)
		return nil, fmt.Errorf("failed to query conversation for %s: %w", phone, err)
	}
	return collectTurns(rows)
}

func (s *SQLiteStore) CountByStatus() (map[models.SMSStatus]int, error) {
	rows, err := s.db.Query(`SELECT sms_status, COUNT(*) FROM leads GROUP BY sms_status`)
	if err != nil {
		slog.Error("SQLiteStore CountByStatus query failed", "error", err)
		return nil, fmt.Errorf("failed to count leads by status: %w", err)
	}
	return collectStatusCounts(rows)
}

func (s *SQLiteStore) CountByTemperature() (map[models.Temperature]int, error) {
	rows, err := s.db.Query(`
		SELECT lead_temperature, COUNT(*) FROM leads
		WHERE lead_temperature != '' GROUP BY lead_temperature`)
	if err != nil {
		slog.Error("SQLiteStore CountByTemperature query failed", "error", err)
		return nil, fmt.Errorf("failed to count leads by temperature: %w", err)
	}
	return collectTemperatureCounts(rows)
}

func (s *SQLiteStore) SearchLeads(query string) ([]models.Lead, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return s.ListLeads()
	}
	pattern := "%" + strings.ToLower(q) + "%"
	rows, err := s.db.Query(`
		SELECT `+leadColumns+` FROM leads
		WHERE lower(first_name) LIKE ? OR lower(last_name) LIKE ?
		   OR phone LIKE ? OR lower(email) LIKE ? OR lower(city) LIKE ?
		ORDER BY id`,
		pattern, pattern, pattern, pattern, pattern)
	if err != nil {
		slog.Error("SQLiteStore SearchLeads query failed", "error", err)
		return nil, fmt.Errorf("failed to search leads: %w", err)
	}
	return collectLeads(rows)
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	return s.db.Close()
}

// requireRow converts a zero-row UPDATE into ErrLeadNotFound.
func requireRow(res sql.Result, phone string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result for %s: %w", phone, err)
	}
	if n == 0 {
		return models.ErrLeadNotFound
	}
	return nil
}

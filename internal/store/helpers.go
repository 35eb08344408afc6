package store

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/preconak-maker/aman-reactivation-bot/internal/models"
)

// DetectDSNType reports whether a DSN refers to a PostgreSQL server or a
// SQLite file path. Postgres DSNs use the postgres:// scheme or key=value
// connection strings; everything else is treated as a file path.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}

// leadColumns is the column list shared by the SQL backends. Order must match
// scanLead / scanLeadRow.
const leadColumns = `id, first_name, last_name, phone, email, buyer_seller, phase,
	city, pipeline_stage, source, notes, sms_status, sms_sent_at,
	sms_message_sent, reply_received, reply_text, lead_temperature,
	follow_up_required, agent_notes, created_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanLead scans one lead row from either SQL backend.
func scanLead(row rowScanner) (models.Lead, error) {
	var l models.Lead
	var phase, status, temperature string
	err := row.Scan(
		&l.ID, &l.FirstName, &l.LastName, &l.Phone, &l.Email, &l.BuyerSeller,
		&phase, &l.City, &l.PipelineStage, &l.Source, &l.Notes, &status,
		&l.SentAt, &l.MessageSent, &l.ReplyReceived, &l.ReplyText,
		&temperature, &l.FollowUpRequired, &l.AgentNotes, &l.CreatedAt,
	)
	if err != nil {
		return l, fmt.Errorf("scan lead failed: %w", err)
	}
	l.Phase = models.Phase(phase)
	l.SMSStatus = models.SMSStatus(status)
	l.Temperature = models.Temperature(temperature)
	return l, nil
}

// collectLeads drains a lead query result set.
func collectLeads(rows *sql.Rows) ([]models.Lead, error) {
	defer rows.Close()
	var leads []models.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate lead rows: %w", err)
	}
	return leads, nil
}

// collectStatusCounts drains a (status, count) result set.
func collectStatusCounts(rows *sql.Rows) (map[models.SMSStatus]int, error) {
	defer rows.Close()
	counts := make(map[models.SMSStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan status count failed: %w", err)
		}
		counts[models.SMSStatus(status)] = n
	}
	return counts, rows.Err()
}

// collectTemperatureCounts drains a (temperature, count) result set.
func collectTemperatureCounts(rows *sql.Rows) (map[models.Temperature]int, error) {
	defer rows.Close()
	counts := make(map[models.Temperature]int)
	for rows.Next() {
		var temp string
		var n int
		if err := rows.Scan(&temp, &n); err != nil {
			return nil, fmt.Errorf("scan temperature count failed: %w", err)
		}
		counts[models.Temperature(temp)] = n
	}
	return counts, rows.Err()
}

// collectTurns drains a conversation query result set.
func collectTurns(rows *sql.Rows) ([]models.ConversationTurn, error) {
	defer rows.Close()
	var turns []models.ConversationTurn
	for rows.Next() {
		var t models.ConversationTurn
		if err := rows.Scan(&t.Phone, &t.Role, &t.Content, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan conversation turn failed: %w", err)
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate conversation rows: %w", err)
	}
	return turns, nil
}

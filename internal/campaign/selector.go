// Package campaign implements the outreach engine: lead eligibility
// selection, the throttled campaign runner, and the daily trigger loop.
package campaign

import (
	"time"

	"github.com/preconak-maker/aman-reactivation-bot/internal/models"
)

// SelectPending returns the leads eligible for an initial outreach: those
// never contacted. Input order is preserved; the function only filters.
func SelectPending(leads []models.Lead) []models.Lead {
	var out []models.Lead
	for _, lead := range leads {
		if lead.SMSStatus == models.SMSStatusPending {
			out = append(out, lead)
		}
	}
	return out
}

// SelectFollowups returns the leads eligible for a follow-up nudge: sent at
// least thresholdDays whole days ago and never replied. Leads whose sent
// timestamp is absent or unparseable are excluded rather than treated as
// overdue. Input order is preserved.
func SelectFollowups(leads []models.Lead, thresholdDays int, now time.Time) []models.Lead {
	var out []models.Lead
	for _, lead := range leads {
		if lead.SMSStatus != models.SMSStatusSent {
			continue
		}
		if lead.ReplyReceived != models.ReplyReceivedNo {
			continue
		}
		sentAt, ok := lead.SentAtTime()
		if !ok {
			continue
		}
		if wholeDays(now.Sub(sentAt)) >= thresholdDays {
			out = append(out, lead)
		}
	}
	return out
}

// wholeDays truncates an elapsed duration to complete 24-hour days.
func wholeDays(d time.Duration) int {
	if d < 0 {
		return 0
	}
	return int(d / (24 * time.Hour))
}

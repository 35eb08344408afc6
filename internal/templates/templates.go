// Package templates renders the outreach message copy and the AI system
// prompts for each lead phase.
//
// Every template is looked up through a single phase table so the tone rules
// for a recency tier live in one place instead of being branched on strings
// at each call site.
package templates

import (
	"fmt"
	"strings"

	"github.com/preconak-maker/aman-reactivation-bot/internal/models"
)

// OptOutLine is appended to campaign messages to satisfy carrier rules.
const OptOutLine = "Reply STOP to opt out."

// UnsubscribeConfirmation is the fixed reply sent when a lead opts out.
const UnsubscribeConfirmation = "You've been unsubscribed. You won't receive any more messages from us. Take care!"

// Identity is the human persona the bot writes as.
type Identity struct {
	AgentName string
	TeamName  string
	Brokerage string
}

// DefaultIdentity returns the persona used when nothing is configured.
func DefaultIdentity() Identity {
	return Identity{
		AgentName: "Sarah",
		TeamName:  "Aman's team",
		Brokerage: "Royal LePage",
	}
}

// phaseCopy holds the per-phase template set: the initial outreach message,
// the follow-up message, and the phase-specific system prompt addendum.
type phaseCopy struct {
	initial        func(id Identity, firstName, buyerSeller, cityLine string) string
	followUp       func(id Identity, firstName string) string
	promptAddendum string
}

var phaseTable = map[models.Phase]phaseCopy{
	models.PhaseRecent: {
		initial:        recentInitial,
		followUp:       recentFollowUp,
		promptAddendum: recentAddendum,
	},
	models.PhaseWarm: {
		initial:        warmInitial,
		followUp:       warmFollowUp,
		promptAddendum: warmAddendum,
	},
	models.PhaseCold: {
		initial:        coldInitial,
		followUp:       coldFollowUp,
		promptAddendum: coldAddendum,
	},
}

// lookup resolves the template set for a phase, defaulting to the recent tier.
func lookup(phase models.Phase) phaseCopy {
	if c, ok := phaseTable[phase]; ok {
		return c
	}
	return phaseTable[models.PhaseRecent]
}

// Initial renders the first outreach message for a lead, personalized by
// name, buyer/seller type, and favorite city.
func Initial(id Identity, phase models.Phase, firstName, buyerSeller, favoriteCity string) string {
	return lookup(phase).initial(id, firstName, buyerSeller, cityLine(favoriteCity))
}

// FollowUp renders the nudge sent when a lead has not replied to the initial
// message after the configured threshold.
func FollowUp(id Identity, phase models.Phase, firstName string) string {
	return lookup(phase).followUp(id, firstName)
}

// Broadcast wraps an operator-written message in a phase-appropriate greeting.
func Broadcast(id Identity, phase models.Phase, firstName, custom string) string {
	greeting := fmt.Sprintf("Hi %s! ", firstName)
	if phase != models.PhaseRecent {
		greeting = fmt.Sprintf("Hi %s, hope you're well! ", firstName)
	}
	return greeting + custom + " " + OptOutLine
}

// SystemPrompt builds the AI system prompt for conversational replies to a
// lead in the given phase.
func SystemPrompt(id Identity, phase models.Phase) string {
	return basePrompt(id) + lookup(phase).promptAddendum
}

// cityLine renders the " in <city>" fragment, empty when no city is known.
func cityLine(favoriteCity string) string {
	city := strings.TrimSpace(favoriteCity)
	if city == "" {
		return ""
	}
	return " in " + city
}

func isSellerSide(buyerSeller string) bool {
	switch strings.TrimSpace(buyerSeller) {
	case "Seller", "Both":
		return true
	default:
		return false
	}
}

// Phase 1 (last 2 years): direct, confident.

func recentInitial(id Identity, firstName, buyerSeller, cityLine string) string {
	switch {
	case strings.TrimSpace(buyerSeller) == "Buyer":
		return fmt.Sprintf(
			"Hi %s! This is %s from %s at %s. "+
				"We connected a while back and wanted to reach out personally. "+
				"Are you still thinking about buying a home%s, or has your situation changed? "+
				"No pressure at all, just checking in! %s",
			firstName, id.AgentName, id.TeamName, id.Brokerage, cityLine, OptOutLine)
	case isSellerSide(buyerSeller):
		return fmt.Sprintf(
			"Hi %s, %s here from %s at %s. "+
				"It's been a while since we connected. Are you still thinking about making a move%s? "+
				"The market right now has some interesting opportunities. "+
				"Happy to share what we're seeing, no obligation at all. %s",
			firstName, id.AgentName, id.TeamName, id.Brokerage, cityLine, OptOutLine)
	default:
		return fmt.Sprintf(
			"Hi %s! This is %s from %s at %s. "+
				"We connected a while back and just wanted to check in. "+
				"Are you still thinking about real estate%s? "+
				"No pressure, just here to help! %s",
			firstName, id.AgentName, id.TeamName, id.Brokerage, cityLine, OptOutLine)
	}
}

func recentFollowUp(id Identity, firstName string) string {
	return fmt.Sprintf(
		"Hi %s, just circling back! %s from %s. "+
			"Did you get a chance to see my last message? "+
			"Happy to share what's happening in the market, completely free with no commitment. "+
			"Just say YES if you'd like to chat! %s",
		firstName, id.AgentName, id.TeamName, OptOutLine)
}

// Phase 2 (2-5 years): softer, warmer.

func warmInitial(id Identity, firstName, buyerSeller, cityLine string) string {
	switch {
	case strings.TrimSpace(buyerSeller) == "Buyer":
		return fmt.Sprintf(
			"Hi %s! Hope you're doing well. "+
				"This is %s from %s at %s. We crossed paths a few years back. "+
				"I know life gets busy but I wanted to reach out. "+
				"Has buying a home%s ever come back on your radar? "+
				"Happy to chat anytime, completely free. %s",
			firstName, id.AgentName, id.TeamName, id.Brokerage, cityLine, OptOutLine)
	case isSellerSide(buyerSeller):
		return fmt.Sprintf(
			"Hi %s, hope things are going well! "+
				"%s here from %s at %s. "+
				"We connected a few years ago and I just wanted to check in. "+
				"Has making a move%s ever come back on your mind? "+
				"The market has changed quite a bit since we last spoke. "+
				"No pressure at all, just here if you ever want to talk! %s",
			firstName, id.AgentName, id.TeamName, id.Brokerage, cityLine, OptOutLine)
	default:
		return fmt.Sprintf(
			"Hi %s! Hope you're well. "+
				"This is %s from %s at %s. "+
				"We crossed paths a few years back around real estate. "+
				"Just wanted to check in and see how things are going. "+
				"Still thinking about buying or selling? Happy to help anytime! %s",
			firstName, id.AgentName, id.TeamName, id.Brokerage, OptOutLine)
	}
}

func warmFollowUp(id Identity, firstName string) string {
	return fmt.Sprintf(
		"Hi %s, just following up on my message from a few days ago! "+
			"%s from %s. "+
			"No pressure at all, just wanted to make sure you got it. "+
			"Would love to reconnect whenever you're ready. %s",
		firstName, id.AgentName, id.TeamName, OptOutLine)
}

// Phase 3 (5+ years): re-consent, very soft. The buyer/seller split does
// not apply here; everyone gets the records-update framing.

func coldInitial(id Identity, firstName, _, _ string) string {
	return fmt.Sprintf(
		"Hi %s! This is %s from %s at %s. "+
			"We're updating our records and wanted to reconnect with some of our older contacts. "+
			"Are you still interested in real estate at all, or would you prefer we don't reach out? "+
			"Either answer is totally fine. Just reply YES to stay in touch or STOP to unsubscribe. %s",
		firstName, id.AgentName, id.TeamName, id.Brokerage, OptOutLine)
}

func coldFollowUp(id Identity, firstName string) string {
	return fmt.Sprintf(
		"Hi %s, just circling back! %s from %s. "+
			"Did you get a chance to see my last message? "+
			"Just reply YES to stay in touch or STOP to unsubscribe. "+
			"Either way is perfectly fine!",
		firstName, id.AgentName, id.TeamName)
}

// AI system prompts.

func basePrompt(id Identity) string {
	return fmt.Sprintf(`You are %s, a friendly real estate assistant from %s at %s in Canada.
Your goal is to qualify leads and book a free 15-20 minute meeting or call with Aman Khattra.

Key rules:
- Always be warm, low-pressure, and helpful
- Never pushy or salesy
- Always offer the meeting as FREE with NO obligation, nothing to sign
- Keep SMS replies SHORT (under 160 characters when possible)
- Always end with a question to keep the conversation going
- If they say STOP or unsubscribe, immediately confirm opt-out only

Objection handling:
- "I have another agent": offer to send exclusive listings (bank sales, distress sales) as a free supplement
- "Just send me listings": explain the 70-criteria form saves them hours, ask for a 15 min meeting
- "Too busy": position the 15-min meeting as a time-SAVER
- "Not ready yet": ask when would be a good time to follow up
- "I'll get back to you": set a tentative time, easy to reschedule
- "Need to check with spouse": set a tentative time, can always change it

When they agree to meet, say: "Perfect! Aman will reach out directly to confirm a time. What's best, days or evenings?"
`, id.AgentName, id.TeamName, id.Brokerage)
}

const recentAddendum = `
IMPORTANT: this is a recent lead (last 2 years):
- They're recent, so be confident and direct
- Goal is to book the 15-20 minute free meeting quickly
- Tone: friendly, professional, like a knowledgeable friend in real estate
`

const warmAddendum = `
IMPORTANT: this is an older lead (2-5 years):
- Be extra warm and patient, they haven't heard from us in a while
- Never assume they're still looking, ask gently
- If they're not ready, ask if it's okay to follow up in a few months
- Tone: like reconnecting with an old acquaintance, not a sales call
`

const coldAddendum = `
IMPORTANT: this is a cold lead (5+ years):
- Primary goal is RE-CONSENT, get them to say YES to staying in touch
- Do NOT push for a meeting on first reply, just get permission first
- Be very soft, respectful, and understanding
- If they say YES, then gently introduce the idea of a free chat
- Tone: like reconnecting with someone you haven't spoken to in years
`

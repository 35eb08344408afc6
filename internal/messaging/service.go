// Package messaging provides the message delivery abstraction and the
// inbound reply handling for the reactivation bot.
package messaging

import (
	"context"
	"fmt"
	"regexp"
)

// Service defines a pluggable message delivery abstraction.
type Service interface {
	// ValidateAndCanonicalizeRecipient validates and canonicalizes a recipient
	// phone number. Returns the canonical form and an error if validation fails.
	ValidateAndCanonicalizeRecipient(recipient string) (string, error)

	// SendMessage sends a message to a recipient. One attempt per call.
	SendMessage(ctx context.Context, to string, body string) error

	// Stop stops the service; subsequent sends fail with ErrServiceStopped.
	Stop() error
}

// phoneNumberRegex strips everything that is not a digit.
var phoneNumberRegex = regexp.MustCompile(`[^0-9]`)

// CanonicalizePhone reduces a phone number to canonical E.164-ish form:
// a leading "+" followed by digits only. Campaign sends and webhook lookups
// both go through this so the same lead is always keyed identically.
func CanonicalizePhone(recipient string) (string, error) {
	if recipient == "" {
		return "", fmt.Errorf("recipient cannot be empty")
	}
	digits := phoneNumberRegex.ReplaceAllString(recipient, "")
	if digits == "" {
		return "", fmt.Errorf("invalid phone number: no digits found in recipient %q", recipient)
	}
	if len(digits) < 6 {
		return "", fmt.Errorf("invalid phone number: %q is too short (minimum 6 digits required)", digits)
	}
	return "+" + digits, nil
}

// Package api exposes the HTTP surface of the reactivation bot: the Twilio
// inbound webhook and the operator endpoints for triggering, pausing and
// inspecting the campaign.
package api

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/preconak-maker/aman-reactivation-bot/internal/models"
)

// Pre-marshaled fallback so an encoding failure still yields valid JSON.
var fallbackErrorResponse []byte

func init() {
	var err error
	fallbackErrorResponse, err = json.Marshal(models.Error("Internal server error"))
	if err != nil {
		panic(fmt.Sprintf("Failed to marshal fallback error response at startup: %v", err))
	}
}

// writeJSONResponse marshals first so headers are only written once the
// payload is known good.
func writeJSONResponse(w http.ResponseWriter, statusCode int, response interface{}) {
	jsonData, err := json.Marshal(response)
	if err != nil {
		slog.Error("Server.writeJSONResponse: failed to marshal JSON response", "error", err)
		jsonData = fallbackErrorResponse
		statusCode = http.StatusInternalServerError
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if _, writeErr := w.Write(jsonData); writeErr != nil {
		slog.Error("Server.writeJSONResponse: failed to write JSON response", "error", writeErr)
	}
}

// writeTwiMLResponse writes a Twilio messaging response document. An empty
// message yields an empty <Response/>, which tells Twilio to reply with
// nothing.
func writeTwiMLResponse(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)

	body := "<?xml version=\"1.0\" encoding=\"UTF-8\"?><Response></Response>"
	if message != "" {
		var escaped bytes.Buffer
		if err := xml.EscapeText(&escaped, []byte(message)); err != nil {
			slog.Error("Server.writeTwiMLResponse: failed to escape message", "error", err)
			escaped.Reset()
		}
		body = fmt.Sprintf("<?xml version=\"1.0\" encoding=\"UTF-8\"?><Response><Message>%s</Message></Response>", escaped.String())
	}
	if _, err := w.Write([]byte(body)); err != nil {
		slog.Error("Server.writeTwiMLResponse: failed to write TwiML response", "error", err)
	}
}

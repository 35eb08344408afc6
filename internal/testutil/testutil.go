// Package testutil provides shared helpers for the bot's tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/preconak-maker/aman-reactivation-bot/internal/api"
	"github.com/preconak-maker/aman-reactivation-bot/internal/campaign"
	"github.com/preconak-maker/aman-reactivation-bot/internal/genai"
	"github.com/preconak-maker/aman-reactivation-bot/internal/messaging"
	"github.com/preconak-maker/aman-reactivation-bot/internal/models"
	"github.com/preconak-maker/aman-reactivation-bot/internal/store"
	"github.com/preconak-maker/aman-reactivation-bot/internal/templates"
	"github.com/preconak-maker/aman-reactivation-bot/internal/timer"
	"github.com/preconak-maker/aman-reactivation-bot/internal/twiliosms"
)

// TestEnv bundles the in-memory collaborators behind a test API server so
// assertions can reach the store and the mock sender directly.
type TestEnv struct {
	Server *api.Server
	Store  *store.InMemoryStore
	Sender *twiliosms.MockClient
	Runner *campaign.Runner
	Timer  *timer.SimpleTimer
}

// NewTestEnv creates an API server wired entirely to in-memory dependencies.
// Callers pass the AI double the reply handler should use.
func NewTestEnv(t *testing.T, ai genai.ClientInterface) *TestEnv {
	t.Helper()
	st := store.NewInMemoryStore()
	sender := twiliosms.NewMockClient()
	msgService := messaging.NewTwilioService(sender)
	tm := timer.NewSimpleTimer()
	t.Cleanup(tm.Stop)

	runner := campaign.NewRunner(st, msgService, templates.DefaultIdentity(), campaign.DefaultConfig())
	replies := messaging.NewReplyHandler(st, msgService, ai, tm, templates.DefaultIdentity())
	srv := api.NewServer(st, runner, replies, tm)
	return &TestEnv{Server: srv, Store: st, Sender: sender, Runner: runner, Timer: tm}
}

// AssertHTTPStatus checks the HTTP status code and fails the test if it
// does not match.
func AssertHTTPStatus(t *testing.T, expected, actual int, context string) {
	t.Helper()
	if actual != expected {
		t.Errorf("%s: expected status %d, got %d", context, expected, actual)
	}
}

// AssertJSONResponse decodes a JSON response and validates the status field.
func AssertJSONResponse(t *testing.T, rr *httptest.ResponseRecorder, expectedStatus string) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode JSON response: %v", err)
	}

	if status, ok := response["status"].(string); ok {
		if status != expectedStatus {
			t.Errorf("expected status '%s', got '%s'", expectedStatus, status)
		}
	} else {
		t.Error("response missing or invalid 'status' field")
	}
	return response
}

// CreateHTTPRequest creates an HTTP request with an optional JSON body.
func CreateHTTPRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	t.Helper()
	reqBody := bytes.NewBuffer(nil)
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		t.Fatalf("failed to create HTTP request: %v", err)
	}
	return req
}

// SeedLeads adds the given leads to the store, failing the test on error.
func SeedLeads(t *testing.T, st store.Store, leads ...models.Lead) {
	t.Helper()
	for _, lead := range leads {
		if _, err := st.AddLead(lead); err != nil {
			t.Fatalf("failed to seed lead %s: %v", lead.Phone, err)
		}
	}
}

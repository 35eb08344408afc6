package genai

import (
	"context"
	"sync"

	"github.com/preconak-maker/aman-reactivation-bot/internal/models"
)

// MockClient is an in-memory ClientInterface double for tests. Responses
// and errors are scripted through the public fields; calls are recorded.
type MockClient struct {
	mu sync.Mutex

	Reply       string
	ReplyErr    error
	Temp        models.Temperature
	ClassifyErr error

	GenerateCalls []GenerateCall
	ClassifyCalls []string
}

// GenerateCall records one GenerateReply invocation.
type GenerateCall struct {
	SystemPrompt string
	History      []models.ConversationTurn
	Incoming     string
}

// NewMockClient creates a mock that answers with a fixed reply and Warm.
func NewMockClient() *MockClient {
	return &MockClient{Reply: "mock reply", Temp: models.TemperatureWarm}
}

func (m *MockClient) GenerateReply(ctx context.Context, systemPrompt string, history []models.ConversationTurn, incoming string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GenerateCalls = append(m.GenerateCalls, GenerateCall{
		SystemPrompt: systemPrompt,
		History:      append([]models.ConversationTurn(nil), history...),
		Incoming:     incoming,
	})
	if m.ReplyErr != nil {
		return "", m.ReplyErr
	}
	return m.Reply, nil
}

func (m *MockClient) ClassifyTemperature(ctx context.Context, text string) (models.Temperature, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ClassifyCalls = append(m.ClassifyCalls, text)
	if m.ClassifyErr != nil {
		return models.TemperatureWarm, m.ClassifyErr
	}
	return m.Temp, nil
}

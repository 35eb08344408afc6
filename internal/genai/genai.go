// Package genai provides the AI capabilities consumed by the reply intake:
// conversational reply generation and reply temperature classification,
// backed by the OpenAI chat completions API.
package genai

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/preconak-maker/aman-reactivation-bot/internal/models"
)

// Default request bounds. External calls carry a deadline so a hung
// completion degrades to the safe-default paths instead of stalling a webhook.
const (
	DefaultTimeout        = 30 * time.Second
	DefaultReplyMaxTokens = 200
	classifyMaxTokens     = 10
	classifySystemPrompt  = "Classify this real estate lead reply as exactly one word: Hot, Warm, or Cold."
)

// ClientInterface is the AI capability surface the reply intake consumes.
// The reply handler takes this interface so tests can substitute a mock.
type ClientInterface interface {
	// GenerateReply produces a conversational reply given the stored history,
	// the new incoming message, and a phase-appropriate system prompt.
	GenerateReply(ctx context.Context, systemPrompt string, history []models.ConversationTurn, incoming string) (string, error)
	// ClassifyTemperature labels an inbound reply as Hot, Warm or Cold.
	ClassifyTemperature(ctx context.Context, text string) (models.Temperature, error)
}

// Opts holds configuration options for the GenAI client.
type Opts struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Option defines a configuration option for the GenAI client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithModel overrides the chat completion model.
func WithModel(model string) Option {
	return func(o *Opts) { o.Model = model }
}

// WithTimeout bounds each completion request.
func WithTimeout(d time.Duration) Option {
	return func(o *Opts) { o.Timeout = d }
}

// Client wraps the OpenAI chat completion service.
type Client struct {
	client  openai.Client
	model   string
	timeout time.Duration
}

// NewClient initializes a GenAI client, falling back to the OPENAI_API_KEY
// environment variable when no key option is given.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}
	if cfg.Model == "" {
		cfg.Model = openai.ChatModelGPT4oMini
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{
		client:  openai.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:   cfg.Model,
		timeout: cfg.Timeout,
	}, nil
}

// GenerateReply builds the chat transcript from the conversation log and
// requests a completion.
func (c *Client) GenerateReply(ctx context.Context, systemPrompt string, history []models.ConversationTurn, incoming string) (string, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(history)+2)
	messages = append(messages, openai.SystemMessage(systemPrompt))
	for _, turn := range history {
		switch turn.Role {
		case models.RoleUser:
			messages = append(messages, openai.UserMessage(turn.Content))
		case models.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(turn.Content))
		}
	}
	messages = append(messages, openai.UserMessage(incoming))

	reply, err := c.complete(ctx, messages, DefaultReplyMaxTokens)
	if err != nil {
		slog.Error("GenAI GenerateReply failed", "error", err)
		return "", fmt.Errorf("failed to generate reply: %w", err)
	}
	slog.Debug("GenAI GenerateReply succeeded", "history_turns", len(history), "reply_length", len(reply))
	return reply, nil
}

// ClassifyTemperature asks the model for a one-word label and normalizes
// the result; anything unrecognized comes back as Warm.
func (c *Client) ClassifyTemperature(ctx context.Context, text string) (models.Temperature, error) {
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(classifySystemPrompt),
		openai.UserMessage(text),
	}
	raw, err := c.complete(ctx, messages, classifyMaxTokens)
	if err != nil {
		slog.Error("GenAI ClassifyTemperature failed", "error", err)
		return models.TemperatureWarm, fmt.Errorf("failed to classify reply: %w", err)
	}
	temp := ParseTemperature(raw)
	slog.Debug("GenAI ClassifyTemperature succeeded", "raw", raw, "temperature", temp)
	return temp, nil
}

func (c *Client) complete(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion, maxTokens int64) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:               c.model,
		Messages:            messages,
		MaxCompletionTokens: openai.Int(maxTokens),
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// ParseTemperature normalizes a raw model answer to one of the three
// temperature labels. Unrecognized answers default to Warm so a flaky
// classification never blocks reply handling.
func ParseTemperature(raw string) models.Temperature {
	switch strings.ToLower(strings.TrimSpace(strings.Trim(strings.TrimSpace(raw), "."))) {
	case "hot":
		return models.TemperatureHot
	case "cold":
		return models.TemperatureCold
	case "warm":
		return models.TemperatureWarm
	default:
		return models.TemperatureWarm
	}
}

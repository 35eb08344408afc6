package genai

import (
	"testing"

	"github.com/preconak-maker/aman-reactivation-bot/internal/models"
)

func TestParseTemperature(t *testing.T) {
	tests := []struct {
		raw  string
		want models.Temperature
	}{
		{"Hot", models.TemperatureHot},
		{"hot", models.TemperatureHot},
		{"HOT", models.TemperatureHot},
		{" Hot ", models.TemperatureHot},
		{"Hot.", models.TemperatureHot},
		{"Cold", models.TemperatureCold},
		{"cold.", models.TemperatureCold},
		{"Warm", models.TemperatureWarm},
		{"", models.TemperatureWarm},
		{"Lukewarm", models.TemperatureWarm},
		{"I would say this lead is Hot", models.TemperatureWarm},
	}
	for _, tt := range tests {
		if got := ParseTemperature(tt.raw); got != tt.want {
			t.Errorf("ParseTemperature(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	if _, err := NewClient(); err == nil {
		t.Error("expected error when no API key is configured")
	}
	if _, err := NewClient(WithAPIKey("sk-test")); err != nil {
		t.Errorf("expected client with explicit key, got %v", err)
	}
}

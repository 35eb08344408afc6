package models

import (
	"testing"
	"time"
)

func TestIsOptOut(t *testing.T) {
	tests := []struct {
		body string
		want bool
	}{
		{"STOP", true},
		{"stop", true},
		{"Stop", true},
		{"  stop  ", true},
		{"UNSUBSCRIBE", true},
		{"cancel", true},
		{"Quit", true},
		{"end", true},
		{"please stop", false},
		{"stop it", false},
		{"stopping", false},
		{"", false},
		{"yes", false},
	}
	for _, tt := range tests {
		if got := IsOptOut(tt.body); got != tt.want {
			t.Errorf("IsOptOut(%q) = %v, want %v", tt.body, got, tt.want)
		}
	}
}

func TestParsePhase(t *testing.T) {
	tests := []struct {
		in   string
		want Phase
	}{
		{"Phase 1", PhaseRecent},
		{"Phase 2", PhaseWarm},
		{"Phase 3", PhaseCold},
		{"2", PhaseWarm},
		{"3", PhaseCold},
		{" Phase 2 ", PhaseWarm},
		{"", PhaseRecent},
		{"garbage", PhaseRecent},
	}
	for _, tt := range tests {
		if got := ParsePhase(tt.in); got != tt.want {
			t.Errorf("ParsePhase(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSentAtTime(t *testing.T) {
	lead := Lead{SentAt: "2026-08-01 10:30"}
	got, ok := lead.SentAtTime()
	if !ok {
		t.Fatal("expected valid timestamp to parse")
	}
	want := time.Date(2026, 8, 1, 10, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("SentAtTime() = %v, want %v", got, want)
	}

	for _, bad := range []string{"", "   ", "not a date", "2026-08-01", "08/01/2026 10:30"} {
		lead := Lead{SentAt: bad}
		if _, ok := lead.SentAtTime(); ok {
			t.Errorf("SentAtTime() accepted %q, want parse failure", bad)
		}
	}
}

func TestIsValidTemperature(t *testing.T) {
	for _, temp := range []Temperature{TemperatureHot, TemperatureWarm, TemperatureCold} {
		if !IsValidTemperature(temp) {
			t.Errorf("IsValidTemperature(%q) = false, want true", temp)
		}
	}
	for _, temp := range []Temperature{TemperatureUnknown, "Lukewarm", "hot"} {
		if IsValidTemperature(temp) {
			t.Errorf("IsValidTemperature(%q) = true, want false", temp)
		}
	}
}

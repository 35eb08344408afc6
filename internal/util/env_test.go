package util

import "testing"

func TestParseBoolEnv(t *testing.T) {
	t.Setenv("TEST_BOOL", "yes")
	if !ParseBoolEnv("TEST_BOOL", false) {
		t.Error("expected yes to parse as true")
	}
	t.Setenv("TEST_BOOL", "off")
	if ParseBoolEnv("TEST_BOOL", true) {
		t.Error("expected off to parse as false")
	}
	t.Setenv("TEST_BOOL", "maybe")
	if !ParseBoolEnv("TEST_BOOL", true) {
		t.Error("expected invalid value to return default")
	}
	t.Setenv("TEST_BOOL", "")
	if ParseBoolEnv("TEST_BOOL", false) {
		t.Error("expected empty value to return default")
	}
}

func TestParseIntEnv(t *testing.T) {
	t.Setenv("TEST_INT", "42")
	if got := ParseIntEnv("TEST_INT", 7); got != 42 {
		t.Errorf("expected 42, got %d", got)
	}
	t.Setenv("TEST_INT", "not-a-number")
	if got := ParseIntEnv("TEST_INT", 7); got != 7 {
		t.Errorf("expected default 7, got %d", got)
	}
	t.Setenv("TEST_INT", "")
	if got := ParseIntEnv("TEST_INT", 7); got != 7 {
		t.Errorf("expected default 7 for empty, got %d", got)
	}
}

func TestParseHourEnv(t *testing.T) {
	t.Setenv("TEST_HOUR", "20")
	if got := ParseHourEnv("TEST_HOUR", 9); got != 20 {
		t.Errorf("expected 20, got %d", got)
	}
	t.Setenv("TEST_HOUR", "24")
	if got := ParseHourEnv("TEST_HOUR", 9); got != 9 {
		t.Errorf("expected out-of-range hour to return default, got %d", got)
	}
	t.Setenv("TEST_HOUR", "-1")
	if got := ParseHourEnv("TEST_HOUR", 9); got != 9 {
		t.Errorf("expected negative hour to return default, got %d", got)
	}
}

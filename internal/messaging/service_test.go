package messaging

import (
	"context"
	"errors"
	"testing"

	"github.com/preconak-maker/aman-reactivation-bot/internal/models"
	"github.com/preconak-maker/aman-reactivation-bot/internal/twiliosms"
)

func TestCanonicalizePhone(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"+1 (416) 555-0001", "+14165550001", false},
		{"14165550001", "+14165550001", false},
		{"+14165550001", "+14165550001", false},
		{"416-555-0001", "+4165550001", false},
		{"", "", true},
		{"abc", "", true},
		{"12345", "", true},
	}
	for _, tt := range tests {
		got, err := CanonicalizePhone(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("CanonicalizePhone(%q) expected error, got %q", tt.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("CanonicalizePhone(%q) failed: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("CanonicalizePhone(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTwilioServiceSendMessage(t *testing.T) {
	sender := twiliosms.NewMockClient()
	svc := NewTwilioService(sender)

	if err := svc.SendMessage(context.Background(), "+1 (416) 555-0001", "hello"); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	msgs := sender.Sent()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if msgs[0].To != "+14165550001" {
		t.Errorf("expected canonicalized recipient, got %q", msgs[0].To)
	}

	if err := svc.SendMessage(context.Background(), "nonsense", "hello"); err == nil {
		t.Error("expected error for invalid recipient")
	}
}

func TestTwilioServiceStop(t *testing.T) {
	svc := NewTwilioService(twiliosms.NewMockClient())
	if err := svc.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	err := svc.SendMessage(context.Background(), "+14165550001", "hello")
	if !errors.Is(err, models.ErrServiceStopped) {
		t.Errorf("expected ErrServiceStopped after Stop, got %v", err)
	}
}

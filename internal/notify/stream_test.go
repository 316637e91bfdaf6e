package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestDecodeEntry(t *testing.T) {
	tests := []struct {
		name    string
		values  map[string]interface{}
		wantErr bool
	}{
		{"valid", map[string]interface{}{"payload": `{"to":"a@example.com","subject":"Hi","body":"b"}`}, false},
		{"missing payload", map[string]interface{}{}, true},
		{"payload not string", map[string]interface{}{"payload": 42}, true},
		{"bad json", map[string]interface{}{"payload": `{"to":`}, true},
		{"invalid message", map[string]interface{}{"payload": `{"to":"","subject":"Hi"}`}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := decodeEntry(redis.XMessage{ID: "1-0", Values: tt.values})
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if msg.To != "a@example.com" || msg.Subject != "Hi" {
				t.Errorf("decoded %+v", msg)
			}
		})
	}
}

func TestDecodeEntry_InvalidMessageSentinel(t *testing.T) {
	_, err := decodeEntry(redis.XMessage{Values: map[string]interface{}{"payload": `{"to":"a@example.com"}`}})
	if !errors.Is(err, ErrInvalidMessage) {
		t.Fatalf("expected ErrInvalidMessage, got %v", err)
	}
}

func TestWorker_RunAfterShutdownDoesNotStart(t *testing.T) {
	// A nil client would panic if Run touched Redis.
	w := NewWorker(nil, NewLogSender(slog.New(slog.NewTextHandler(io.Discard, nil))), slog.New(slog.NewTextHandler(io.Discard, nil)), "test", nil)

	if err := w.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- w.Run(context.Background()) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run after Shutdown: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run started after Shutdown")
	}
}

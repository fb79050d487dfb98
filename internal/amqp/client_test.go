package amqp

import (
	"testing"
	"time"
)

func TestNewStateChangedMessage(t *testing.T) {
	msg := NewStateChangedMessage("Milou", 4)

	if msg.UserID != "Milou" || msg.Version != 4 {
		t.Fatalf("unexpected message: %+v", msg)
	}
	if msg.Timestamp.IsZero() {
		t.Error("Timestamp should not be zero")
	}
	if time.Since(msg.Timestamp) > time.Second {
		t.Error("Timestamp should be recent")
	}
}

func TestStateChangedMessageJSON(t *testing.T) {
	msg := &StateChangedMessage{
		UserID:    "Luca",
		Version:   7,
		Timestamp: time.Date(2025, 12, 12, 9, 0, 0, 0, time.UTC),
	}

	body, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}
	parsed, err := StateChangedMessageFromJSON(body)
	if err != nil {
		t.Fatalf("StateChangedMessageFromJSON() error = %v", err)
	}
	if parsed.UserID != msg.UserID || parsed.Version != msg.Version || !parsed.Timestamp.Equal(msg.Timestamp) {
		t.Fatalf("round trip mismatch: %+v", parsed)
	}
}

func TestTransactionRecordedMessageInvalidJSON(t *testing.T) {
	if _, err := TransactionRecordedMessageFromJSON([]byte(`{"amountCents": "many"}`)); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

package amqp

import (
	"encoding/json"
	"time"

	"github.com/mielski/chores/internal/core"
)

// StateChangedMessage announces a successful chore-state write. It
// carries only the user and new version; consumers re-read the
// authoritative state from storage.
type StateChangedMessage struct {
	UserID    string    `json:"userId"`
	Version   int64     `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

// NewStateChangedMessage creates a state change announcement.
func NewStateChangedMessage(userID string, version int64) *StateChangedMessage {
	return &StateChangedMessage{
		UserID:    userID,
		Version:   version,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *StateChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// StateChangedMessageFromJSON creates a message from JSON bytes
func StateChangedMessageFromJSON(data []byte) (*StateChangedMessage, error) {
	var msg StateChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// TransactionRecordedMessage announces a ledger append or undo.
type TransactionRecordedMessage struct {
	UserID        string     `json:"userId"`
	TransactionID string     `json:"transactionId"`
	AmountCents   core.Cents `json:"amountCents"`
	Type          string     `json:"type"`
	BalanceCents  core.Cents `json:"balanceCents"`
	Timestamp     time.Time  `json:"timestamp"`
}

// NewTransactionRecordedMessage creates a ledger event announcement.
func NewTransactionRecordedMessage(userID, txID string, amount core.Cents, txType core.TransactionType, balance core.Cents) *TransactionRecordedMessage {
	return &TransactionRecordedMessage{
		UserID:        userID,
		TransactionID: txID,
		AmountCents:   amount,
		Type:          string(txType),
		BalanceCents:  balance,
		Timestamp:     time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *TransactionRecordedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// TransactionRecordedMessageFromJSON creates a message from JSON bytes
func TransactionRecordedMessageFromJSON(data []byte) (*TransactionRecordedMessage, error) {
	var msg TransactionRecordedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"keuangan/internal/ledger"
)

// ChangeMessage announces that the ledger was persisted. It carries no
// record data; consumers read the store for the current tables.
type ChangeMessage struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Table     string    `json:"table,omitempty"`
	Position  int       `json:"position"`
	Records   int       `json:"records"`
	Timestamp time.Time `json:"timestamp"`
}

// NewChangeMessage wraps a ledger change with a fresh message ID.
func NewChangeMessage(ev ledger.ChangeEvent) *ChangeMessage {
	ts := ev.At
	if ts.IsZero() {
		ts = time.Now()
	}
	return &ChangeMessage{
		ID:        uuid.NewString(),
		Kind:      string(ev.Kind),
		Table:     ev.Table,
		Position:  ev.Position,
		Records:   ev.Records,
		Timestamp: ts.UTC(),
	}
}

// Event converts the message back into a ledger change.
func (m *ChangeMessage) Event() ledger.ChangeEvent {
	return ledger.ChangeEvent{
		Kind:     ledger.ChangeKind(m.Kind),
		Table:    m.Table,
		Position: m.Position,
		Records:  m.Records,
		At:       m.Timestamp,
	}
}

// ToJSON converts the message to JSON bytes
func (m *ChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ChangeMessageFromJSON creates a message from JSON bytes
func ChangeMessageFromJSON(data []byte) (*ChangeMessage, error) {
	var msg ChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

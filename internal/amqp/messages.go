package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"tradejoy/internal/core"
)

// EventType names the ledger change carried by an event.
type EventType string

const (
	EventRecorded EventType = "transaction.recorded"
	EventDeleted  EventType = "transaction.deleted"
)

var ErrUnknownEventType = errors.New("unknown event type")

// LedgerEvent announces that a transaction was added to or removed from the
// ledger. It carries the full transaction so consumers need no other source.
type LedgerEvent struct {
	ID          string           `json:"id"`
	Type        EventType        `json:"type"`
	Transaction core.Transaction `json:"transaction"`
	Timestamp   time.Time        `json:"timestamp"`
}

func newEvent(t EventType, tx core.Transaction) *LedgerEvent {
	return &LedgerEvent{
		ID:          uuid.NewString(),
		Type:        t,
		Transaction: tx,
		Timestamp:   time.Now().UTC(),
	}
}

// NewRecordedEvent creates an event for a newly recorded transaction
func NewRecordedEvent(tx core.Transaction) *LedgerEvent {
	return newEvent(EventRecorded, tx)
}

// NewDeletedEvent creates an event for a removed transaction
func NewDeletedEvent(tx core.Transaction) *LedgerEvent {
	return newEvent(EventDeleted, tx)
}

// Validate checks the fields a consumer relies on.
func (m *LedgerEvent) Validate() error {
	if m.Type != EventRecorded && m.Type != EventDeleted {
		return fmt.Errorf("%w: %q", ErrUnknownEventType, m.Type)
	}
	if m.Transaction.ID <= 0 {
		return errors.New("event transaction has no id")
	}
	return nil
}

// ToJSON converts the message to JSON bytes
func (m *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerEventFromJSON decodes and validates an event
func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var msg LedgerEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}

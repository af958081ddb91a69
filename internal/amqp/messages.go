package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

type EventType string

const (
	EventTransactionCreated   EventType = "transaction.created"
	EventTransactionCorrected EventType = "transaction.corrected"
	EventTransactionDeleted   EventType = "transaction.deleted"
	EventDebtReset            EventType = "debt.reset"
)

// LedgerEvent is a lightweight notification of a committed ledger change.
// Consumers fetch the current transaction from the store when they need more.
type LedgerEvent struct {
	Type          EventType `json:"type"`
	TransactionID string    `json:"transaction_id,omitempty"`
	PersonID      int64     `json:"person_id"`
	AmountCents   int64     `json:"amount_cents,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewTransactionEvent creates an event about a single transaction.
func NewTransactionEvent(t EventType, txID string, personID, amountCents int64) *LedgerEvent {
	return &LedgerEvent{
		Type:          t,
		TransactionID: txID,
		PersonID:      personID,
		AmountCents:   amountCents,
		Timestamp:     time.Now(),
	}
}

// NewDebtResetEvent creates an event for a person's checkpoint reset.
func NewDebtResetEvent(personID int64, at time.Time) *LedgerEvent {
	return &LedgerEvent{Type: EventDebtReset, PersonID: personID, Timestamp: at}
}

// ToJSON converts the event to JSON bytes
func (e *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// LedgerEventFromJSON decodes and validates an event.
func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var ev LedgerEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	switch ev.Type {
	case EventTransactionCreated, EventTransactionCorrected, EventTransactionDeleted:
		if ev.TransactionID == "" {
			return nil, fmt.Errorf("event %s without transaction id", ev.Type)
		}
	case EventDebtReset:
	default:
		return nil, fmt.Errorf("unknown event type %q", ev.Type)
	}
	return &ev, nil
}

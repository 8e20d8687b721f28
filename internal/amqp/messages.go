package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventKind names what changed in an owner's ledger.
type EventKind string

const (
	EventEntriesCreated  EventKind = "entries.created"
	EventEntryDeleted    EventKind = "entry.deleted"
	EventCategoryDeleted EventKind = "category.deleted"
)

// LedgerEvent is a lightweight notification; consumers re-read storage for details.
type LedgerEvent struct {
	Kind       EventKind `json:"kind"`
	OwnerID    string    `json:"owner_id"`
	MovementID string    `json:"movement_id,omitempty"`
	EntryIDs   []string  `json:"entry_ids,omitempty"`
	CategoryID string    `json:"category_id,omitempty"`
	Origin     string    `json:"origin,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

func NewEntriesCreatedEvent(ownerID, movementID string, entryIDs []string) *LedgerEvent {
	return &LedgerEvent{
		Kind:       EventEntriesCreated,
		OwnerID:    ownerID,
		MovementID: movementID,
		EntryIDs:   entryIDs,
		Timestamp:  time.Now().UTC(),
	}
}

func NewEntryDeletedEvent(ownerID, entryID string) *LedgerEvent {
	return &LedgerEvent{
		Kind:      EventEntryDeleted,
		OwnerID:   ownerID,
		EntryIDs:  []string{entryID},
		Timestamp: time.Now().UTC(),
	}
}

func NewCategoryDeletedEvent(ownerID, categoryID string) *LedgerEvent {
	return &LedgerEvent{
		Kind:       EventCategoryDeleted,
		OwnerID:    ownerID,
		CategoryID: categoryID,
		Timestamp:  time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerEventFromJSON decodes and checks a message body.
func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var msg LedgerEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.OwnerID == "" {
		return nil, fmt.Errorf("ledger event without owner_id")
	}
	switch msg.Kind {
	case EventEntriesCreated, EventEntryDeleted, EventCategoryDeleted:
	default:
		return nil, fmt.Errorf("unknown ledger event kind %q", msg.Kind)
	}
	return &msg, nil
}

package amqp

import (
	"encoding/json"
	"time"
)

// Message kinds carried on the sync queue.
const (
	KindUpsert = "upsert"
	KindDelete = "delete"
)

// EntrySyncMessage is a lightweight pointer to an entry needing export work.
// It carries only the ID and version; the worker fetches the full entry from
// the database. Delete messages carry the owner so the worker can address
// the removed row in the sheet.
type EntrySyncMessage struct {
	Kind      string    `json:"kind"`
	ID        int64     `json:"id"`
	Version   int64     `json:"version"`
	Owner     string    `json:"owner,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewUpsertMessage points the worker at an entry to append or update.
func NewUpsertMessage(id, version int64) *EntrySyncMessage {
	return &EntrySyncMessage{
		Kind:      KindUpsert,
		ID:        id,
		Version:   version,
		Timestamp: time.Now(),
	}
}

// NewDeleteMessage tells the worker to drop the entry's exported row.
func NewDeleteMessage(id int64, owner string) *EntrySyncMessage {
	return &EntrySyncMessage{
		Kind:      KindDelete,
		ID:        id,
		Owner:     owner,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *EntrySyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// EntrySyncMessageFromJSON creates a message from JSON bytes
func EntrySyncMessageFromJSON(data []byte) (*EntrySyncMessage, error) {
	var msg EntrySyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

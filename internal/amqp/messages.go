package amqp

import (
	"encoding/json"
	"time"
)

// BudgetChangedMessage is a lightweight notification that a budget's
// content changed. It carries only the owner and month; consumers fetch
// the current state from the database, so stale messages are harmless.
type BudgetChangedMessage struct {
	OwnerID   int64     `json:"owner_id"`
	Month     string    `json:"month"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

func NewBudgetChangedMessage(ownerID int64, month, reason string) *BudgetChangedMessage {
	return &BudgetChangedMessage{
		OwnerID:   ownerID,
		Month:     month,
		Reason:    reason,
		Timestamp: time.Now(),
	}
}

func (m *BudgetChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func BudgetChangedMessageFromJSON(data []byte) (*BudgetChangedMessage, error) {
	var msg BudgetChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

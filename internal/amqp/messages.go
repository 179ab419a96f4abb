package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// RoutingKeyTransactionsChanged carries ChangeMessage payloads.
const RoutingKeyTransactionsChanged = "transactions.changed"

type ChangeOp string

const (
	OpCreated ChangeOp = "created"
	OpUpdated ChangeOp = "updated"
	OpDeleted ChangeOp = "deleted"
)

// ChangeMessage tells every dashboard instance that an account's
// transactions changed and cached snapshots for it are stale.
type ChangeMessage struct {
	AccountID string    `json:"accountId"`
	IDs       []string  `json:"ids,omitempty"`
	Op        ChangeOp  `json:"op"`
	Origin    string    `json:"origin,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

var errMissingAccount = errors.New("change message without account id")

func NewChangeMessage(accountID string, op ChangeOp, ids ...string) *ChangeMessage {
	return &ChangeMessage{
		AccountID: accountID,
		IDs:       ids,
		Op:        op,
		Timestamp: time.Now(),
	}
}

func (m *ChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ChangeMessageFromJSON decodes and validates a message body.
func ChangeMessageFromJSON(data []byte) (*ChangeMessage, error) {
	var msg ChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.AccountID == "" {
		return nil, errMissingAccount
	}
	return &msg, nil
}

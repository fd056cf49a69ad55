package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RefreshMessage asks the worker to reload datasets from the upstream warehouse.
// An empty Datasets list means every dataset in the catalog.
type RefreshMessage struct {
	JobID       string    `json:"job_id"`
	Datasets    []string  `json:"datasets,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}

// NewRefreshMessage creates a refresh request with a fresh job id
func NewRefreshMessage(reason string, datasets ...string) *RefreshMessage {
	return &RefreshMessage{
		JobID:       uuid.NewString(),
		Datasets:    datasets,
		Reason:      reason,
		RequestedAt: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *RefreshMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// RefreshMessageFromJSON decodes a message and checks its job id
func RefreshMessageFromJSON(data []byte) (*RefreshMessage, error) {
	var msg RefreshMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(msg.JobID); err != nil {
		return nil, fmt.Errorf("invalid job id %q: %w", msg.JobID, err)
	}
	return &msg, nil
}

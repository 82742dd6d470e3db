package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ForecastRequestMessage asks the worker to regenerate projections for one currency.
type ForecastRequestMessage struct {
	RunID       string    `json:"run_id"`
	Currency    string    `json:"currency"`
	RequestedAt time.Time `json:"requested_at"`
}

// NewForecastRequestMessage creates a request with a fresh run ID.
func NewForecastRequestMessage(currency string) *ForecastRequestMessage {
	return &ForecastRequestMessage{
		RunID:       uuid.NewString(),
		Currency:    currency,
		RequestedAt: time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ForecastRequestMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ForecastRequestMessageFromJSON creates a message from JSON bytes
func ForecastRequestMessageFromJSON(data []byte) (*ForecastRequestMessage, error) {
	var msg ForecastRequestMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// ProjectionReadyMessage announces that a new projection result was saved.
type ProjectionReadyMessage struct {
	RunID            string    `json:"run_id"`
	Currency         string    `json:"currency"`
	HistoricalMonths int       `json:"historical_months"`
	ProjectedMonths  int       `json:"projected_months"`
	TrainingDate     time.Time `json:"training_date"`
}

// ToJSON converts the message to JSON bytes
func (m *ProjectionReadyMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ProjectionReadyMessageFromJSON creates a message from JSON bytes
func ProjectionReadyMessageFromJSON(data []byte) (*ProjectionReadyMessage, error) {
	var msg ProjectionReadyMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

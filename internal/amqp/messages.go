package amqp

import (
	"time"

	json "github.com/goccy/go-json"

	"tally/internal/core"
)

// AlertMessage carries one alert event to the alert worker.
type AlertMessage struct {
	ID          string          `json:"id"`
	Event       core.AlertEvent `json:"event"`
	PublishedAt time.Time       `json:"publishedAt"`
}

// NewAlertMessage wraps an event with a fresh id and timestamp.
func NewAlertMessage(ev core.AlertEvent) *AlertMessage {
	return &AlertMessage{
		ID:          core.NewID(),
		Event:       ev,
		PublishedAt: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *AlertMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// AlertMessageFromJSON decodes a message and rejects ones without a kind.
func AlertMessageFromJSON(data []byte) (*AlertMessage, error) {
	var msg AlertMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if !msg.Event.Kind.Valid() {
		return nil, core.ErrInvalidAlertKind
	}
	return &msg, nil
}

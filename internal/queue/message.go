package queue

import (
	"time"

	json "github.com/goccy/go-json"
)

// CurrentVersion is the message schema version producers write.
const CurrentVersion = 1

// Message announces a catalog document published to the object store.
// Consumers load Key and mirror it into Postgres.
type Message struct {
	Key         string `json:"key"`
	DataVersion string `json:"dataVersion,omitempty"`
	Foods       int    `json:"foods,omitempty"`
	RequestID   string `json:"requestId"`
	EnqueuedAt  string `json:"enqueuedAt"`
	Version     int    `json:"version"`
}

// NewMessage stamps a message for key with the current time and version.
func NewMessage(key, dataVersion string, foods int, requestID string, now time.Time) Message {
	return Message{
		Key:         key,
		DataVersion: dataVersion,
		Foods:       foods,
		RequestID:   requestID,
		EnqueuedAt:  now.UTC().Format(time.RFC3339),
		Version:     CurrentVersion,
	}
}

// EncodeMessage returns the JSON representation of a message.
func EncodeMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

// DecodeMessage parses a JSON payload into a Message.
func DecodeMessage(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}

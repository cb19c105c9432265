package chats

import "time"

// Chat is one counselor exchange.
type Chat struct {
	ID             string    `json:"id"`
	CreatorID      string    `json:"creatorId"`
	Message        string    `json:"message"`
	Reply          string    `json:"reply"`
	Mood           string    `json:"mood,omitempty"`
	Recommendation string    `json:"recommendation,omitempty"`
	Reason         string    `json:"reason,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

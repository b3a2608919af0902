package model

import "time"

// Message is a directed text message. Only Read ever changes after creation.
type Message struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"sender_id"`
	ReceiverID string    `json:"receiver_id"`
	Content    string    `json:"content"`
	Timestamp  time.Time `json:"timestamp"`
	Read       bool      `json:"read"`
}

// Chat is derived, never stored: the conversation between the caller and
// one other user.
type Chat struct {
	ParticipantID string   `json:"participant_id"`
	LastMessage   *Message `json:"last_message,omitempty"`
	UnreadCount   int      `json:"unread_count"`
}

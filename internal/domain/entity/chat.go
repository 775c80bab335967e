package entity

import "time"

type LastMessage struct {
	ID         string    `json:"id"`
	Content    string    `json:"content"`
	SenderID   string    `json:"sender_id"`
	SenderName string    `json:"sender_name,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	IsEdited   bool      `json:"is_edited"`
}

type ChatRoom struct {
	ID          string       `json:"id"`
	ListingID   string       `json:"property_id"`
	Name        string       `json:"name,omitempty"`
	Status      string       `json:"status"` // "active", "inactive"
	AgentID     string       `json:"agent_id,omitempty"`
	AgentName   string       `json:"agent_name,omitempty"`
	AgentRating float64      `json:"agent_rating,omitempty"`
	CreatedBy   string       `json:"created_by"`
	CreatedAt   time.Time    `json:"created_at"`
	LastMessage *LastMessage `json:"last_message,omitempty"`
}

type ChatMessage struct {
	ID          string    `json:"id"`
	RoomID      string    `json:"room_id"`
	SenderID    string    `json:"sender_id"`
	SenderName  string    `json:"sender_name,omitempty"`
	Content     string    `json:"content"`
	MessageType string    `json:"message_type"` // "text", "file", "system"
	IsEdited    bool      `json:"is_edited"`
	CreatedAt   time.Time `json:"created_at"`
}

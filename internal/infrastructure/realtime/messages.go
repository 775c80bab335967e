// Package realtime maintains the WebSocket connection to the marketplace's
// push endpoint. Wire messages follow a consistent envelope format with a
// type discriminator; payloads are decoded and validated at this boundary so
// the rest of the code only sees typed values.
package realtime

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Server -> client message types.
const (
	TypeMessage      = "message"
	TypeNotification = "notification"
	TypeTyping       = "typing"
	TypeUserJoined   = "user_joined"
	TypeUserLeft     = "user_left"
	TypeRoomCreated  = "room_created"
)

// Client -> server message types.
const (
	TypeSendMessage = "send_message"
	TypeMarkRead    = "mark_read"
)

// Envelope is the outer wire shape of every realtime frame. Data is kept raw
// until the type tag selects a concrete payload struct.
type Envelope struct {
	Type       string          `json:"type"`
	Data       json.RawMessage `json:"data"`
	RoomID     string          `json:"room_id,omitempty"`
	SenderID   string          `json:"sender_id,omitempty"`
	SenderName string          `json:"sender_name,omitempty"`
}

// MessagePayload is the body of a "message" frame.
type MessagePayload struct {
	ID          string    `json:"id" validate:"required"`
	Content     string    `json:"content" validate:"required"`
	SenderID    string    `json:"sender_id"`
	SenderName  string    `json:"sender_name"`
	MessageType string    `json:"message_type"`
	IsEdited    bool      `json:"is_edited"`
	CreatedAt   time.Time `json:"created_at"`
}

// NotificationPayload is the body of a "notification" frame.
type NotificationPayload struct {
	Title  string `json:"title" validate:"required"`
	Body   string `json:"body"`
	RoomID string `json:"room_id"`
}

// TypingPayload is the body of a "typing" frame.
type TypingPayload struct {
	UserID   string `json:"user_id" validate:"required"`
	UserName string `json:"user_name"`
	IsTyping bool   `json:"is_typing"`
}

// PresencePayload is the body of "user_joined" and "user_left" frames.
type PresencePayload struct {
	UserID   string `json:"user_id" validate:"required"`
	UserName string `json:"user_name"`
}

// RoomCreatedPayload is the body of a "room_created" frame: a full chat room
// record pushed when an agent opens a conversation with the current user.
type RoomCreatedPayload struct {
	ID          string    `json:"id" validate:"required"`
	ListingID   string    `json:"property_id"`
	Name        string    `json:"name"`
	Status      string    `json:"status"`
	AgentID     string    `json:"agent_id"`
	AgentName   string    `json:"agent_name"`
	AgentRating float64   `json:"agent_rating"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
}

// SendMessagePayload is the body of an outgoing "send_message" frame. TempID
// is a client-generated id the server echoes back so optimistic UI entries
// can be reconciled.
type SendMessagePayload struct {
	TempID  string `json:"temp_id"`
	RoomID  string `json:"room_id"`
	Content string `json:"content"`
}

var validate = validator.New()

// Parse decodes raw frame bytes into the envelope and its typed payload. An
// unknown type tag or a payload that fails validation returns an error; the
// caller logs and drops the frame, it never tears down the channel.
func Parse(data []byte) (*Envelope, interface{}, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, nil, fmt.Errorf("realtime: parse envelope: %w", err)
	}
	if env.Type == "" {
		return nil, nil, fmt.Errorf("realtime: missing type tag")
	}

	var payload interface{}
	switch env.Type {
	case TypeMessage:
		payload = &MessagePayload{}
	case TypeNotification:
		payload = &NotificationPayload{}
	case TypeTyping:
		payload = &TypingPayload{}
	case TypeUserJoined, TypeUserLeft:
		payload = &PresencePayload{}
	case TypeRoomCreated:
		payload = &RoomCreatedPayload{}
	default:
		return &env, nil, fmt.Errorf("realtime: unknown message type %q", env.Type)
	}

	if err := json.Unmarshal(env.Data, payload); err != nil {
		return &env, nil, fmt.Errorf("realtime: decode %s payload: %w", env.Type, err)
	}
	if err := validate.Struct(payload); err != nil {
		return &env, nil, fmt.Errorf("realtime: invalid %s payload: %w", env.Type, err)
	}
	return &env, payload, nil
}

package realtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMessage(t *testing.T) {
	raw := []byte(`{
		"type": "message",
		"room_id": "r1",
		"sender_id": "u2",
		"sender_name": "Dana",
		"data": {"id": "m9", "content": "hi", "sender_name": "A"}
	}`)

	env, payload, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, TypeMessage, env.Type)
	assert.Equal(t, "r1", env.RoomID)

	msg, ok := payload.(*MessagePayload)
	require.True(t, ok)
	assert.Equal(t, "m9", msg.ID)
	assert.Equal(t, "hi", msg.Content)
}

func TestParseNotification(t *testing.T) {
	raw := []byte(`{"type": "notification", "data": {"title": "New offer", "body": "Price dropped", "room_id": "r1"}}`)

	_, payload, err := Parse(raw)
	require.NoError(t, err)

	n, ok := payload.(*NotificationPayload)
	require.True(t, ok)
	assert.Equal(t, "New offer", n.Title)
}

func TestParseTyping(t *testing.T) {
	raw := []byte(`{"type": "typing", "room_id": "r1", "data": {"user_id": "u2", "user_name": "Dana", "is_typing": true}}`)

	env, payload, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "r1", env.RoomID)

	tp, ok := payload.(*TypingPayload)
	require.True(t, ok)
	assert.True(t, tp.IsTyping)
}

func TestParsePresence(t *testing.T) {
	for _, typ := range []string{TypeUserJoined, TypeUserLeft} {
		raw := []byte(`{"type": "` + typ + `", "data": {"user_id": "u2"}}`)
		_, payload, err := Parse(raw)
		require.NoError(t, err, typ)
		_, ok := payload.(*PresencePayload)
		assert.True(t, ok, typ)
	}
}

func TestParseRoomCreated(t *testing.T) {
	raw := []byte(`{"type": "room_created", "data": {"id": "r7", "property_id": "p3", "agent_name": "Dana", "agent_rating": 4.5}}`)

	_, payload, err := Parse(raw)
	require.NoError(t, err)

	room, ok := payload.(*RoomCreatedPayload)
	require.True(t, ok)
	assert.Equal(t, "r7", room.ID)
	assert.Equal(t, "p3", room.ListingID)
}

func TestParseRejectsBadFrames(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"malformed json", `{“not json`},
		{"missing type", `{"data": {}}`},
		{"unknown type", `{"type": "presence_sync", "data": {}}`},
		{"message missing id", `{"type": "message", "data": {"content": "hi"}}`},
		{"typing missing user", `{"type": "typing", "data": {"is_typing": true}}`},
		{"payload wrong shape", `{"type": "message", "data": [1, 2]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, payload, err := Parse([]byte(tt.raw))
			assert.Error(t, err)
			assert.Nil(t, payload)
		})
	}
}

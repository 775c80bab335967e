package realtime

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"estatesync/internal/domain/entity"
)

func TestBackoffDelaySequence(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 10 * time.Second},
		{7, 10 * time.Second},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, backoffDelay(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestSendWhileClosedIsNoOp(t *testing.T) {
	c := NewChannel("ws://localhost:0", Handlers{})
	c.SetUser("u1")

	// Never connected; must not panic or transmit.
	c.Send(map[string]string{"type": "send_message"})
	assert.Equal(t, StateIdle, c.State())
}

func TestDisconnectIsIdempotent(t *testing.T) {
	c := NewChannel("ws://localhost:0", Handlers{})
	c.Disconnect()
	c.Disconnect()
	assert.Equal(t, StateIdle, c.State())
}

func TestConnectRequiresUser(t *testing.T) {
	c := NewChannel("ws://localhost:0", Handlers{})
	c.Connect()
	assert.Equal(t, StateIdle, c.State())
}

// wsServer upgrades every request and hands the connection to accept.
func wsServer(t *testing.T, accept func(conn *websocket.Conn)) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade: %v", err)
			return
		}
		accept(conn)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func waitForState(t *testing.T, c *Channel, state string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if c.State() == state {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("channel never reached state %q (now %q)", state, c.State())
}

func TestConnectAndDispatchMessage(t *testing.T) {
	frames := make(chan string, 4)
	defer close(frames)
	srv := wsServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		for frame := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
				return
			}
		}
	})

	var (
		mu            sync.Mutex
		messages      []entity.ChatMessage
		notifications []Notification
	)
	c := NewChannel(wsURL(srv), Handlers{
		OnMessage: func(msg entity.ChatMessage) {
			mu.Lock()
			messages = append(messages, msg)
			mu.Unlock()
		},
		OnNotification: func(n Notification) {
			mu.Lock()
			notifications = append(notifications, n)
			mu.Unlock()
		},
	})
	c.SetUser("u1")
	c.Connect()
	waitForState(t, c, StateOpen)
	defer c.Disconnect()

	// An unknown tag is dropped without killing the channel.
	frames <- `{"type": "presence_sync", "data": {}}`
	// A message from someone else raises a notification.
	frames <- `{"type": "message", "room_id": "r1", "sender_id": "u2", "sender_name": "Dana",
		"data": {"id": "m9", "content": "hi"}}`
	// The user's own message echoed back must not notify.
	frames <- `{"type": "message", "room_id": "r1", "sender_id": "u1",
		"data": {"id": "m10", "content": "hello back"}}`

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(messages) == 2
	}, 3*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "m9", messages[0].ID)
	assert.Equal(t, "r1", messages[0].RoomID)
	assert.Equal(t, "Dana", messages[0].SenderName)
	require.Len(t, notifications, 1)
	assert.Equal(t, "Dana", notifications[0].Title)
	assert.Equal(t, "hi", notifications[0].Body)
}

func TestSendWhileOpen(t *testing.T) {
	received := make(chan []byte, 1)
	srv := wsServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		received <- data
	})

	c := NewChannel(wsURL(srv), Handlers{})
	c.SetUser("u1")
	c.Connect()
	waitForState(t, c, StateOpen)
	defer c.Disconnect()

	c.Send(map[string]string{"type": "mark_read"})

	select {
	case data := <-received:
		assert.Contains(t, string(data), "mark_read")
	case <-time.After(3 * time.Second):
		t.Fatal("server never received the frame")
	}
}

func TestDisconnectSuppressesReconnect(t *testing.T) {
	srv := wsServer(t, func(conn *websocket.Conn) {
		// Hold the connection open until the client drops it.
		conn.ReadMessage()
		conn.Close()
	})

	c := NewChannel(wsURL(srv), Handlers{})
	c.SetUser("u1")
	c.Connect()
	waitForState(t, c, StateOpen)

	c.Disconnect()
	assert.Equal(t, StateIdle, c.State())

	// The close event from the torn-down socket must not resurrect the
	// channel.
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, StateIdle, c.State())

	c.mu.Lock()
	assert.Equal(t, 0, c.attempts)
	assert.Nil(t, c.reconnect)
	c.mu.Unlock()
}

func TestServerCloseSchedulesReconnect(t *testing.T) {
	srv := wsServer(t, func(conn *websocket.Conn) {
		conn.Close()
	})

	c := NewChannel(wsURL(srv), Handlers{})
	c.SetUser("u1")
	c.Connect()

	// The server closes immediately; the channel should land in Closed with
	// a reconnect armed and the attempt counter bumped.
	require.Eventually(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.state == StateClosed && c.attempts == 1 && c.reconnect != nil
	}, 3*time.Second, 10*time.Millisecond)

	c.Disconnect()
}

func TestConnectThrottlesDuplicateCallers(t *testing.T) {
	var (
		mu    sync.Mutex
		dials int
	)
	srv := wsServer(t, func(conn *websocket.Conn) {
		mu.Lock()
		dials++
		mu.Unlock()
		conn.ReadMessage()
		conn.Close()
	})

	c := NewChannel(wsURL(srv), Handlers{})
	c.SetUser("u1")
	c.Connect()
	waitForState(t, c, StateOpen)
	defer c.Disconnect()

	// Duplicate callers while open (or within the inter-attempt window) do
	// not stack up extra dials.
	c.Connect()
	c.Connect()
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, dials)
}

func TestReconnectStopsAfterBudgetExhausted(t *testing.T) {
	c := NewChannel("ws://localhost:0", Handlers{})
	c.SetUser("u1")

	// Five failures have already been spent; the next close must park the
	// channel instead of arming a sixth attempt.
	c.mu.Lock()
	c.state = StateOpen
	c.attempts = maxReconnectAttempts
	gen := c.gen
	c.mu.Unlock()

	c.closed(gen, errors.New("connection reset"))

	assert.Equal(t, StateIdle, c.State())
	c.mu.Lock()
	assert.Nil(t, c.reconnect, "no reconnect may be armed once the budget is spent")
	assert.Equal(t, maxReconnectAttempts, c.attempts)
	c.mu.Unlock()

	// Only an explicit Connect resumes; it must still be allowed.
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, StateIdle, c.State())
}

func TestStaleScheduledReconnectDoesNotDial(t *testing.T) {
	var (
		mu    sync.Mutex
		dials int
	)
	srv := wsServer(t, func(conn *websocket.Conn) {
		mu.Lock()
		dials++
		mu.Unlock()
		conn.ReadMessage()
		conn.Close()
	})

	c := NewChannel(wsURL(srv), Handlers{})
	c.SetUser("u1")

	c.mu.Lock()
	gen := c.gen
	c.mu.Unlock()

	// Disconnect lands between the timer firing and the dial starting; the
	// generation it bumped must stop the attempt inside connect itself.
	c.Disconnect()
	c.connect(true, gen)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, StateIdle, c.State())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 0, dials)
}

func TestNewUserResetsRetryBudget(t *testing.T) {
	c := NewChannel("ws://localhost:0", Handlers{})
	c.SetUser("u1")
	c.mu.Lock()
	c.attempts = maxReconnectAttempts
	c.mu.Unlock()

	c.SetUser("u2")

	c.mu.Lock()
	assert.Equal(t, 0, c.attempts)
	c.mu.Unlock()
}

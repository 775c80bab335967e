package realtime

import (
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"estatesync/internal/domain/entity"
	"estatesync/internal/infrastructure/metrics"
	"estatesync/pkg/logger"
)

// Channel connection states.
const (
	StateIdle       = "idle"
	StateConnecting = "connecting"
	StateOpen       = "open"
	StateClosed     = "closed"
)

const (
	maxReconnectAttempts = 5
	maxReconnectDelay    = 10 * time.Second
	minConnectInterval   = 2 * time.Second
)

// Notification is a user-facing alert raised from an inbound frame.
type Notification struct {
	Title  string
	Body   string
	RoomID string
}

// Handlers receive dispatched events. All callbacks run on the read-loop
// goroutine in frame arrival order, so they should not block.
type Handlers struct {
	OnMessage      func(msg entity.ChatMessage)
	OnNotification func(n Notification)
	OnTyping       func(roomID string, t TypingPayload)
	OnRoomCreated  func(room entity.ChatRoom)
	OnPresence     func(roomID, userID string, joined bool)
}

// Channel owns the single WebSocket connection tied to the authenticated
// user. It reconnects on transient failure with exponential backoff, capped
// at five consecutive attempts; after that only an explicit Connect (or a
// new user id) resumes it.
type Channel struct {
	baseURL  string
	dialer   *websocket.Dialer
	handlers Handlers

	mu          sync.Mutex
	userID      string
	conn        *websocket.Conn
	state       string
	attempts    int
	lastAttempt time.Time
	reconnect   *time.Timer
	gen         int
}

func NewChannel(baseURL string, handlers Handlers) *Channel {
	return &Channel{
		baseURL:  baseURL,
		dialer:   websocket.DefaultDialer,
		handlers: handlers,
		state:    StateIdle,
	}
}

// SetUser binds the channel to a user id. A new id resets the retry budget,
// so a channel that gave up for the previous user starts fresh.
func (c *Channel) SetUser(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if userID != c.userID {
		c.attempts = 0
	}
	c.userID = userID
}

// State returns the current connection state.
func (c *Channel) State() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect establishes the connection if the channel is not already
// connecting or open. Calls made within two seconds of the previous attempt
// are dropped, which keeps duplicate callers from stacking up dials. The
// dial itself runs on a background goroutine.
func (c *Channel) Connect() {
	c.connect(false, 0)
}

// connect transitions to Connecting and dials. Scheduled reconnects carry
// the generation they were armed under; a Disconnect in between bumps the
// generation and the stale attempt is dropped inside the same critical
// section that would have started it.
func (c *Channel) connect(scheduled bool, gen int) {
	c.mu.Lock()

	if scheduled && gen != c.gen {
		c.mu.Unlock()
		return
	}
	if c.userID == "" {
		c.mu.Unlock()
		logger.Debug("realtime: connect skipped, no user")
		return
	}
	if c.state == StateConnecting || c.state == StateOpen {
		c.mu.Unlock()
		return
	}
	// Scheduled reconnects already waited out their backoff delay; the
	// inter-attempt guard only throttles external callers.
	if !scheduled && time.Since(c.lastAttempt) < minConnectInterval {
		c.mu.Unlock()
		logger.Debug("realtime: connect throttled")
		return
	}

	c.state = StateConnecting
	c.lastAttempt = time.Now()
	c.gen++
	gen = c.gen
	url := fmt.Sprintf("%s/%s", c.baseURL, c.userID)
	c.mu.Unlock()

	go c.dial(url, gen)
}

func (c *Channel) dial(url string, gen int) {
	conn, _, err := c.dialer.Dial(url, nil)

	c.mu.Lock()
	if gen != c.gen {
		// Disconnect or a newer attempt superseded this dial.
		c.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return
	}
	if err != nil {
		logger.Warn("realtime: dial %s: %v", url, err)
		c.state = StateClosed
		c.scheduleReconnectLocked()
		c.mu.Unlock()
		return
	}

	c.conn = conn
	c.state = StateOpen
	c.attempts = 0
	if c.reconnect != nil {
		c.reconnect.Stop()
		c.reconnect = nil
	}
	c.mu.Unlock()

	metrics.ChannelOpen.Set(1)
	logger.Info("realtime: connected")
	go c.readLoop(conn, gen)
}

func (c *Channel) readLoop(conn *websocket.Conn, gen int) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.closed(gen, err)
			return
		}
		c.dispatch(data)
	}
}

func (c *Channel) closed(gen int, err error) {
	metrics.ChannelOpen.Set(0)

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen {
		// Intentional teardown already detached this connection; its close
		// event must not trigger a reconnect.
		return
	}

	logger.Warn("realtime: connection closed: %v", err)
	c.conn = nil
	c.state = StateClosed
	c.scheduleReconnectLocked()
}

// scheduleReconnectLocked arms the backoff timer. Caller holds c.mu.
func (c *Channel) scheduleReconnectLocked() {
	if c.attempts >= maxReconnectAttempts {
		logger.Warn("realtime: giving up after %d attempts", c.attempts)
		c.state = StateIdle
		return
	}

	delay := backoffDelay(c.attempts)
	c.attempts++
	metrics.ReconnectAttempts.Inc()
	logger.Info("realtime: reconnecting in %s (attempt %d)", delay, c.attempts)
	gen := c.gen
	c.reconnect = time.AfterFunc(delay, func() {
		c.connect(true, gen)
	})
}

// backoffDelay returns the wait before the given zero-based attempt:
// 1s, 2s, 4s, 8s, then capped at 10s.
func backoffDelay(attempt int) time.Duration {
	delay := time.Second << attempt
	if delay > maxReconnectDelay {
		delay = maxReconnectDelay
	}
	return delay
}

// Disconnect tears the connection down and cancels any pending reconnect.
// It is safe to call at any time, repeatedly.
func (c *Channel) Disconnect() {
	c.mu.Lock()

	// Bumping the generation detaches the read loop and any in-flight dial
	// before the socket closes under them.
	c.gen++
	if c.reconnect != nil {
		c.reconnect.Stop()
		c.reconnect = nil
	}
	conn := c.conn
	c.conn = nil
	c.state = StateIdle
	c.attempts = 0
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	metrics.ChannelOpen.Set(0)
}

// Send writes a message if the channel is open; otherwise it is a silent
// no-op. Nothing is queued for later delivery.
func (c *Channel) Send(v interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateOpen || c.conn == nil {
		logger.Debug("realtime: send dropped, channel %s", c.state)
		return
	}
	if err := c.conn.WriteJSON(v); err != nil {
		logger.Warn("realtime: send: %v", err)
	}
}

func (c *Channel) dispatch(data []byte) {
	env, payload, err := Parse(data)
	if err != nil {
		logger.Warn("realtime: dropping frame: %v", err)
		metrics.RealtimeMessages.WithLabelValues("unknown").Inc()
		return
	}
	metrics.RealtimeMessages.WithLabelValues(env.Type).Inc()

	c.mu.Lock()
	currentUser := c.userID
	c.mu.Unlock()

	switch p := payload.(type) {
	case *MessagePayload:
		msg := entity.ChatMessage{
			ID:          p.ID,
			RoomID:      env.RoomID,
			SenderID:    p.SenderID,
			SenderName:  p.SenderName,
			Content:     p.Content,
			MessageType: p.MessageType,
			IsEdited:    p.IsEdited,
			CreatedAt:   p.CreatedAt,
		}
		// Envelope metadata wins over payload fields when both are present.
		if env.SenderID != "" {
			msg.SenderID = env.SenderID
		}
		if env.SenderName != "" {
			msg.SenderName = env.SenderName
		}
		if c.handlers.OnMessage != nil {
			c.handlers.OnMessage(msg)
		}
		if msg.SenderID != currentUser && c.handlers.OnNotification != nil {
			c.handlers.OnNotification(Notification{
				Title:  msg.SenderName,
				Body:   msg.Content,
				RoomID: msg.RoomID,
			})
		}

	case *NotificationPayload:
		if c.handlers.OnNotification != nil {
			c.handlers.OnNotification(Notification{
				Title:  p.Title,
				Body:   p.Body,
				RoomID: p.RoomID,
			})
		}

	case *TypingPayload:
		if c.handlers.OnTyping != nil {
			c.handlers.OnTyping(env.RoomID, *p)
		}

	case *RoomCreatedPayload:
		if c.handlers.OnRoomCreated != nil {
			c.handlers.OnRoomCreated(entity.ChatRoom{
				ID:          p.ID,
				ListingID:   p.ListingID,
				Name:        p.Name,
				Status:      p.Status,
				AgentID:     p.AgentID,
				AgentName:   p.AgentName,
				AgentRating: p.AgentRating,
				CreatedBy:   p.CreatedBy,
				CreatedAt:   p.CreatedAt,
			})
		}

	case *PresencePayload:
		if c.handlers.OnPresence != nil {
			c.handlers.OnPresence(env.RoomID, p.UserID, env.Type == TypeUserJoined)
		}
	}
}

package transport

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/brokerx/marketfeed/pkg/utils/zaplogger"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	sendBufferSize = 256
)

// Inbound frame types
const (
	FrameSubscribe   = "subscribe"
	FrameUnsubscribe = "unsubscribe"
	FrameSend        = "send"
)

// InboundFrame is a client-to-server message
type InboundFrame struct {
	Type        string          `json:"type"`
	Destination string          `json:"destination"`
	Payload     json.RawMessage `json:"payload,omitempty"`
}

// Client is one live websocket session
type Client struct {
	sessionID string
	userID    string
	conn      *websocket.Conn
	send      chan []byte

	mu           sync.Mutex
	destinations map[string]struct{}
	closed       bool
}

// NewClient wraps an upgraded connection into a session
func NewClient(sessionID, userID string, conn *websocket.Conn) *Client {
	return &Client{
		sessionID:    sessionID,
		userID:       userID,
		conn:         conn,
		send:         make(chan []byte, sendBufferSize),
		destinations: make(map[string]struct{}),
	}
}

// SessionID returns the opaque session identifier
func (c *Client) SessionID() string {
	return c.sessionID
}

// UserID returns the authenticated identity attached at connect time
func (c *Client) UserID() string {
	return c.userID
}

// ReadFrame blocks for the next inbound frame
func (c *Client) ReadFrame() (*InboundFrame, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	var frame InboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, err
	}
	return &frame, nil
}

// WritePump drains the send channel to the connection. Runs in its own
// goroutine per session; returns when the channel closes or a write fails.
func (c *Client) WritePump() {
	defer c.conn.Close()
	for message := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			zaplogger.Warn("Write error", zaplogger.Fields{
				"session_id": c.sessionID,
				"error":      err.Error(),
			})
			return
		}
	}
}

func (c *Client) attach(destination string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.destinations[destination] = struct{}{}
}

func (c *Client) detach(destination string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.destinations, destination)
}

func (c *Client) attached(destination string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.destinations[destination]
	return ok
}

// trySend enqueues a message without blocking; reports false on overflow
// or when the session is closed
func (c *Client) trySend(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

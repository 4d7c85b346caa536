// Package transport implements the destination-keyed pub/sub layer over
// persistent websocket connections
package transport

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/brokerx/marketfeed/pkg/utils/zaplogger"
)

// UserQueuePrefix is prepended to per-session queue destinations on the wire
const UserQueuePrefix = "/user"

// Frame is the server-to-client message wrapper
type Frame struct {
	Destination string      `json:"destination"`
	Body        interface{} `json:"body"`
}

// Hub tracks the live sessions and their destination attachments and routes
// published payloads to them
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
	}
}

// Register adds a session to the hub
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	h.clients[client.sessionID] = client
	count := len(h.clients)
	h.mu.Unlock()
	zaplogger.Info("Client connected", zaplogger.Fields{
		"session_id": client.sessionID,
		"user_id":    client.userID,
		"clients":    count,
	})
}

// Unregister removes a session and closes its send channel. Idempotent.
func (h *Hub) Unregister(sessionID string) {
	h.mu.Lock()
	client, ok := h.clients[sessionID]
	if ok {
		delete(h.clients, sessionID)
	}
	count := len(h.clients)
	h.mu.Unlock()

	if ok {
		client.closeSend()
		zaplogger.Info("Client disconnected", zaplogger.Fields{
			"session_id": sessionID,
			"clients":    count,
		})
	}
}

// Attach subscribes a session to a destination
func (h *Hub) Attach(sessionID, destination string) {
	h.mu.RLock()
	client, ok := h.clients[sessionID]
	h.mu.RUnlock()
	if ok {
		client.attach(destination)
	}
}

// Detach unsubscribes a session from a destination
func (h *Hub) Detach(sessionID, destination string) {
	h.mu.RLock()
	client, ok := h.clients[sessionID]
	h.mu.RUnlock()
	if ok {
		client.detach(destination)
	}
}

// Publish delivers a payload to every session attached to the destination.
// Slow sessions are skipped rather than blocked on.
func (h *Hub) Publish(destination string, payload interface{}) error {
	data, err := json.Marshal(Frame{Destination: destination, Body: payload})
	if err != nil {
		return fmt.Errorf("failed to marshal frame for %s: %w", destination, err)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		if !client.attached(destination) {
			continue
		}
		if !client.trySend(data) {
			zaplogger.Warn("Skipping slow client", zaplogger.Fields{
				"session_id":  client.sessionID,
				"destination": destination,
			})
		}
	}
	return nil
}

// PublishToSession delivers a payload to one session's queue destination,
// regardless of topic attachments
func (h *Hub) PublishToSession(sessionID, destination string, payload interface{}) error {
	data, err := json.Marshal(Frame{Destination: UserQueuePrefix + destination, Body: payload})
	if err != nil {
		return fmt.Errorf("failed to marshal frame for %s: %w", destination, err)
	}

	h.mu.RLock()
	client, ok := h.clients[sessionID]
	h.mu.RUnlock()
	if !ok {
		return fmt.Errorf("unknown session %s", sessionID)
	}
	if !client.trySend(data) {
		return fmt.Errorf("send buffer full for session %s", sessionID)
	}
	return nil
}

// ClientCount returns the number of live sessions
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/brokerx/marketfeed/internal/models"
	"github.com/brokerx/marketfeed/internal/service"
	"github.com/brokerx/marketfeed/internal/transport"
	"github.com/brokerx/marketfeed/pkg/utils/zaplogger"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSHandler serves the persistent market data channel at /ws/market
type WSHandler struct {
	hub                 *transport.Hub
	authService         *service.AuthService
	subscriptionService *service.SubscriptionService
	quotaService        *service.QuotaService
}

// NewWSHandler creates a new websocket handler
func NewWSHandler(
	hub *transport.Hub,
	authService *service.AuthService,
	subscriptionService *service.SubscriptionService,
	quotaService *service.QuotaService,
) *WSHandler {
	return &WSHandler{
		hub:                 hub,
		authService:         authService,
		subscriptionService: subscriptionService,
		quotaService:        quotaService,
	}
}

// HandleWebSocket authenticates the connection, upgrades it and runs the
// session until the peer goes away
func (h *WSHandler) HandleWebSocket(c echo.Context) error {
	userID, err := h.authService.Authenticate(c.Request().Header.Get("Authorization"))
	if err != nil {
		zaplogger.Error("Authentication failed", zaplogger.Fields{
			"remote": c.Request().RemoteAddr,
			"error":  err.Error(),
		})
		return c.NoContent(http.StatusUnauthorized)
	}

	if err := h.quotaService.AcquireConnection(userID); err != nil {
		zaplogger.Warn("Connection quota exceeded", zaplogger.Fields{
			"user_id": userID,
		})
		return c.NoContent(http.StatusTooManyRequests)
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.quotaService.ReleaseConnection(userID)
		zaplogger.Error("Upgrade failed", zaplogger.Fields{
			"remote": c.Request().RemoteAddr,
			"error":  err.Error(),
		})
		return nil
	}

	sessionID := uuid.NewString()
	client := transport.NewClient(sessionID, userID, conn)
	h.hub.Register(client)
	go client.WritePump()

	defer func() {
		h.hub.Unregister(sessionID)
		h.subscriptionService.HandleDisconnect(sessionID)
		h.quotaService.ReleaseConnection(userID)
	}()

	h.readLoop(client)
	return nil
}

func (h *WSHandler) readLoop(client *transport.Client) {
	sessionID := client.SessionID()
	for {
		frame, err := client.ReadFrame()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				zaplogger.Warn("Read error", zaplogger.Fields{
					"session_id": sessionID,
					"error":      err.Error(),
				})
			}
			return
		}

		switch frame.Type {
		case transport.FrameSubscribe:
			h.hub.Attach(sessionID, frame.Destination)
			h.subscriptionService.HandleTopicSubscribe(sessionID, frame.Destination)
		case transport.FrameUnsubscribe:
			h.hub.Detach(sessionID, frame.Destination)
		case transport.FrameSend:
			h.handleSend(client, frame)
		default:
			zaplogger.Warn("Unknown frame type", zaplogger.Fields{
				"session_id": sessionID,
				"type":       frame.Type,
			})
		}
	}
}

func (h *WSHandler) handleSend(client *transport.Client, frame *transport.InboundFrame) {
	if frame.Destination != service.AppSubscribe {
		zaplogger.Warn("Unknown application destination", zaplogger.Fields{
			"session_id":  client.SessionID(),
			"destination": frame.Destination,
		})
		return
	}

	var request models.SubscriptionRequest
	if err := json.Unmarshal(frame.Payload, &request); err != nil {
		zaplogger.Warn("Malformed subscription payload", zaplogger.Fields{
			"session_id": client.SessionID(),
			"error":      err.Error(),
		})
		return
	}
	h.subscriptionService.HandleSubscriptionRequest(client.SessionID(), client.UserID(), request)
}

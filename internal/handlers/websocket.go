package handlers

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/thereayou/interview-rooms/internal/services"
	ws "github.com/thereayou/interview-rooms/internal/websocket"
)

// storeTimeout после Upgrade контекст запроса больше не используется
const storeTimeout = 5 * time.Second

// WebSocketHandler управляет WebSocket соединениями
type WebSocketHandler struct {
	hub            *ws.Hub
	presence       *services.PresenceService
	messageHandler *MessageHandler
	upgrader       websocket.Upgrader
	log            *logrus.Entry

	// Сокеты от Upgrade до завершения onClose
	mu      sync.Mutex
	closing bool
	active  sync.WaitGroup
}

// NewWebSocketHandler создает новый WebSocket handler
func NewWebSocketHandler(hub *ws.Hub, presence *services.PresenceService, messageHandler *MessageHandler) *WebSocketHandler {
	return &WebSocketHandler{
		hub:            hub,
		presence:       presence,
		messageHandler: messageHandler,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// TODO: Проверить origin в prod
				return true
			},
		},
		log: logrus.WithField("component", "gateway"),
	}
}

// HandleWebSocket подключает сокет к уже открытой через join сессии
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	if !websocket.IsWebSocketUpgrade(c.Request) {
		c.String(http.StatusBadRequest, "Expected websocket upgrade")
		return
	}

	roomID, err := uuid.Parse(c.Param("roomId"))
	if err != nil {
		c.String(http.StatusBadRequest, "Invalid room id")
		return
	}
	connectionID := c.Query("connectionId")
	if connectionID == "" {
		c.String(http.StatusBadRequest, "Missing connectionId")
		return
	}

	session, err := h.presence.AuthorizeConnection(c.Request.Context(), roomID, connectionID)
	if err != nil {
		if services.AsError(err).Code == services.CodeUnknown {
			h.log.WithError(err).WithField("room_id", roomID).Error("failed to authorize connection")
			c.String(http.StatusInternalServerError, "Internal server error")
			return
		}
		c.String(http.StatusUnauthorized, "Unauthorized")
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	logCtx := h.log.WithFields(logrus.Fields{
		"room_id":       roomID,
		"connection_id": connectionID,
	})

	client := ws.NewClient(conn, roomID, connectionID, session.ParticipantID)
	go client.WritePump()
	if !h.track() {
		logCtx.Info("socket rejected during shutdown")
		endClient(client, ws.ReasonClosed)
		return
	}
	if !h.hub.Register(roomID, client) {
		logCtx.Info("socket rejected during shutdown")
		endClient(client, ws.ReasonClosed)
		h.active.Done()
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	// Подключение сокета считается признаком жизни сессии
	if active, err := h.presence.Heartbeat(ctx, connectionID); err != nil {
		logCtx.WithError(err).Warn("initial heartbeat failed")
	} else if active == nil {
		h.hub.Unregister(roomID, client)
		endClient(client, ws.ReasonUnauthorized)
		h.active.Done()
		return
	}

	if snapshot, err := h.presence.Snapshot(ctx, roomID); err != nil {
		logCtx.WithError(err).Error("failed to build initial snapshot")
	} else if err := client.SendMessage(ws.NewPresenceSync(snapshot)); err != nil {
		logCtx.WithError(err).Warn("failed to queue initial snapshot")
	}

	logCtx.Info("socket connected")
	go client.ReadPump(h.messageHandler, func() {
		defer h.active.Done()
		h.onClose(roomID, client)
	})
}

// track false, если сервер уже останавливается
func (h *WebSocketHandler) track() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closing {
		return false
	}
	h.active.Add(1)
	return true
}

// Wait ждет, пока все сокеты закроются и их сессии будут записаны, или истечет ctx.
// Новые сокеты после вызова не принимаются
func (h *WebSocketHandler) Wait(ctx context.Context) error {
	h.mu.Lock()
	h.closing = true
	h.mu.Unlock()

	done := make(chan struct{})
	go func() {
		h.active.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// onClose сессию закрываем, только если в этом процессе не осталось сокета с тем же connectionID
func (h *WebSocketHandler) onClose(roomID uuid.UUID, client *ws.Client) {
	h.hub.Unregister(roomID, client)
	if h.hub.HasConnection(roomID, client.ConnectionID()) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	if err := h.presence.Disconnect(ctx, roomID, client.ConnectionID()); err != nil && !errors.Is(err, services.ErrNotFound) {
		h.log.WithError(err).WithFields(logrus.Fields{
			"room_id":       roomID,
			"connection_id": client.ConnectionID(),
		}).Error("failed to close session")
	}
}

func endClient(client *ws.Client, reason ws.EndReason) {
	payload, err := ws.Encode(ws.NewSessionEnded(reason))
	if err != nil {
		client.Close()
		return
	}
	client.End(payload)
}

package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/thereayou/interview-rooms/internal/services"
	"github.com/thereayou/interview-rooms/internal/websocket"
)

const messageTimeout = 5 * time.Second

// MessageHandler обрабатывает входящие сообщения сокета
type MessageHandler struct {
	presence *services.PresenceService
}

func NewMessageHandler(presence *services.PresenceService) *MessageHandler {
	return &MessageHandler{presence: presence}
}

func (h *MessageHandler) HandleMessage(client *websocket.Client, msg *websocket.InboundMessage) error {
	ctx, cancel := context.WithTimeout(context.Background(), messageTimeout)
	defer cancel()

	switch msg.Type {
	case websocket.TypeHeartbeat:
		return h.handleHeartbeat(ctx, client)

	case websocket.TypeRefreshRequest:
		return h.handleRefresh(ctx, client)

	default:
		return websocket.ErrUnsupported
	}
}

// handleHeartbeat закрытая сессия не продлевается: клиент получает session-ended
func (h *MessageHandler) handleHeartbeat(ctx context.Context, client *websocket.Client) error {
	session, err := h.presence.Heartbeat(ctx, client.ConnectionID())
	if err != nil {
		return h.public(client, "heartbeat", err)
	}
	if session == nil {
		endClient(client, websocket.ReasonUnauthorized)
	}
	return nil
}

// handleRefresh снимок уходит только запросившему клиенту
func (h *MessageHandler) handleRefresh(ctx context.Context, client *websocket.Client) error {
	snapshot, err := h.presence.Snapshot(ctx, client.RoomID)
	if err != nil {
		return h.public(client, "refresh", err)
	}
	return client.SendMessage(websocket.NewPresenceSync(snapshot))
}

func (h *MessageHandler) public(client *websocket.Client, op string, err error) error {
	logrus.WithError(err).WithFields(logrus.Fields{
		"room_id":       client.RoomID,
		"connection_id": client.ConnectionID(),
		"op":            op,
	}).Error("message handling failed")
	return errors.New(services.PublicMessage(err))
}

package websocket

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/thereayou/interview-rooms/internal/models"
)

// MessageType определяет типы сообщений
type MessageType string

const (
	// Сервер -> клиент
	TypePresenceSync MessageType = "presence-sync"
	TypeSessionEnded MessageType = "session-ended"
	TypeError        MessageType = "error"

	// Клиент -> сервер
	TypeHeartbeat      MessageType = "heartbeat"
	TypeRefreshRequest MessageType = "refresh-request"
)

// EndReason причина завершения сессии
type EndReason string

const (
	ReasonDisconnected EndReason = "DISCONNECTED"
	ReasonUnauthorized EndReason = "UNAUTHORIZED"
	ReasonClosed       EndReason = "CLOSED"
)

// Participant представление участника в снимке присутствия
type Participant struct {
	ID               uuid.UUID                `json:"id"`
	Role             models.ParticipantRole   `json:"role"`
	Source           models.ParticipantSource `json:"source"`
	DisplayName      string                   `json:"displayName"`
	IsAnonymous      bool                     `json:"isAnonymous"`
	IsOnline         bool                     `json:"isOnline"`
	ConnectedClients int                      `json:"connectedClients"`
	LastSeenAt       time.Time                `json:"lastSeenAt"`
	JoinedAt         time.Time                `json:"joinedAt"`
	UpdatedAt        time.Time                `json:"updatedAt"`
}

// PresenceSync полный снимок комнаты; клиент заменяет им свое состояние
type PresenceSync struct {
	Type         MessageType   `json:"type"`
	Participants []Participant `json:"participants"`
}

type SessionEnded struct {
	Type   MessageType `json:"type"`
	Reason EndReason   `json:"reason"`
}

type ErrorMessage struct {
	Type    MessageType `json:"type"`
	Message string      `json:"message"`
}

// InboundMessage сообщение от клиента
type InboundMessage struct {
	Type MessageType `json:"type"`
}

func NewPresenceSync(participants []Participant) PresenceSync {
	if participants == nil {
		participants = []Participant{}
	}
	return PresenceSync{Type: TypePresenceSync, Participants: participants}
}

func NewSessionEnded(reason EndReason) SessionEnded {
	return SessionEnded{Type: TypeSessionEnded, Reason: reason}
}

func NewErrorMessage(message string) ErrorMessage {
	return ErrorMessage{Type: TypeError, Message: message}
}

// Encode сериализует сообщение один раз для всех получателей
func Encode(msg any) ([]byte, error) {
	return json.Marshal(msg)
}

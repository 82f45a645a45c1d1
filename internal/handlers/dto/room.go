package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/thereayou/interview-rooms/internal/models"
	"github.com/thereayou/interview-rooms/internal/websocket"
)

// JoinRequest вход в комнату; без JWT участник входит как гость
type JoinRequest struct {
	ConnectionID string         `json:"connectionId"`
	DisplayName  string         `json:"displayName,omitempty"`
	SlugToken    string         `json:"slugToken,omitempty"`
	ClientInfo   map[string]any `json:"clientInfo,omitempty"`
}

type LeaveRequest struct {
	ConnectionID string `json:"connectionId"`
}

type SessionResponse struct {
	ID             uuid.UUID      `json:"id"`
	RoomID         uuid.UUID      `json:"roomId"`
	ParticipantID  uuid.UUID      `json:"participantId"`
	ConnectionID   string         `json:"connectionId"`
	ClientInfo     map[string]any `json:"clientInfo,omitempty"`
	ConnectedAt    time.Time      `json:"connectedAt"`
	LastPingAt     time.Time      `json:"lastPingAt"`
	DisconnectedAt *time.Time     `json:"disconnectedAt,omitempty"`
}

type JoinResponse struct {
	Participant  websocket.Participant   `json:"participant"`
	Session      SessionResponse         `json:"session"`
	GuestToken   string                  `json:"guestToken,omitempty"`
	Created      bool                    `json:"created"`
	Participants []websocket.Participant `json:"participants"`
}

type LeaveResponse struct {
	Session SessionResponse `json:"session"`
}

type ParticipantsResponse struct {
	Participants []websocket.Participant `json:"participants"`
}

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

func NewSessionResponse(s *models.RoomSession) SessionResponse {
	return SessionResponse{
		ID:             s.ID,
		RoomID:         s.RoomID,
		ParticipantID:  s.ParticipantID,
		ConnectionID:   s.ConnectionID,
		ClientInfo:     s.ClientInfo,
		ConnectedAt:    s.ConnectedAt,
		LastPingAt:     s.LastPingAt,
		DisconnectedAt: s.DisconnectedAt,
	}
}

package services

import (
	"time"

	"github.com/thereayou/interview-rooms/internal/models"
	"github.com/thereayou/interview-rooms/internal/websocket"
)

const unknownParticipantName = "Неизвестный участник"

// BuildSnapshot переводит участников с живыми сессиями в представление для клиента
func BuildSnapshot(participants []models.RoomParticipant) []websocket.Participant {
	snapshot := make([]websocket.Participant, 0, len(participants))
	for i := range participants {
		snapshot = append(snapshot, SerializeParticipant(&participants[i]))
	}
	return snapshot
}

// SerializeParticipant ожидает, что в Sessions загружены только активные сессии
func SerializeParticipant(p *models.RoomParticipant) websocket.Participant {
	active := 0
	var lastSeen time.Time
	for i := range p.Sessions {
		s := &p.Sessions[i]
		if !s.IsActive() {
			continue
		}
		active++

		seen := s.LastPingAt
		if seen.IsZero() {
			seen = s.ConnectedAt
		}
		if seen.After(lastSeen) {
			lastSeen = seen
		}
	}
	if active == 0 {
		lastSeen = p.UpdatedAt
	}

	return websocket.Participant{
		ID:               p.ID,
		Role:             p.Role,
		Source:           p.Source,
		DisplayName:      displayName(p),
		IsAnonymous:      p.IsAnonymous(),
		IsOnline:         active > 0,
		ConnectedClients: active,
		LastSeenAt:       lastSeen,
		JoinedAt:         p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}
}

func displayName(p *models.RoomParticipant) string {
	if p.User != nil {
		if p.User.Name != "" {
			return p.User.Name
		}
		if p.User.Email != "" {
			return p.User.Email
		}
	}
	if p.AnonymousProfile != nil && p.AnonymousProfile.DisplayName != "" {
		return p.AnonymousProfile.DisplayName
	}
	return unknownParticipantName
}

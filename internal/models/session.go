package models

import (
	"time"

	"github.com/google/uuid"
)

// RoomSession одно физическое подключение участника
type RoomSession struct {
	ID             uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	RoomID         uuid.UUID      `gorm:"type:uuid;not null;index:idx_session_room_active"`
	ParticipantID  uuid.UUID      `gorm:"type:uuid;not null;index"`
	ConnectionID   string         `gorm:"uniqueIndex;not null;size:128"`
	ClientInfo     map[string]any `gorm:"serializer:json"`
	ConnectedAt    time.Time      `gorm:"not null"`
	LastPingAt     time.Time      `gorm:"not null;index"`
	DisconnectedAt *time.Time     `gorm:"index:idx_session_room_active"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsActive сессия активна, пока не проставлено время отключения
func (s *RoomSession) IsActive() bool {
	return s.DisconnectedAt == nil
}

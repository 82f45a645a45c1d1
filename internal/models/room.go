package models

import (
	"time"

	"github.com/google/uuid"
)

type RoomStatus string

const (
	RoomStatusActive   RoomStatus = "ACTIVE"
	RoomStatusClosed   RoomStatus = "CLOSED"
	RoomStatusArchived RoomStatus = "ARCHIVED"
)

type ApprovalMode string

const (
	ApprovalModeAuto   ApprovalMode = "AUTO"
	ApprovalModeManual ApprovalMode = "MANUAL"
)

type Room struct {
	ID          uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	WorkspaceID uuid.UUID  `gorm:"type:uuid;not null;index"`
	Name        string     `gorm:"not null"`
	Status      RoomStatus `gorm:"not null;default:'ACTIVE';check:status IN ('ACTIVE','CLOSED','ARCHIVED')"`

	// Политика анонимного доступа
	AllowAnonymousView    bool
	AllowAnonymousEdit    bool
	AllowAnonymousJoin    bool
	RequiresMemberAccount bool
	AnonymousApprovalMode ApprovalMode `gorm:"not null;default:'AUTO'"`

	// nil = без ограничения
	MaxParticipants *int

	CreatedBy uuid.UUID `gorm:"type:uuid"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (r *Room) IsActive() bool {
	return r.Status == RoomStatusActive
}

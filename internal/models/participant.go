package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ParticipantSource string

const (
	SourceWorkspaceMember ParticipantSource = "WORKSPACE_MEMBER"
	SourceAnonymous       ParticipantSource = "ANONYMOUS"
)

type ParticipantRole string

const (
	RoleHost         ParticipantRole = "HOST"
	RoleCollaborator ParticipantRole = "COLLABORATOR"
	RoleViewer       ParticipantRole = "VIEWER"
	RoleGuest        ParticipantRole = "GUEST"
)

var ErrParticipantIdentity = errors.New("participant must reference exactly one of user or anonymous profile")

// RoomParticipant постоянная личность внутри комнаты (участник пространства или гость)
type RoomParticipant struct {
	ID                 uuid.UUID         `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	RoomID             uuid.UUID         `gorm:"type:uuid;not null;uniqueIndex:idx_participant_room_user;uniqueIndex:idx_participant_room_profile"`
	Source             ParticipantSource `gorm:"not null"`
	Role               ParticipantRole   `gorm:"not null"`
	UserID             *uuid.UUID        `gorm:"type:uuid;uniqueIndex:idx_participant_room_user"`
	AnonymousProfileID *uuid.UUID        `gorm:"type:uuid;uniqueIndex:idx_participant_room_profile"`
	CreatedAt          time.Time
	UpdatedAt          time.Time

	// Связи
	User             *User                 `gorm:"foreignKey:UserID"`
	AnonymousProfile *RoomAnonymousProfile `gorm:"foreignKey:AnonymousProfileID"`
	Sessions         []RoomSession         `gorm:"foreignKey:ParticipantID"`
}

// BeforeSave не дает записать участника сразу с двумя или без единой личности
func (p *RoomParticipant) BeforeSave(tx *gorm.DB) error {
	return p.ValidateIdentity()
}

func (p *RoomParticipant) ValidateIdentity() error {
	if (p.UserID == nil) == (p.AnonymousProfileID == nil) {
		return ErrParticipantIdentity
	}
	return nil
}

func (p *RoomParticipant) IsAnonymous() bool {
	return p.Source == SourceAnonymous
}

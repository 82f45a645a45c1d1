package models

import (
	"time"

	"github.com/google/uuid"
)

type WorkspaceRole string

const (
	WorkspaceRoleAdmin  WorkspaceRole = "ADMIN"
	WorkspaceRoleEditor WorkspaceRole = "EDITOR"
	WorkspaceRoleViewer WorkspaceRole = "VIEWER"
)

type Workspace struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Name      string    `gorm:"not null"`
	OwnerID   uuid.UUID `gorm:"type:uuid;not null"`
	CreatedAt time.Time
}

// WorkspaceMember членство пользователя в рабочем пространстве
type WorkspaceMember struct {
	ID          uuid.UUID     `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	WorkspaceID uuid.UUID     `gorm:"type:uuid;not null;uniqueIndex:idx_workspace_member"`
	UserID      uuid.UUID     `gorm:"type:uuid;not null;uniqueIndex:idx_workspace_member"`
	Role        WorkspaceRole `gorm:"not null;check:role IN ('ADMIN','EDITOR','VIEWER')"`
	CreatedAt   time.Time
}

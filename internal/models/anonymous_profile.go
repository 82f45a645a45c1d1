package models

import (
	"time"

	"github.com/google/uuid"
)

// RoomAnonymousProfile гостевая личность; сам токен хранится только у клиента
type RoomAnonymousProfile struct {
	ID          uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	RoomID      uuid.UUID `gorm:"type:uuid;not null;index"`
	TokenHash   string    `gorm:"uniqueIndex;not null"`
	DisplayName string    `gorm:"not null"`
	LastUsedAt  time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

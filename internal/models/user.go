package models

import (
	"time"

	"github.com/google/uuid"
)

// User учетная запись, которой управляет внешний слой; здесь только читается
type User struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Name      string
	Email     string `gorm:"uniqueIndex;not null"`
	AvatarURL string
	CreatedAt time.Time
}

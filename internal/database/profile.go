package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/thereayou/interview-rooms/internal/models"
)

func (d *Database) FindProfileByToken(ctx context.Context, roomID uuid.UUID, tokenHash string) (*models.RoomAnonymousProfile, error) {
	var profile models.RoomAnonymousProfile
	err := d.db.WithContext(ctx).
		Where("room_id = ? AND token_hash = ?", roomID, tokenHash).
		First(&profile).Error
	if err != nil {
		return nil, translate(err)
	}
	return &profile, nil
}

func (d *Database) CreateProfile(ctx context.Context, profile *models.RoomAnonymousProfile) error {
	return translate(d.db.WithContext(ctx).Create(profile).Error)
}

func (d *Database) UpdateProfile(ctx context.Context, profile *models.RoomAnonymousProfile) error {
	return translate(d.db.WithContext(ctx).Save(profile).Error)
}

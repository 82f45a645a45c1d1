package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/thereayou/interview-rooms/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func (d *Database) FindParticipantByUser(ctx context.Context, roomID, userID uuid.UUID) (*models.RoomParticipant, error) {
	var participant models.RoomParticipant
	err := d.db.WithContext(ctx).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		First(&participant).Error
	if err != nil {
		return nil, translate(err)
	}
	return &participant, nil
}

func (d *Database) FindParticipantByProfile(ctx context.Context, roomID, profileID uuid.UUID) (*models.RoomParticipant, error) {
	var participant models.RoomParticipant
	err := d.db.WithContext(ctx).
		Where("room_id = ? AND anonymous_profile_id = ?", roomID, profileID).
		First(&participant).Error
	if err != nil {
		return nil, translate(err)
	}
	return &participant, nil
}

func (d *Database) GetParticipant(ctx context.Context, id uuid.UUID) (*models.RoomParticipant, error) {
	var participant models.RoomParticipant
	if err := d.db.WithContext(ctx).First(&participant, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &participant, nil
}

// CreateParticipant при гонке вернет ErrDuplicate
func (d *Database) CreateParticipant(ctx context.Context, participant *models.RoomParticipant) error {
	return translate(d.db.WithContext(ctx).Omit(clause.Associations).Create(participant).Error)
}

func (d *Database) UpdateParticipantRole(ctx context.Context, participant *models.RoomParticipant, role models.ParticipantRole) error {
	if err := d.db.WithContext(ctx).Model(participant).Update("role", role).Error; err != nil {
		return translate(err)
	}
	participant.Role = role
	return nil
}

// ListParticipantsWithActiveSessions участники комнаты вместе с живыми сессиями
func (d *Database) ListParticipantsWithActiveSessions(ctx context.Context, roomID uuid.UUID) ([]models.RoomParticipant, error) {
	var participants []models.RoomParticipant

	err := d.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Preload("User").
		Preload("AnonymousProfile").
		Preload("Sessions", func(db *gorm.DB) *gorm.DB {
			return db.Where("disconnected_at IS NULL").Order("connected_at ASC")
		}).
		Order("created_at ASC").
		Find(&participants).Error

	if err != nil {
		return nil, err
	}
	return participants, nil
}

package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/thereayou/interview-rooms/internal/models"
	"gorm.io/gorm/clause"
)

func (d *Database) FindSessionByConnectionID(ctx context.Context, connectionID string) (*models.RoomSession, error) {
	var session models.RoomSession
	err := d.db.WithContext(ctx).
		Where("connection_id = ?", connectionID).
		First(&session).Error
	if err != nil {
		return nil, translate(err)
	}
	return &session, nil
}

// CreateSession при занятом connectionID вернет ErrDuplicate
func (d *Database) CreateSession(ctx context.Context, session *models.RoomSession) error {
	return translate(d.db.WithContext(ctx).Create(session).Error)
}

func (d *Database) UpdateSession(ctx context.Context, session *models.RoomSession) error {
	return translate(d.db.WithContext(ctx).Save(session).Error)
}

// TouchSession пишет LastPingAt одним UPDATE с условием на активность; закрытую сессию не трогает
func (d *Database) TouchSession(ctx context.Context, connectionID string, at time.Time) (*models.RoomSession, error) {
	var session models.RoomSession
	res := d.db.WithContext(ctx).
		Model(&session).
		Clauses(clause.Returning{}).
		Where("connection_id = ? AND disconnected_at IS NULL", connectionID).
		Update("last_ping_at", at)
	if res.Error != nil {
		return nil, translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return &session, nil
}

// CloseSession true, если именно этот вызов закрыл сессию
func (d *Database) CloseSession(ctx context.Context, sessionID uuid.UUID, at time.Time) (bool, error) {
	res := d.db.WithContext(ctx).
		Model(&models.RoomSession{}).
		Where("id = ? AND disconnected_at IS NULL", sessionID).
		Update("disconnected_at", at)
	if res.Error != nil {
		return false, translate(res.Error)
	}
	return res.RowsAffected > 0, nil
}

// ListActiveParticipantIDs участники, у которых есть хотя бы одна живая сессия
func (d *Database) ListActiveParticipantIDs(ctx context.Context, roomID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := d.db.WithContext(ctx).
		Model(&models.RoomSession{}).
		Where("room_id = ? AND disconnected_at IS NULL", roomID).
		Distinct().
		Pluck("participant_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// DisconnectIdleSessions закрывает сессии без пинга с момента before и возвращает их.
// Условие на last_ping_at проверяется в самом UPDATE, поэтому пинг, успевший раньше, сессию сохраняет
func (d *Database) DisconnectIdleSessions(ctx context.Context, before, now time.Time) ([]models.RoomSession, error) {
	var sessions []models.RoomSession

	err := d.db.WithContext(ctx).
		Model(&sessions).
		Clauses(clause.Returning{}).
		Where("disconnected_at IS NULL AND last_ping_at < ?", before).
		Update("disconnected_at", now).Error
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

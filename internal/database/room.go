package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/thereayou/interview-rooms/internal/models"
)

func (d *Database) GetRoom(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	var room models.Room
	if err := d.db.WithContext(ctx).First(&room, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &room, nil
}

func (d *Database) GetWorkspace(ctx context.Context, id uuid.UUID) (*models.Workspace, error) {
	var workspace models.Workspace
	if err := d.db.WithContext(ctx).First(&workspace, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &workspace, nil
}

func (d *Database) GetWorkspaceMember(ctx context.Context, workspaceID, userID uuid.UUID) (*models.WorkspaceMember, error) {
	var member models.WorkspaceMember
	err := d.db.WithContext(ctx).
		Where("workspace_id = ? AND user_id = ?", workspaceID, userID).
		First(&member).Error
	if err != nil {
		return nil, translate(err)
	}
	return &member, nil
}

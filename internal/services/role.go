package services

import "github.com/thereayou/interview-rooms/internal/models"

// ResolveRole роль участника по роли в рабочем пространстве
func ResolveRole(workspaceRole models.WorkspaceRole, isOwner bool) models.ParticipantRole {
	if isOwner {
		return models.RoleHost
	}
	switch workspaceRole {
	case models.WorkspaceRoleAdmin:
		return models.RoleHost
	case models.WorkspaceRoleEditor:
		return models.RoleCollaborator
	default:
		return models.RoleViewer
	}
}

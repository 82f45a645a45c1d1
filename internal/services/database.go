package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/thereayou/interview-rooms/internal/models"
)

// Store операции хранилища, которые использует ядро присутствия.
// Отсутствие записи - database.ErrNotFound, нарушение уникальности - database.ErrDuplicate.
type Store interface {
	GetRoom(ctx context.Context, id uuid.UUID) (*models.Room, error)
	GetWorkspace(ctx context.Context, id uuid.UUID) (*models.Workspace, error)
	GetWorkspaceMember(ctx context.Context, workspaceID, userID uuid.UUID) (*models.WorkspaceMember, error)

	FindParticipantByUser(ctx context.Context, roomID, userID uuid.UUID) (*models.RoomParticipant, error)
	FindParticipantByProfile(ctx context.Context, roomID, profileID uuid.UUID) (*models.RoomParticipant, error)
	GetParticipant(ctx context.Context, id uuid.UUID) (*models.RoomParticipant, error)
	CreateParticipant(ctx context.Context, participant *models.RoomParticipant) error
	UpdateParticipantRole(ctx context.Context, participant *models.RoomParticipant, role models.ParticipantRole) error
	ListParticipantsWithActiveSessions(ctx context.Context, roomID uuid.UUID) ([]models.RoomParticipant, error)

	FindProfileByToken(ctx context.Context, roomID uuid.UUID, tokenHash string) (*models.RoomAnonymousProfile, error)
	CreateProfile(ctx context.Context, profile *models.RoomAnonymousProfile) error
	UpdateProfile(ctx context.Context, profile *models.RoomAnonymousProfile) error

	FindSessionByConnectionID(ctx context.Context, connectionID string) (*models.RoomSession, error)
	CreateSession(ctx context.Context, session *models.RoomSession) error
	UpdateSession(ctx context.Context, session *models.RoomSession) error
	// TouchSession обновляет LastPingAt только у активной сессии, иначе ErrNotFound
	TouchSession(ctx context.Context, connectionID string, at time.Time) (*models.RoomSession, error)
	// CloseSession проставляет DisconnectedAt, только если сессия еще активна
	CloseSession(ctx context.Context, sessionID uuid.UUID, at time.Time) (bool, error)
	ListActiveParticipantIDs(ctx context.Context, roomID uuid.UUID) ([]uuid.UUID, error)
	DisconnectIdleSessions(ctx context.Context, before, now time.Time) ([]models.RoomSession, error)
}

package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"github.com/thereayou/interview-rooms/internal/models"
	"golang.org/x/crypto/blake2b"
)

const (
	minDisplayNameLength = 2
	maxDisplayNameLength = 48

	guestTokenBytes = 32
)

// Resolution результат сопоставления личности с участником комнаты
type Resolution struct {
	Participant *models.RoomParticipant
	Created     bool
	// GuestToken возвращается гостю, чтобы он мог вернуться под той же личностью
	GuestToken string
}

// ParticipantResolver находит или создает участника комнаты
type ParticipantResolver struct {
	store    Store
	now      func() time.Time
	newToken func() (string, error)
}

func NewParticipantResolver(store Store, now func() time.Time) *ParticipantResolver {
	return &ParticipantResolver{store: store, now: now, newToken: newGuestToken}
}

// Resolve сопоставляет личность с участником комнаты, создавая его при первом входе
func (r *ParticipantResolver) Resolve(ctx context.Context, room *models.Room, identity Identity) (*Resolution, error) {
	if !room.IsActive() {
		return nil, forbidden("room is not active")
	}

	switch id := identity.(type) {
	case MemberIdentity:
		return r.resolveMember(ctx, room, id)
	case AnonymousIdentity:
		return r.resolveAnonymous(ctx, room, id)
	default:
		return nil, validation("identity", "unsupported identity")
	}
}

func (r *ParticipantResolver) resolveMember(ctx context.Context, room *models.Room, id MemberIdentity) (*Resolution, error) {
	workspace, err := r.store.GetWorkspace(ctx, room.WorkspaceID)
	if err != nil {
		if isNotFound(err) {
			return nil, notFound("workspace not found")
		}
		return nil, internal("get workspace", err)
	}

	isOwner := workspace.OwnerID == id.UserID
	var workspaceRole models.WorkspaceRole
	if isOwner {
		workspaceRole = models.WorkspaceRoleAdmin
	} else {
		member, err := r.store.GetWorkspaceMember(ctx, room.WorkspaceID, id.UserID)
		if err != nil {
			if isNotFound(err) {
				return nil, forbidden("you are not a member of this workspace")
			}
			return nil, internal("get workspace member", err)
		}
		workspaceRole = member.Role
	}
	role := ResolveRole(workspaceRole, isOwner)

	find := func() (*models.RoomParticipant, error) {
		return r.store.FindParticipantByUser(ctx, room.ID, id.UserID)
	}
	userID := id.UserID
	participant, created, err := r.findOrCreate(ctx, find, &models.RoomParticipant{
		RoomID: room.ID,
		Source: models.SourceWorkspaceMember,
		Role:   role,
		UserID: &userID,
	})
	if err != nil {
		return nil, err
	}

	// Роль участника отражает текущую роль в пространстве, а не роль на момент входа
	if participant.Role != role {
		if err := r.store.UpdateParticipantRole(ctx, participant, role); err != nil {
			return nil, internal("update participant role", err)
		}
	}

	return &Resolution{Participant: participant, Created: created}, nil
}

func (r *ParticipantResolver) resolveAnonymous(ctx context.Context, room *models.Room, id AnonymousIdentity) (*Resolution, error) {
	switch {
	case room.RequiresMemberAccount:
		return nil, forbidden("room requires a member account")
	case !room.AllowAnonymousJoin:
		return nil, forbidden("anonymous join is disabled for this room")
	case room.AnonymousApprovalMode == models.ApprovalModeManual:
		return nil, forbidden("anonymous join requires host approval")
	}

	displayName, ok := NormalizeDisplayName(id.DisplayName)
	if !ok {
		return nil, validation("displayName", "display name must be between 2 and 48 characters")
	}

	profile, token, err := r.profileFor(ctx, room, id.SlugToken, displayName)
	if err != nil {
		return nil, err
	}

	find := func() (*models.RoomParticipant, error) {
		return r.store.FindParticipantByProfile(ctx, room.ID, profile.ID)
	}
	profileID := profile.ID
	participant, created, err := r.findOrCreate(ctx, find, &models.RoomParticipant{
		RoomID:             room.ID,
		Source:             models.SourceAnonymous,
		Role:               models.RoleGuest,
		AnonymousProfileID: &profileID,
	})
	if err != nil {
		return nil, err
	}
	participant.AnonymousProfile = profile

	return &Resolution{Participant: participant, Created: created, GuestToken: token}, nil
}

// profileFor переиспользует профиль по токену или выпускает новый
func (r *ParticipantResolver) profileFor(ctx context.Context, room *models.Room, token, displayName string) (*models.RoomAnonymousProfile, string, error) {
	now := r.now()

	if token != "" {
		profile, err := r.store.FindProfileByToken(ctx, room.ID, HashGuestToken(token))
		switch {
		case err == nil:
			profile.DisplayName = displayName
			profile.LastUsedAt = now
			if err := r.store.UpdateProfile(ctx, profile); err != nil {
				return nil, "", internal("update anonymous profile", err)
			}
			return profile, token, nil
		case !isNotFound(err):
			return nil, "", internal("find anonymous profile", err)
		}
		logrus.WithField("room_id", room.ID).Debug("unknown guest token, issuing a new one")
	}

	token, err := r.newToken()
	if err != nil {
		return nil, "", internal("generate guest token", err)
	}
	profile := &models.RoomAnonymousProfile{
		RoomID:      room.ID,
		TokenHash:   HashGuestToken(token),
		DisplayName: displayName,
		LastUsedAt:  now,
	}
	if err := r.store.CreateProfile(ctx, profile); err != nil {
		return nil, "", internal("create anonymous profile", err)
	}
	return profile, token, nil
}

// findOrCreate идемпотентен: при гонке уникальный индекс отдает ErrDuplicate, и запись перечитывается
func (r *ParticipantResolver) findOrCreate(
	ctx context.Context,
	find func() (*models.RoomParticipant, error),
	candidate *models.RoomParticipant,
) (*models.RoomParticipant, bool, error) {
	existing, err := find()
	if err == nil {
		return existing, false, nil
	}
	if !isNotFound(err) {
		return nil, false, internal("find participant", err)
	}

	if err := r.store.CreateParticipant(ctx, candidate); err != nil {
		if !isDuplicate(err) {
			return nil, false, internal("create participant", err)
		}
		existing, err := find()
		if err != nil {
			return nil, false, internal("reload participant", err)
		}
		return existing, false, nil
	}
	return candidate, true, nil
}

// NormalizeDisplayName обрезает края и схлопывает пробелы; длина считается в символах
func NormalizeDisplayName(name string) (string, bool) {
	normalized := strings.Join(strings.Fields(name), " ")
	n := utf8.RuneCountInString(normalized)
	if n < minDisplayNameLength || n > maxDisplayNameLength {
		return "", false
	}
	return normalized, true
}

// HashGuestToken в базе хранится только дайджест токена
func HashGuestToken(token string) string {
	sum := blake2b.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func newGuestToken() (string, error) {
	buf := make([]byte, guestTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

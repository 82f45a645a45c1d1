// Package memory хранилище в памяти процесса с теми же гарантиями уникальности, что и у Postgres.
// Используется в тестах и при DB_DRIVER=memory.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/thereayou/interview-rooms/internal/database"
	"github.com/thereayou/interview-rooms/internal/models"
)

type Store struct {
	mu           sync.RWMutex
	users        map[uuid.UUID]models.User
	workspaces   map[uuid.UUID]models.Workspace
	members      map[uuid.UUID]models.WorkspaceMember
	rooms        map[uuid.UUID]models.Room
	participants map[uuid.UUID]models.RoomParticipant
	profiles     map[uuid.UUID]models.RoomAnonymousProfile
	sessions     map[uuid.UUID]models.RoomSession
	now          func() time.Time
}

func NewStore() *Store {
	return &Store{
		users:        make(map[uuid.UUID]models.User),
		workspaces:   make(map[uuid.UUID]models.Workspace),
		members:      make(map[uuid.UUID]models.WorkspaceMember),
		rooms:        make(map[uuid.UUID]models.Room),
		participants: make(map[uuid.UUID]models.RoomParticipant),
		profiles:     make(map[uuid.UUID]models.RoomAnonymousProfile),
		sessions:     make(map[uuid.UUID]models.RoomSession),
		now:          time.Now,
	}
}

// SetClock задает время для CreatedAt/UpdatedAt
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

// --- наполнение данными, которыми управляет внешний слой ---

func (s *Store) AddUser(user *models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ensureID(&user.ID)
	if user.CreatedAt.IsZero() {
		user.CreatedAt = s.now()
	}
	s.users[user.ID] = *user
}

func (s *Store) AddWorkspace(workspace *models.Workspace) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ensureID(&workspace.ID)
	if workspace.CreatedAt.IsZero() {
		workspace.CreatedAt = s.now()
	}
	s.workspaces[workspace.ID] = *workspace
}

func (s *Store) AddWorkspaceMember(member *models.WorkspaceMember) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ensureID(&member.ID)
	if member.CreatedAt.IsZero() {
		member.CreatedAt = s.now()
	}
	s.members[member.ID] = *member
}

// SetWorkspaceRole меняет роль существующего члена пространства
func (s *Store) SetWorkspaceRole(workspaceID, userID uuid.UUID, role models.WorkspaceRole) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, m := range s.members {
		if m.WorkspaceID == workspaceID && m.UserID == userID {
			m.Role = role
			s.members[id] = m
			return true
		}
	}
	return false
}

func (s *Store) AddRoom(room *models.Room) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ensureID(&room.ID)
	now := s.now()
	if room.Status == "" {
		room.Status = models.RoomStatusActive
	}
	if room.AnonymousApprovalMode == "" {
		room.AnonymousApprovalMode = models.ApprovalModeAuto
	}
	if room.CreatedAt.IsZero() {
		room.CreatedAt = now
	}
	room.UpdatedAt = now
	s.rooms[room.ID] = *room
}

// --- комнаты и пространства ---

func (s *Store) GetRoom(_ context.Context, id uuid.UUID) (*models.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return &room, nil
}

func (s *Store) GetWorkspace(_ context.Context, id uuid.UUID) (*models.Workspace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	workspace, ok := s.workspaces[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return &workspace, nil
}

func (s *Store) GetWorkspaceMember(_ context.Context, workspaceID, userID uuid.UUID) (*models.WorkspaceMember, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.members {
		if m.WorkspaceID == workspaceID && m.UserID == userID {
			member := m
			return &member, nil
		}
	}
	return nil, database.ErrNotFound
}

// --- участники ---

func (s *Store) FindParticipantByUser(_ context.Context, roomID, userID uuid.UUID) (*models.RoomParticipant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.participants {
		if p.RoomID == roomID && p.UserID != nil && *p.UserID == userID {
			participant := p
			return &participant, nil
		}
	}
	return nil, database.ErrNotFound
}

func (s *Store) FindParticipantByProfile(_ context.Context, roomID, profileID uuid.UUID) (*models.RoomParticipant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.participants {
		if p.RoomID == roomID && p.AnonymousProfileID != nil && *p.AnonymousProfileID == profileID {
			participant := p
			return &participant, nil
		}
	}
	return nil, database.ErrNotFound
}

func (s *Store) GetParticipant(_ context.Context, id uuid.UUID) (*models.RoomParticipant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.participants[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return &p, nil
}

func (s *Store) CreateParticipant(_ context.Context, participant *models.RoomParticipant) error {
	if err := participant.ValidateIdentity(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.participants {
		if p.RoomID != participant.RoomID {
			continue
		}
		if participant.UserID != nil && p.UserID != nil && *p.UserID == *participant.UserID {
			return database.ErrDuplicate
		}
		if participant.AnonymousProfileID != nil && p.AnonymousProfileID != nil &&
			*p.AnonymousProfileID == *participant.AnonymousProfileID {
			return database.ErrDuplicate
		}
	}

	ensureID(&participant.ID)
	now := s.now()
	participant.CreatedAt = now
	participant.UpdatedAt = now

	stored := *participant
	stored.User = nil
	stored.AnonymousProfile = nil
	stored.Sessions = nil
	s.participants[stored.ID] = stored
	return nil
}

func (s *Store) UpdateParticipantRole(_ context.Context, participant *models.RoomParticipant, role models.ParticipantRole) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.participants[participant.ID]
	if !ok {
		return database.ErrNotFound
	}
	stored.Role = role
	stored.UpdatedAt = s.now()
	s.participants[stored.ID] = stored

	participant.Role = role
	participant.UpdatedAt = stored.UpdatedAt
	return nil
}

func (s *Store) ListParticipantsWithActiveSessions(_ context.Context, roomID uuid.UUID) ([]models.RoomParticipant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]models.RoomParticipant, 0)
	for _, p := range s.participants {
		if p.RoomID != roomID {
			continue
		}
		if p.UserID != nil {
			if user, ok := s.users[*p.UserID]; ok {
				p.User = &user
			}
		}
		if p.AnonymousProfileID != nil {
			if profile, ok := s.profiles[*p.AnonymousProfileID]; ok {
				p.AnonymousProfile = &profile
			}
		}
		p.Sessions = nil
		for _, session := range s.sessions {
			if session.ParticipantID == p.ID && session.IsActive() {
				p.Sessions = append(p.Sessions, session)
			}
		}
		sort.Slice(p.Sessions, func(i, j int) bool {
			return p.Sessions[i].ConnectedAt.Before(p.Sessions[j].ConnectedAt)
		})
		result = append(result, p)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID.String() < result[j].ID.String()
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// --- анонимные профили ---

func (s *Store) FindProfileByToken(_ context.Context, roomID uuid.UUID, tokenHash string) (*models.RoomAnonymousProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.profiles {
		if p.RoomID == roomID && p.TokenHash == tokenHash {
			profile := p
			return &profile, nil
		}
	}
	return nil, database.ErrNotFound
}

func (s *Store) CreateProfile(_ context.Context, profile *models.RoomAnonymousProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.profiles {
		if p.TokenHash == profile.TokenHash {
			return database.ErrDuplicate
		}
	}
	ensureID(&profile.ID)
	now := s.now()
	profile.CreatedAt = now
	profile.UpdatedAt = now
	s.profiles[profile.ID] = *profile
	return nil
}

func (s *Store) UpdateProfile(_ context.Context, profile *models.RoomAnonymousProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[profile.ID]; !ok {
		return database.ErrNotFound
	}
	profile.UpdatedAt = s.now()
	s.profiles[profile.ID] = *profile
	return nil
}

// --- сессии ---

func (s *Store) FindSessionByConnectionID(_ context.Context, connectionID string) (*models.RoomSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, session := range s.sessions {
		if session.ConnectionID == connectionID {
			found := copySession(session)
			return &found, nil
		}
	}
	return nil, database.ErrNotFound
}

func (s *Store) CreateSession(_ context.Context, session *models.RoomSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.sessions {
		if existing.ConnectionID == session.ConnectionID {
			return database.ErrDuplicate
		}
	}
	ensureID(&session.ID)
	now := s.now()
	session.CreatedAt = now
	session.UpdatedAt = now
	s.sessions[session.ID] = copySession(*session)
	return nil
}

func (s *Store) UpdateSession(_ context.Context, session *models.RoomSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[session.ID]; !ok {
		return database.ErrNotFound
	}
	session.UpdatedAt = s.now()
	s.sessions[session.ID] = copySession(*session)
	return nil
}

func (s *Store) TouchSession(_ context.Context, connectionID string, at time.Time) (*models.RoomSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, session := range s.sessions {
		if session.ConnectionID != connectionID {
			continue
		}
		if !session.IsActive() {
			return nil, database.ErrNotFound
		}
		session.LastPingAt = at
		session.UpdatedAt = s.now()
		s.sessions[id] = session
		touched := copySession(session)
		return &touched, nil
	}
	return nil, database.ErrNotFound
}

func (s *Store) CloseSession(_ context.Context, sessionID uuid.UUID, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok || !session.IsActive() {
		return false, nil
	}
	session.DisconnectedAt = &at
	session.UpdatedAt = s.now()
	s.sessions[sessionID] = session
	return true, nil
}

func (s *Store) ListActiveParticipantIDs(_ context.Context, roomID uuid.UUID) ([]uuid.UUID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[uuid.UUID]struct{})
	ids := make([]uuid.UUID, 0)
	for _, session := range s.sessions {
		if session.RoomID != roomID || !session.IsActive() {
			continue
		}
		if _, ok := seen[session.ParticipantID]; ok {
			continue
		}
		seen[session.ParticipantID] = struct{}{}
		ids = append(ids, session.ParticipantID)
	}
	return ids, nil
}

func (s *Store) DisconnectIdleSessions(_ context.Context, before, now time.Time) ([]models.RoomSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var closed []models.RoomSession
	for id, session := range s.sessions {
		if !session.IsActive() || !session.LastPingAt.Before(before) {
			continue
		}
		at := now
		session.DisconnectedAt = &at
		session.UpdatedAt = now
		s.sessions[id] = session
		closed = append(closed, copySession(session))
	}
	return closed, nil
}

// copySession не дает вызывающему менять сохраненные указатель и карту
func copySession(session models.RoomSession) models.RoomSession {
	if session.DisconnectedAt != nil {
		at := *session.DisconnectedAt
		session.DisconnectedAt = &at
	}
	if session.ClientInfo != nil {
		info := make(map[string]any, len(session.ClientInfo))
		for k, v := range session.ClientInfo {
			info[k] = v
		}
		session.ClientInfo = info
	}
	return session
}

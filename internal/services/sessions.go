package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/thereayou/interview-rooms/internal/models"
)

const maxConnectionIDLength = 128

// SessionManager связывает физическое подключение (connectionID) с записью RoomSession
type SessionManager struct {
	store Store
	now   func() time.Time
}

func NewSessionManager(store Store, now func() time.Time) *SessionManager {
	return &SessionManager{store: store, now: now}
}

// ValidateConnectionID connectionID генерирует клиент, поэтому проверяем его форму
func ValidateConnectionID(connectionID string) error {
	if connectionID == "" || len(connectionID) > maxConnectionIDLength {
		return validation("connectionId", "connection id must be 1 to 128 characters")
	}
	return nil
}

// Open создает сессию или переподключает существующую с тем же connectionID
func (m *SessionManager) Open(
	ctx context.Context,
	room *models.Room,
	participant *models.RoomParticipant,
	connectionID string,
	clientInfo map[string]any,
) (*models.RoomSession, error) {
	if err := ValidateConnectionID(connectionID); err != nil {
		return nil, err
	}

	existing, err := m.store.FindSessionByConnectionID(ctx, connectionID)
	switch {
	case err == nil:
		return m.reconnect(ctx, existing, room, participant, clientInfo)
	case !isNotFound(err):
		return nil, internal("find session", err)
	}

	now := m.now()
	session := &models.RoomSession{
		RoomID:        room.ID,
		ParticipantID: participant.ID,
		ConnectionID:  connectionID,
		ClientInfo:    clientInfo,
		ConnectedAt:   now,
		LastPingAt:    now,
	}
	if err := m.store.CreateSession(ctx, session); err != nil {
		if !isDuplicate(err) {
			return nil, internal("create session", err)
		}
		// Параллельный Open с тем же connectionID успел первым
		existing, err := m.store.FindSessionByConnectionID(ctx, connectionID)
		if err != nil {
			return nil, internal("reload session", err)
		}
		return m.reconnect(ctx, existing, room, participant, clientInfo)
	}
	return session, nil
}

// reconnect единственный путь, который возвращает отключенную сессию к жизни
func (m *SessionManager) reconnect(
	ctx context.Context,
	session *models.RoomSession,
	room *models.Room,
	participant *models.RoomParticipant,
	clientInfo map[string]any,
) (*models.RoomSession, error) {
	if session.ParticipantID != participant.ID || session.RoomID != room.ID {
		return nil, conflict("connection id is already used by another participant")
	}

	session.DisconnectedAt = nil
	session.LastPingAt = m.now()
	if len(clientInfo) > 0 {
		if session.ClientInfo == nil {
			session.ClientInfo = make(map[string]any, len(clientInfo))
		}
		for k, v := range clientInfo {
			session.ClientInfo[k] = v
		}
	}

	if err := m.store.UpdateSession(ctx, session); err != nil {
		return nil, internal("update session", err)
	}
	return session, nil
}

// Close идемпотентен: уже закрытая сессия возвращается как есть
func (m *SessionManager) Close(ctx context.Context, roomID uuid.UUID, connectionID string) (*models.RoomSession, error) {
	session, _, err := m.close(ctx, roomID, connectionID)
	return session, err
}

// close дополнительно сообщает, изменилось ли состояние сессии
func (m *SessionManager) close(ctx context.Context, roomID uuid.UUID, connectionID string) (*models.RoomSession, bool, error) {
	session, err := m.store.FindSessionByConnectionID(ctx, connectionID)
	if err != nil {
		if isNotFound(err) {
			return nil, false, notFound("session not found")
		}
		return nil, false, internal("find session", err)
	}
	if session.RoomID != roomID {
		return nil, false, notFound("session not found")
	}
	if !session.IsActive() {
		return session, false, nil
	}

	now := m.now()
	changed, err := m.store.CloseSession(ctx, session.ID, now)
	if err != nil {
		return nil, false, internal("close session", err)
	}
	if !changed {
		// Сессию успели закрыть параллельно; отдаем то, что записано
		current, err := m.store.FindSessionByConnectionID(ctx, connectionID)
		if err != nil {
			return nil, false, internal("reload session", err)
		}
		return current, false, nil
	}
	session.DisconnectedAt = &now
	return session, true, nil
}

// Heartbeat обновляет LastPingAt; nil без ошибки значит, что подключение уже не активно
func (m *SessionManager) Heartbeat(ctx context.Context, connectionID string) (*models.RoomSession, error) {
	session, err := m.store.TouchSession(ctx, connectionID, m.now())
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, internal("heartbeat session", err)
	}
	return session, nil
}

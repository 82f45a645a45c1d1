package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/thereayou/interview-rooms/internal/models"
	"github.com/thereayou/interview-rooms/internal/websocket"
)

// RoomNotifier локальная рассылка по сокетам комнаты
type RoomNotifier interface {
	Broadcast(roomID uuid.UUID, payload []byte) int
	EndConnection(roomID uuid.UUID, connectionID string, payload []byte) int
}

// Relay пересылка изменений на другие экземпляры сервиса
type Relay interface {
	PublishRoomChanged(ctx context.Context, roomID uuid.UUID) error
	PublishConnectionEnded(ctx context.Context, roomID uuid.UUID, connectionID string, reason websocket.EndReason) error
}

type JoinRequest struct {
	RoomID       uuid.UUID
	Identity     Identity
	ConnectionID string
	ClientInfo   map[string]any
}

type JoinResult struct {
	Participant  websocket.Participant
	Session      *models.RoomSession
	GuestToken   string
	Created      bool
	Participants []websocket.Participant
}

type Option func(*PresenceService)

func WithClock(now func() time.Time) Option {
	return func(s *PresenceService) { s.now = now }
}

func WithRelay(relay Relay) Option {
	return func(s *PresenceService) { s.relay = relay }
}

// WithIdleTimeout сессии без heartbeat дольше timeout закрываются при очистке; 0 отключает очистку
func WithIdleTimeout(timeout time.Duration) Option {
	return func(s *PresenceService) { s.idleTimeout = timeout }
}

// PresenceService точка входа ядра присутствия для внешнего слоя и транспорта
type PresenceService struct {
	store       Store
	notifier    RoomNotifier
	relay       Relay
	resolver    *ParticipantResolver
	sessions    *SessionManager
	now         func() time.Time
	idleTimeout time.Duration
	log         *logrus.Entry
}

func NewPresenceService(store Store, notifier RoomNotifier, opts ...Option) *PresenceService {
	if store == nil {
		panic("Store cannot be nil for PresenceService")
	}
	if notifier == nil {
		panic("RoomNotifier cannot be nil for PresenceService")
	}

	s := &PresenceService{
		store:    store,
		notifier: notifier,
		now:      time.Now,
		log:      logrus.WithField("component", "presence"),
	}
	for _, opt := range opts {
		opt(s)
	}

	now := func() time.Time { return s.now().UTC() }
	s.resolver = NewParticipantResolver(store, now)
	s.sessions = NewSessionManager(store, now)
	return s
}

// JoinRoom находит участника, проверяет лимит, открывает сессию и рассылает снимок
func (s *PresenceService) JoinRoom(ctx context.Context, req JoinRequest) (*JoinResult, error) {
	if err := ValidateConnectionID(req.ConnectionID); err != nil {
		return nil, err
	}

	room, err := s.getRoom(ctx, req.RoomID)
	if err != nil {
		return nil, err
	}

	resolution, err := s.resolver.Resolve(ctx, room, req.Identity)
	if err != nil {
		return nil, err
	}
	participant := resolution.Participant

	// Активный набор считается заново на каждую попытку входа
	active, err := s.store.ListActiveParticipantIDs(ctx, room.ID)
	if err != nil {
		return nil, internal("list active participants", err)
	}
	if err := CheckCapacity(room, participant.ID, active); err != nil {
		return nil, err
	}

	session, err := s.sessions.Open(ctx, room, participant, req.ConnectionID, req.ClientInfo)
	if err != nil {
		return nil, err
	}

	logCtx := s.log.WithFields(logrus.Fields{
		"room_id":        room.ID,
		"participant_id": participant.ID,
		"connection_id":  session.ConnectionID,
	})
	logCtx.Info("participant joined")

	snapshot, err := s.notifyRoomChanged(ctx, room.ID)
	if err != nil {
		return nil, err
	}

	result := &JoinResult{
		Session:      session,
		GuestToken:   resolution.GuestToken,
		Created:      resolution.Created,
		Participants: snapshot,
	}
	result.Participant = SerializeParticipant(participant)
	for _, p := range snapshot {
		if p.ID == participant.ID {
			result.Participant = p
			break
		}
	}
	return result, nil
}

// LeaveRoom закрывает сессию и завершает ее сокеты, если они еще открыты
func (s *PresenceService) LeaveRoom(ctx context.Context, roomID uuid.UUID, connectionID string) (*models.RoomSession, error) {
	if err := ValidateConnectionID(connectionID); err != nil {
		return nil, err
	}

	session, changed, err := s.sessions.close(ctx, roomID, connectionID)
	if err != nil {
		return nil, err
	}

	s.endConnection(ctx, roomID, connectionID, websocket.ReasonDisconnected)
	if changed {
		if _, err := s.notifyRoomChanged(ctx, roomID); err != nil {
			s.log.WithError(err).WithField("room_id", roomID).Error("failed to broadcast presence after leave")
		}
	}
	return session, nil
}

// Disconnect вызывается транспортом при закрытии сокета
func (s *PresenceService) Disconnect(ctx context.Context, roomID uuid.UUID, connectionID string) error {
	_, changed, err := s.sessions.close(ctx, roomID, connectionID)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	_, err = s.notifyRoomChanged(ctx, roomID)
	return err
}

// ListParticipants снимок присутствия комнаты
func (s *PresenceService) ListParticipants(ctx context.Context, roomID uuid.UUID) ([]websocket.Participant, error) {
	if _, err := s.getRoom(ctx, roomID); err != nil {
		return nil, err
	}
	return s.Snapshot(ctx, roomID)
}

// Snapshot строит снимок без проверки комнаты
func (s *PresenceService) Snapshot(ctx context.Context, roomID uuid.UUID) ([]websocket.Participant, error) {
	participants, err := s.store.ListParticipantsWithActiveSessions(ctx, roomID)
	if err != nil {
		return nil, internal("list participants", err)
	}
	return BuildSnapshot(participants), nil
}

// AuthorizeConnection сокет можно открыть только для живой сессии этой комнаты
func (s *PresenceService) AuthorizeConnection(ctx context.Context, roomID uuid.UUID, connectionID string) (*models.RoomSession, error) {
	if err := ValidateConnectionID(connectionID); err != nil {
		return nil, err
	}

	session, err := s.store.FindSessionByConnectionID(ctx, connectionID)
	if err != nil {
		if isNotFound(err) {
			return nil, notFound("session not found")
		}
		return nil, internal("find session", err)
	}
	if session.RoomID != roomID || !session.IsActive() {
		return nil, notFound("session not found")
	}
	return session, nil
}

// Heartbeat nil без ошибки значит, что сессия больше не активна
func (s *PresenceService) Heartbeat(ctx context.Context, connectionID string) (*models.RoomSession, error) {
	return s.sessions.Heartbeat(ctx, connectionID)
}

// SweepIdleSessions закрывает сессии без heartbeat дольше idleTimeout
func (s *PresenceService) SweepIdleSessions(ctx context.Context) (int, error) {
	if s.idleTimeout <= 0 {
		return 0, nil
	}

	now := s.now().UTC()
	sessions, err := s.store.DisconnectIdleSessions(ctx, now.Add(-s.idleTimeout), now)
	if err != nil {
		return 0, internal("disconnect idle sessions", err)
	}
	if len(sessions) == 0 {
		return 0, nil
	}

	rooms := make(map[uuid.UUID]struct{})
	for _, session := range sessions {
		rooms[session.RoomID] = struct{}{}
		s.endConnection(ctx, session.RoomID, session.ConnectionID, websocket.ReasonDisconnected)
	}
	for roomID := range rooms {
		if _, err := s.notifyRoomChanged(ctx, roomID); err != nil {
			s.log.WithError(err).WithField("room_id", roomID).Error("failed to broadcast presence after sweep")
		}
	}

	s.log.WithFields(logrus.Fields{
		"sessions": len(sessions),
		"rooms":    len(rooms),
	}).Info("idle sessions disconnected")
	return len(sessions), nil
}

// BroadcastLocal рассылает свежий снимок сокетам этого экземпляра
func (s *PresenceService) BroadcastLocal(ctx context.Context, roomID uuid.UUID) ([]websocket.Participant, error) {
	snapshot, err := s.Snapshot(ctx, roomID)
	if err != nil {
		return nil, err
	}
	payload, err := websocket.Encode(websocket.NewPresenceSync(snapshot))
	if err != nil {
		return nil, internal("encode presence", err)
	}
	s.notifier.Broadcast(roomID, payload)
	return snapshot, nil
}

// OnRoomChanged событие с другого экземпляра
func (s *PresenceService) OnRoomChanged(ctx context.Context, roomID uuid.UUID) {
	if _, err := s.BroadcastLocal(ctx, roomID); err != nil {
		s.log.WithError(err).WithField("room_id", roomID).Error("failed to apply relayed presence")
	}
}

// OnConnectionEnded событие с другого экземпляра
func (s *PresenceService) OnConnectionEnded(ctx context.Context, roomID uuid.UUID, connectionID string, reason websocket.EndReason) {
	s.endLocal(roomID, connectionID, reason)
}

// notifyRoomChanged рассылка завершается до возврата; другим экземплярам уходит событие
func (s *PresenceService) notifyRoomChanged(ctx context.Context, roomID uuid.UUID) ([]websocket.Participant, error) {
	snapshot, err := s.BroadcastLocal(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if s.relay != nil {
		if err := s.relay.PublishRoomChanged(ctx, roomID); err != nil {
			s.log.WithError(err).WithField("room_id", roomID).Warn("failed to relay presence change")
		}
	}
	return snapshot, nil
}

func (s *PresenceService) endConnection(ctx context.Context, roomID uuid.UUID, connectionID string, reason websocket.EndReason) {
	s.endLocal(roomID, connectionID, reason)
	if s.relay != nil {
		if err := s.relay.PublishConnectionEnded(ctx, roomID, connectionID, reason); err != nil {
			s.log.WithError(err).WithField("room_id", roomID).Warn("failed to relay connection end")
		}
	}
}

func (s *PresenceService) endLocal(roomID uuid.UUID, connectionID string, reason websocket.EndReason) {
	payload, err := websocket.Encode(websocket.NewSessionEnded(reason))
	if err != nil {
		s.log.WithError(err).Error("failed to encode session-ended")
		return
	}
	s.notifier.EndConnection(roomID, connectionID, payload)
}

func (s *PresenceService) getRoom(ctx context.Context, roomID uuid.UUID) (*models.Room, error) {
	room, err := s.store.GetRoom(ctx, roomID)
	if err != nil {
		if isNotFound(err) {
			return nil, notFound("room not found")
		}
		return nil, internal("get room", err)
	}
	return room, nil
}

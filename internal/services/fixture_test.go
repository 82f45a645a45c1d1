package services

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/thereayou/interview-rooms/internal/database/memory"
	"github.com/thereayou/interview-rooms/internal/models"
	"github.com/thereayou/interview-rooms/internal/websocket"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type endedCall struct {
	RoomID       uuid.UUID
	ConnectionID string
	Reason       websocket.EndReason
}

// recordingNotifier запоминает все рассылки вместо отправки в сокеты
type recordingNotifier struct {
	mu         sync.Mutex
	broadcasts map[uuid.UUID][][]websocket.Participant
	ended      []endedCall
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{broadcasts: make(map[uuid.UUID][][]websocket.Participant)}
}

func (n *recordingNotifier) Broadcast(roomID uuid.UUID, payload []byte) int {
	var msg websocket.PresenceSync
	if err := json.Unmarshal(payload, &msg); err != nil {
		panic(err)
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.broadcasts[roomID] = append(n.broadcasts[roomID], msg.Participants)
	return 1
}

func (n *recordingNotifier) EndConnection(roomID uuid.UUID, connectionID string, payload []byte) int {
	var msg websocket.SessionEnded
	if err := json.Unmarshal(payload, &msg); err != nil {
		panic(err)
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.ended = append(n.ended, endedCall{RoomID: roomID, ConnectionID: connectionID, Reason: msg.Reason})
	return 1
}

func (n *recordingNotifier) Broadcasts(roomID uuid.UUID) [][]websocket.Participant {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([][]websocket.Participant(nil), n.broadcasts[roomID]...)
}

func (n *recordingNotifier) Ended() []endedCall {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]endedCall(nil), n.ended...)
}

type fixture struct {
	t         *testing.T
	store     *memory.Store
	clock     *testClock
	notifier  *recordingNotifier
	presence  *PresenceService
	workspace *models.Workspace
	owner     *models.User
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	clock := newTestClock()
	store := memory.NewStore()
	store.SetClock(clock.Now)

	owner := &models.User{Name: "Owner", Email: "owner@example.com"}
	store.AddUser(owner)
	workspace := &models.Workspace{Name: "Hiring", OwnerID: owner.ID}
	store.AddWorkspace(workspace)

	notifier := newRecordingNotifier()
	opts = append([]Option{WithClock(clock.Now)}, opts...)

	return &fixture{
		t:         t,
		store:     store,
		clock:     clock,
		notifier:  notifier,
		presence:  NewPresenceService(store, notifier, opts...),
		workspace: workspace,
		owner:     owner,
	}
}

func (f *fixture) room(modify func(r *models.Room)) *models.Room {
	room := &models.Room{
		WorkspaceID:        f.workspace.ID,
		Name:               "Backend interview",
		AllowAnonymousJoin: true,
		CreatedBy:          f.owner.ID,
	}
	if modify != nil {
		modify(room)
	}
	f.store.AddRoom(room)
	return room
}

func (f *fixture) member(name string, role models.WorkspaceRole) *models.User {
	user := &models.User{Name: name, Email: name + "@example.com"}
	f.store.AddUser(user)
	f.store.AddWorkspaceMember(&models.WorkspaceMember{
		WorkspaceID: f.workspace.ID,
		UserID:      user.ID,
		Role:        role,
	})
	return user
}

func (f *fixture) joinGuest(room *models.Room, name, token, connectionID string) (*JoinResult, error) {
	return f.presence.JoinRoom(context.Background(), JoinRequest{
		RoomID:       room.ID,
		Identity:     AnonymousIdentity{DisplayName: name, SlugToken: token},
		ConnectionID: connectionID,
	})
}

func (f *fixture) mustJoinGuest(room *models.Room, name, token, connectionID string) *JoinResult {
	f.t.Helper()
	result, err := f.joinGuest(room, name, token, connectionID)
	require.NoError(f.t, err)
	return result
}

func (f *fixture) joinMember(room *models.Room, user *models.User, connectionID string) (*JoinResult, error) {
	return f.presence.JoinRoom(context.Background(), JoinRequest{
		RoomID:       room.ID,
		Identity:     MemberIdentity{UserID: user.ID},
		ConnectionID: connectionID,
	})
}

func findParticipant(t *testing.T, snapshot []websocket.Participant, id uuid.UUID) websocket.Participant {
	t.Helper()
	for _, p := range snapshot {
		if p.ID == id {
			return p
		}
	}
	require.Failf(t, "participant missing from snapshot", "id %s", id)
	return websocket.Participant{}
}

func intPtr(v int) *int {
	return &v
}

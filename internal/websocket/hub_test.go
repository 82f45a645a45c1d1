package websocket

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	mu       sync.Mutex
	id       string
	full     bool
	received [][]byte
	ended    []byte
	isEnded  bool
	closed   bool
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{id: id}
}

func (c *fakeConn) ConnectionID() string { return c.id }

func (c *fakeConn) Enqueue(payload []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.full || c.closed {
		return false
	}
	c.received = append(c.received, payload)
	return true
}

func (c *fakeConn) End(payload []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ended = payload
	c.isEnded = true
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeConn) Received() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.received)
}

func TestHubBroadcastOnlyReachesRoom(t *testing.T) {
	h := NewHub()
	roomA, roomB := uuid.New(), uuid.New()
	a1, a2, b1 := newFakeConn("a1"), newFakeConn("a2"), newFakeConn("b1")
	h.Register(roomA, a1)
	h.Register(roomA, a2)
	h.Register(roomB, b1)

	assert.Equal(t, 2, h.Broadcast(roomA, []byte("hello")))
	assert.Equal(t, 1, a1.Received())
	assert.Equal(t, 1, a2.Received())
	assert.Zero(t, b1.Received())
}

func TestHubBroadcastExcept(t *testing.T) {
	h := NewHub()
	room := uuid.New()
	sender, other := newFakeConn("s"), newFakeConn("o")
	h.Register(room, sender)
	h.Register(room, other)

	assert.Equal(t, 1, h.BroadcastExcept(room, []byte("x"), sender))
	assert.Zero(t, sender.Received())
	assert.Equal(t, 1, other.Received())
}

func TestHubDropsUnwritableConnections(t *testing.T) {
	h := NewHub()
	room := uuid.New()
	healthy, stuck := newFakeConn("ok"), newFakeConn("stuck")
	stuck.full = true
	h.Register(room, healthy)
	h.Register(room, stuck)

	assert.Equal(t, 1, h.Broadcast(room, []byte("x")))
	assert.True(t, stuck.closed)
	assert.False(t, h.HasConnection(room, "stuck"))
	assert.Equal(t, 1, h.RoomSize(room))
}

func TestHubUnregisterRemovesEmptyRoom(t *testing.T) {
	h := NewHub()
	room := uuid.New()
	conn := newFakeConn("c")
	h.Register(room, conn)

	assert.True(t, h.Unregister(room, conn))
	assert.False(t, h.Unregister(room, conn))
	assert.Zero(t, h.RoomSize(room))
	h.mu.Lock()
	_, exists := h.rooms[room]
	h.mu.Unlock()
	assert.False(t, exists)
}

func TestHubEndConnection(t *testing.T) {
	h := NewHub()
	room := uuid.New()
	first, second, other := newFakeConn("dup"), newFakeConn("dup"), newFakeConn("other")
	h.Register(room, first)
	h.Register(room, second)
	h.Register(room, other)

	assert.Equal(t, 2, h.EndConnection(room, "dup", []byte("bye")))
	assert.True(t, first.isEnded)
	assert.True(t, second.isEnded)
	assert.Equal(t, []byte("bye"), first.ended)
	assert.False(t, other.isEnded)
	assert.False(t, h.HasConnection(room, "dup"))
	assert.True(t, h.HasConnection(room, "other"))
}

func TestHubShutdown(t *testing.T) {
	h := NewHub()
	a, b := newFakeConn("a"), newFakeConn("b")
	h.Register(uuid.New(), a)
	h.Register(uuid.New(), b)

	h.Shutdown([]byte("closed"))

	assert.True(t, a.isEnded)
	assert.True(t, b.isEnded)
	assert.Zero(t, h.Broadcast(uuid.New(), []byte("x")))

	room := uuid.New()
	late := newFakeConn("late")
	assert.False(t, h.Register(room, late))
	assert.Zero(t, h.RoomSize(room))
}

func TestHubConcurrentAccess(t *testing.T) {
	h := NewHub()
	room := uuid.New()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conn := newFakeConn(uuid.NewString())
			h.Register(room, conn)
			h.Broadcast(room, []byte("x"))
			h.Unregister(room, conn)
		}()
	}
	wg.Wait()

	assert.Zero(t, h.RoomSize(room))
}

type mockRelayHandler struct {
	mock.Mock
}

func (m *mockRelayHandler) OnRoomChanged(ctx context.Context, roomID uuid.UUID) {
	m.Called(roomID)
}

func (m *mockRelayHandler) OnConnectionEnded(ctx context.Context, roomID uuid.UUID, connectionID string, reason EndReason) {
	m.Called(roomID, connectionID, reason)
}

func TestRelayDispatch(t *testing.T) {
	relay := NewRedisRelay(nil, "node-a")
	room := uuid.New()

	handler := new(mockRelayHandler)
	handler.On("OnRoomChanged", room).Once()
	handler.On("OnConnectionEnded", room, "conn-1", ReasonDisconnected).Once()

	assert.True(t, relay.dispatch(context.Background(), []byte(`{"origin":"node-b","room_id":"`+room.String()+`"}`), handler))
	assert.True(t, relay.dispatch(context.Background(),
		[]byte(`{"origin":"node-b","room_id":"`+room.String()+`","connection_id":"conn-1","reason":"DISCONNECTED"}`), handler))

	// Свои события и мусор игнорируются
	assert.False(t, relay.dispatch(context.Background(), []byte(`{"origin":"node-a","room_id":"`+room.String()+`"}`), handler))
	assert.False(t, relay.dispatch(context.Background(), []byte(`{"origin":"node-b"}`), handler))
	assert.False(t, relay.dispatch(context.Background(), []byte(`not json`), handler))

	handler.AssertExpectations(t)
}

func TestMessagesEncode(t *testing.T) {
	data, err := Encode(NewPresenceSync(nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"presence-sync","participants":[]}`, string(data))

	data, err = Encode(NewSessionEnded(ReasonClosed))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"session-ended","reason":"CLOSED"}`, string(data))
}

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thereayou/interview-rooms/internal/database/memory"
	"github.com/thereayou/interview-rooms/internal/handlers/dto"
	"github.com/thereayou/interview-rooms/internal/middleware"
	"github.com/thereayou/interview-rooms/internal/models"
	"github.com/thereayou/interview-rooms/internal/services"
	ws "github.com/thereayou/interview-rooms/internal/websocket"
	"github.com/thereayou/interview-rooms/pkg/auth"
)

type testEnv struct {
	t      *testing.T
	server *httptest.Server
	store  *memory.Store
	hub     *ws.Hub
	sockets *WebSocketHandler
	jwt    *auth.JWTManager
	owner  *models.User
	room   *models.Room
}

func newTestEnv(t *testing.T, modify func(r *models.Room)) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memory.NewStore()
	owner := &models.User{Name: "Owner", Email: "owner@example.com"}
	store.AddUser(owner)
	workspace := &models.Workspace{Name: "Hiring", OwnerID: owner.ID}
	store.AddWorkspace(workspace)
	room := &models.Room{WorkspaceID: workspace.ID, Name: "Interview", AllowAnonymousJoin: true}
	if modify != nil {
		modify(room)
	}
	store.AddRoom(room)

	hub := ws.NewHub()
	presence := services.NewPresenceService(store, hub)
	jwt := auth.NewJWTManager("secret", time.Hour)

	roomH := NewRoomHandler(presence)
	wsH := NewWebSocketHandler(hub, presence, NewMessageHandler(presence))

	r := gin.New()
	rooms := r.Group("/rooms/:roomId")
	rooms.POST("/join", middleware.OptionalAuth(jwt, nil), roomH.JoinRoom)
	rooms.POST("/leave", roomH.LeaveRoom)
	rooms.GET("/participants", roomH.GetParticipants)
	rooms.GET("/connect", wsH.HandleWebSocket)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return &testEnv{t: t, server: srv, store: store, hub: hub, sockets: wsH, jwt: jwt, owner: owner, room: room}
}

func (e *testEnv) post(path string, body any, token string) (*http.Response, []byte) {
	e.t.Helper()
	data, err := json.Marshal(body)
	require.NoError(e.t, err)

	req, err := http.NewRequest(http.MethodPost, e.server.URL+path, bytes.NewReader(data))
	require.NoError(e.t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(e.t, err)
	defer resp.Body.Close()

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(e.t, err)
	return resp, buf.Bytes()
}

func (e *testEnv) joinGuest(name, connectionID string) dto.JoinResponse {
	e.t.Helper()
	resp, body := e.post("/rooms/"+e.room.ID.String()+"/join", dto.JoinRequest{
		ConnectionID: connectionID,
		DisplayName:  name,
	}, "")
	require.Equal(e.t, http.StatusOK, resp.StatusCode, string(body))

	var out dto.JoinResponse
	require.NoError(e.t, json.Unmarshal(body, &out))
	return out
}

func (e *testEnv) dial(roomID uuid.UUID, connectionID string) (*websocket.Conn, *http.Response, error) {
	url := "ws" + strings.TrimPrefix(e.server.URL, "http") + "/rooms/" + roomID.String() + "/connect?connectionId=" + connectionID
	return websocket.DefaultDialer.Dial(url, nil)
}

func (e *testEnv) connect(connectionID string) *websocket.Conn {
	e.t.Helper()
	conn, _, err := e.dial(e.room.ID, connectionID)
	require.NoError(e.t, err)
	e.t.Cleanup(func() { conn.Close() })
	return conn
}

type envelope struct {
	Type         ws.MessageType   `json:"type"`
	Reason       ws.EndReason     `json:"reason"`
	Message      string           `json:"message"`
	Participants []ws.Participant `json:"participants"`
}

// waitFor читает сообщения, пока не встретится подходящее
func waitFor(t *testing.T, conn *websocket.Conn, match func(envelope) bool) envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var msg envelope
		require.NoError(t, conn.ReadJSON(&msg))
		if match(msg) {
			return msg
		}
	}
}

func ofType(typ ws.MessageType) func(envelope) bool {
	return func(m envelope) bool { return m.Type == typ }
}

func decodeError(t *testing.T, body []byte) dto.ErrorBody {
	t.Helper()
	var out dto.ErrorResponse
	require.NoError(t, json.Unmarshal(body, &out))
	return out.Error
}

func TestJoinAsGuest(t *testing.T) {
	env := newTestEnv(t, nil)

	out := env.joinGuest("  Jane   Doe ", "conn-1")

	assert.True(t, out.Created)
	assert.NotEmpty(t, out.GuestToken)
	assert.Equal(t, "Jane Doe", out.Participant.DisplayName)
	assert.Equal(t, models.RoleGuest, out.Participant.Role)
	assert.Equal(t, "conn-1", out.Session.ConnectionID)
	assert.Len(t, out.Participants, 1)
}

func TestJoinAsMember(t *testing.T) {
	env := newTestEnv(t, nil)
	token, err := env.jwt.Generate(env.owner.ID)
	require.NoError(t, err)

	resp, body := env.post("/rooms/"+env.room.ID.String()+"/join", dto.JoinRequest{ConnectionID: "conn-1"}, token)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var out dto.JoinResponse
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, models.RoleHost, out.Participant.Role)
	assert.Equal(t, "Owner", out.Participant.DisplayName)
	assert.Empty(t, out.GuestToken)
}

func TestJoinErrors(t *testing.T) {
	env := newTestEnv(t, func(r *models.Room) { r.MaxParticipants = intPtr(1) })
	env.joinGuest("First", "conn-1")
	path := "/rooms/" + env.room.ID.String() + "/join"

	cases := []struct {
		name   string
		path   string
		body   dto.JoinRequest
		status int
		code   services.ErrorCode
		field  string
	}{
		{"short display name", path, dto.JoinRequest{ConnectionID: "c", DisplayName: "x"}, http.StatusUnprocessableEntity, services.CodeValidation, "displayName"},
		{"missing connection id", path, dto.JoinRequest{DisplayName: "Guest"}, http.StatusUnprocessableEntity, services.CodeValidation, "connectionId"},
		{"room full", path, dto.JoinRequest{ConnectionID: "conn-2", DisplayName: "Second"}, http.StatusConflict, services.CodeLimitReached, ""},
		{"unknown room", "/rooms/" + uuid.NewString() + "/join", dto.JoinRequest{ConnectionID: "c", DisplayName: "Guest"}, http.StatusNotFound, services.CodeNotFound, ""},
		{"malformed room id", "/rooms/nope/join", dto.JoinRequest{ConnectionID: "c", DisplayName: "Guest"}, http.StatusNotFound, services.CodeNotFound, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, body := env.post(tc.path, tc.body, "")
			assert.Equal(t, tc.status, resp.StatusCode)

			e := decodeError(t, body)
			assert.Equal(t, string(tc.code), e.Code)
			assert.Equal(t, tc.field, e.Field)
			assert.NotEmpty(t, e.Message)
		})
	}
}

func TestJoinForbiddenForAnonymousInMemberRoom(t *testing.T) {
	env := newTestEnv(t, func(r *models.Room) { r.RequiresMemberAccount = true })

	resp, body := env.post("/rooms/"+env.room.ID.String()+"/join", dto.JoinRequest{ConnectionID: "c", DisplayName: "Guest"}, "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, string(services.CodeForbidden), decodeError(t, body).Code)
}

func TestLeaveAndList(t *testing.T) {
	env := newTestEnv(t, nil)
	joined := env.joinGuest("Guest", "conn-1")

	resp, body := env.post("/rooms/"+env.room.ID.String()+"/leave", dto.LeaveRequest{ConnectionID: "conn-1"}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var left dto.LeaveResponse
	require.NoError(t, json.Unmarshal(body, &left))
	assert.NotNil(t, left.Session.DisconnectedAt)

	listResp, err := http.Get(env.server.URL + "/rooms/" + env.room.ID.String() + "/participants")
	require.NoError(t, err)
	defer listResp.Body.Close()
	require.Equal(t, http.StatusOK, listResp.StatusCode)

	var list dto.ParticipantsResponse
	require.NoError(t, json.NewDecoder(listResp.Body).Decode(&list))
	require.Len(t, list.Participants, 1)
	assert.Equal(t, joined.Participant.ID, list.Participants[0].ID)
	assert.False(t, list.Participants[0].IsOnline)

	resp, _ = env.post("/rooms/"+env.room.ID.String()+"/leave", dto.LeaveRequest{ConnectionID: "missing"}, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGatewayRejectsPlainHTTP(t *testing.T) {
	env := newTestEnv(t, nil)
	env.joinGuest("Guest", "conn-1")

	resp, err := http.Get(env.server.URL + "/rooms/" + env.room.ID.String() + "/connect?connectionId=conn-1")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGatewayRejectsBadRequests(t *testing.T) {
	env := newTestEnv(t, nil)
	env.joinGuest("Guest", "conn-1")

	_, resp, err := env.dial(env.room.ID, "")
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	_, resp, err = env.dial(env.room.ID, "unknown")
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = env.dial(uuid.New(), "conn-1")
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestGatewaySendsInitialSnapshot(t *testing.T) {
	env := newTestEnv(t, nil)
	joined := env.joinGuest("Guest", "conn-1")

	conn := env.connect("conn-1")
	msg := waitFor(t, conn, ofType(ws.TypePresenceSync))

	require.Len(t, msg.Participants, 1)
	assert.Equal(t, joined.Participant.ID, msg.Participants[0].ID)
	assert.True(t, msg.Participants[0].IsOnline)
}

func TestGatewayInboundMessages(t *testing.T) {
	env := newTestEnv(t, nil)
	env.joinGuest("Guest", "conn-1")
	conn := env.connect("conn-1")
	waitFor(t, conn, ofType(ws.TypePresenceSync))

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "refresh-request"}))
	waitFor(t, conn, ofType(ws.TypePresenceSync))

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "dance"}))
	msg := waitFor(t, conn, ofType(ws.TypeError))
	assert.Equal(t, ws.ErrUnsupported.Error(), msg.Message)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{")))
	msg = waitFor(t, conn, ofType(ws.TypeError))
	assert.Equal(t, ws.ErrInvalidMessage.Error(), msg.Message)

	// Соединение остается открытым после ошибок
	require.NoError(t, conn.WriteJSON(map[string]string{"type": "heartbeat"}))
	require.NoError(t, conn.WriteJSON(map[string]string{"type": "refresh-request"}))
	waitFor(t, conn, ofType(ws.TypePresenceSync))
}

func TestGatewayDisconnectBroadcastsPresence(t *testing.T) {
	env := newTestEnv(t, nil)
	a := env.joinGuest("Alice", "conn-a")
	env.joinGuest("Bob", "conn-b")

	connA := env.connect("conn-a")
	waitFor(t, connA, ofType(ws.TypePresenceSync))
	connB := env.connect("conn-b")
	waitFor(t, connB, ofType(ws.TypePresenceSync))

	require.NoError(t, connA.Close())

	msg := waitFor(t, connB, func(m envelope) bool {
		if m.Type != ws.TypePresenceSync {
			return false
		}
		for _, p := range m.Participants {
			if p.ID == a.Participant.ID {
				return !p.IsOnline
			}
		}
		return false
	})
	assert.Len(t, msg.Participants, 2)

	_, resp, err := env.dial(env.room.ID, "conn-a")
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLeaveEndsOpenSocket(t *testing.T) {
	env := newTestEnv(t, nil)
	env.joinGuest("Guest", "conn-1")
	conn := env.connect("conn-1")
	waitFor(t, conn, ofType(ws.TypePresenceSync))

	resp, _ := env.post("/rooms/"+env.room.ID.String()+"/leave", dto.LeaveRequest{ConnectionID: "conn-1"}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	msg := waitFor(t, conn, ofType(ws.TypeSessionEnded))
	assert.Equal(t, ws.ReasonDisconnected, msg.Reason)
	assert.False(t, env.hub.HasConnection(env.room.ID, "conn-1"))
}

func TestShutdownEndsSocketsAndRejectsLateOnes(t *testing.T) {
	e := newTestEnv(t, nil)
	e.joinGuest("Alice", "conn-a")
	e.joinGuest("Bob", "conn-b")

	conn := e.connect("conn-a")
	waitFor(t, conn, ofType(ws.TypePresenceSync))

	payload, err := ws.Encode(ws.NewSessionEnded(ws.ReasonClosed))
	require.NoError(t, err)
	e.hub.Shutdown(payload)

	ended := waitFor(t, conn, ofType(ws.TypeSessionEnded))
	assert.Equal(t, ws.ReasonClosed, ended.Reason)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	require.NoError(t, e.sockets.Wait(ctx))

	session, err := e.store.FindSessionByConnectionID(context.Background(), "conn-a")
	require.NoError(t, err)
	assert.False(t, session.IsActive())

	late := e.connect("conn-b")
	ended = waitFor(t, late, ofType(ws.TypeSessionEnded))
	assert.Equal(t, ws.ReasonClosed, ended.Reason)
	assert.False(t, e.hub.HasConnection(e.room.ID, "conn-b"))
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, statusFor(services.CodeNotFound))
	assert.Equal(t, http.StatusForbidden, statusFor(services.CodeForbidden))
	assert.Equal(t, http.StatusUnprocessableEntity, statusFor(services.CodeValidation))
	assert.Equal(t, http.StatusConflict, statusFor(services.CodeLimitReached))
	assert.Equal(t, http.StatusConflict, statusFor(services.CodeConflict))
	assert.Equal(t, http.StatusInternalServerError, statusFor(services.CodeUnknown))
}

func intPtr(v int) *int {
	return &v
}

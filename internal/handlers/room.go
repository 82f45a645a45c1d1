package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/thereayou/interview-rooms/internal/handlers/dto"
	"github.com/thereayou/interview-rooms/internal/middleware"
	"github.com/thereayou/interview-rooms/internal/services"
)

type RoomHandler struct {
	presence *services.PresenceService
}

func NewRoomHandler(presence *services.PresenceService) *RoomHandler {
	return &RoomHandler{presence: presence}
}

// JoinRoom входит в комнату участником пространства или гостем
func (h *RoomHandler) JoinRoom(c *gin.Context) {
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}

	var req dto.JoinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, "body", "invalid request body")
		return
	}

	var identity services.Identity
	if userID, ok := middleware.CurrentUserID(c); ok {
		identity = services.MemberIdentity{UserID: userID}
	} else {
		identity = services.AnonymousIdentity{DisplayName: req.DisplayName, SlugToken: req.SlugToken}
	}

	result, err := h.presence.JoinRoom(c.Request.Context(), services.JoinRequest{
		RoomID:       roomID,
		Identity:     identity,
		ConnectionID: req.ConnectionID,
		ClientInfo:   req.ClientInfo,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.JoinResponse{
		Participant:  result.Participant,
		Session:      dto.NewSessionResponse(result.Session),
		GuestToken:   result.GuestToken,
		Created:      result.Created,
		Participants: result.Participants,
	})
}

// LeaveRoom закрывает сессию подключения
func (h *RoomHandler) LeaveRoom(c *gin.Context) {
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}

	var req dto.LeaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, "body", "invalid request body")
		return
	}

	session, err := h.presence.LeaveRoom(c.Request.Context(), roomID, req.ConnectionID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.LeaveResponse{Session: dto.NewSessionResponse(session)})
}

// GetParticipants снимок присутствия комнаты
func (h *RoomHandler) GetParticipants(c *gin.Context) {
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}

	participants, err := h.presence.ListParticipants(c.Request.Context(), roomID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ParticipantsResponse{Participants: participants})
}

// roomIDParam некорректный id не может указывать на существующую комнату
func roomIDParam(c *gin.Context) (uuid.UUID, bool) {
	roomID, err := uuid.Parse(c.Param("roomId"))
	if err != nil {
		respondError(c, &services.Error{Code: services.CodeNotFound, Message: "room not found"})
		return uuid.Nil, false
	}
	return roomID, true
}

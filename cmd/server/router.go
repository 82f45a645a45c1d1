package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/thereayou/interview-rooms/internal/handlers"
)

func APIEndpoints(r *gin.Engine, roomH *handlers.RoomHandler, wsH *handlers.WebSocketHandler, optionalAuth gin.HandlerFunc) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Room presence endpoints
	rooms := r.Group("/rooms/:roomId")
	{
		rooms.POST("/join", optionalAuth, roomH.JoinRoom)
		rooms.POST("/leave", roomH.LeaveRoom)
		rooms.GET("/participants", roomH.GetParticipants)
		rooms.GET("/connect", wsH.HandleWebSocket)
	}
}

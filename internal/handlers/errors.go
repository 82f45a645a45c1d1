package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/thereayou/interview-rooms/internal/handlers/dto"
	"github.com/thereayou/interview-rooms/internal/services"
)

// statusFor HTTP статус для кода ошибки сервиса
func statusFor(code services.ErrorCode) int {
	switch code {
	case services.CodeNotFound:
		return http.StatusNotFound
	case services.CodeForbidden:
		return http.StatusForbidden
	case services.CodeValidation:
		return http.StatusUnprocessableEntity
	case services.CodeLimitReached, services.CodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondError пишет ошибку в едином формате; внутренние ошибки только логируются
func respondError(c *gin.Context, err error) {
	e := services.AsError(err)
	status := statusFor(e.Code)

	if status == http.StatusInternalServerError {
		logrus.WithError(err).WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.FullPath(),
		}).Error("request failed")
	}

	c.AbortWithStatusJSON(status, dto.ErrorResponse{Error: dto.ErrorBody{
		Code:    string(e.Code),
		Message: services.PublicMessage(e),
		Field:   e.Field,
	}})
}

func respondValidation(c *gin.Context, field, message string) {
	respondError(c, &services.Error{Code: services.CodeValidation, Message: message, Field: field})
}

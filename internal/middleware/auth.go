package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/thereayou/interview-rooms/pkg/auth"
)

const UserIDKey = "userID"

const blacklistPrefix = "blacklist:"

// OptionalAuth пропускает запрос без токена как анонимный; неверный токен дает 401.
// redisClient может быть nil, тогда черный список не проверяется; без jwtManager любой токен отклоняется.
func OptionalAuth(jwtManager *auth.JWTManager, redisClient *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := auth.ExtractTokenFromHeader(c.Request)
		if errors.Is(err, auth.ErrMissingToken) {
			c.Next()
			return
		}
		if err != nil {
			abortUnauthorized(c, "missing or invalid token")
			return
		}
		if jwtManager == nil {
			abortUnauthorized(c, "member authentication is disabled")
			return
		}

		// Проверяем, не в черном списке ли токен
		if redisClient != nil {
			exists, err := redisClient.Exists(c.Request.Context(), blacklistPrefix+token).Result()
			if err != nil {
				logrus.WithError(err).Error("blacklist lookup failed")
				abortUnauthorized(c, "token check unavailable")
				return
			}
			if exists > 0 {
				abortUnauthorized(c, "token is blacklisted")
				return
			}
		}

		userID, err := jwtManager.UserID(token)
		if err != nil {
			abortUnauthorized(c, "invalid token")
			return
		}

		c.Set(UserIDKey, userID)
		c.Next()
	}
}

// CurrentUserID id пользователя, если запрос пришел с валидным токеном
func CurrentUserID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(UserIDKey)
	if !ok {
		return uuid.Nil, false
	}
	userID, ok := v.(uuid.UUID)
	return userID, ok
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error": gin.H{"code": "UNAUTHORIZED", "message": message},
	})
}

package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"serotonyl.ru/green-earth/internal/common"
)

// RateLimit ограничивает запросы по пользователю, а до авторизации по IP.
func RateLimit(rl *common.RateLimiter[string]) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "ip:" + c.ClientIP()
		if userID := GetUserID(c); userID != uuid.Nil {
			key = "user:" + userID.String()
		}
		if !rl.Allow(key) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "слишком много запросов, подождите немного"})
			return
		}
		c.Next()
	}
}

package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Logger пишет по строке на запрос: метод, путь, статус, время, пользователь.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := log.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
			"ip":      c.ClientIP(),
		}
		if userID := GetUserID(c); userID != uuid.Nil {
			fields["user_id"] = userID
		}

		entry := log.WithFields(fields)
		switch {
		case c.Writer.Status() >= 500:
			entry.Error("HTTP запрос")
		case c.Writer.Status() >= 400:
			entry.Info("HTTP запрос")
		default:
			entry.Debug("HTTP запрос")
		}
	}
}

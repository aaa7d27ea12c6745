package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Audit writes one structured log line for each successful admin mutation.
func Audit(logger *zap.Logger, action string) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		if c.Writer.Status() >= 400 {
			return
		}

		fields := []zap.Field{
			zap.String("action", action),
			zap.String("path", c.Request.URL.Path),
			zap.String("session_id", c.Param("sessionId")),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		}
		if claims := ClaimsFromContext(c); claims != nil {
			fields = append(fields, zap.String("user_id", claims.UserID))
		}
		if id := c.Param("draftId"); id != "" {
			fields = append(fields, zap.String("draft_id", id))
		}
		if id := c.Param("familyId"); id != "" {
			fields = append(fields, zap.String("family_id", id))
		}
		logger.Info("audit", fields...)
	}
}

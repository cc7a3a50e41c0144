package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Pabby01/studIQ-sub001/pkg/logger"
)

// RequestLogger writes one access log line per request. Query strings are
// left out since reset links carry the token there.
func RequestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			logger.String("method", c.Request.Method),
			logger.String("path", c.Request.URL.Path),
			logger.String("client_ip", c.ClientIP()),
			logger.Int("status", status),
			logger.Duration("duration", time.Since(start)),
			logger.String("user_agent", c.Request.UserAgent()),
			logger.String("trace_id", c.GetString(ContextTrace)),
		}

		switch {
		case status >= 500:
			log.Error("HTTP request", fields...)
		case status >= 400:
			log.Warn("HTTP request", fields...)
		default:
			log.Info("HTTP request", fields...)
		}
	}
}

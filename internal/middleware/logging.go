package middleware

import (
	"math/rand"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequestLogger логирует каждый запрос и — для доли запросов
// sampleRate — его длительность. Медленные запросы (дольше секунды)
// логируются всегда.
func RequestLogger(logger *zap.Logger, sampleRate float64) gin.HandlerFunc {
	const slowThreshold = time.Second

	return func(c *gin.Context) {
		logger.Info("Request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("ip", c.ClientIP()),
		)

		sampled := rand.Float64() < sampleRate
		start := time.Now()

		c.Next()

		duration := time.Since(start)
		if sampled || duration > slowThreshold {
			logger.Debug("Request completed",
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.Int("status", c.Writer.Status()),
				zap.Duration("duration", duration),
			)
		}
	}
}

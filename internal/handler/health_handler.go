package handler

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"shortly/internal/repository"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type HealthHandler struct {
	db       *repository.PostgresDB
	logger   *zap.Logger
	detailed bool
	started  time.Time
}

func NewHealthHandler(db *repository.PostgresDB, logger *zap.Logger, detailed bool) *HealthHandler {
	return &HealthHandler{
		db:       db,
		logger:   logger,
		detailed: detailed,
		started:  time.Now(),
	}
}

// Check godoc
// @Summary Health check
// @Description Liveness status; with HEALTH_DETAILED includes DB and memory checks
// @Tags health
// @Produce json
// @Success 200 {object} map[string]any
// @Router /api/health [get]
func (h *HealthHandler) Check(c *gin.Context) {
	status := gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if !h.detailed {
		c.JSON(http.StatusOK, status)
		return
	}

	status["details"] = gin.H{
		"database": h.checkDatabase(c.Request.Context()),
		"memory":   memoryUsage(),
		"uptime":   int(time.Since(h.started).Seconds()),
	}

	c.JSON(http.StatusOK, status)
}

func (h *HealthHandler) checkDatabase(ctx context.Context) gin.H {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	start := time.Now()
	if err := h.db.Pool.Ping(ctx); err != nil {
		h.logger.Error("Database health check failed", zap.Error(err))
		return gin.H{"status": "error"}
	}

	return gin.H{
		"status":       "ok",
		"responseTime": time.Since(start).Milliseconds(),
	}
}

func memoryUsage() gin.H {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return gin.H{
		"alloc": fmt.Sprintf("%d MB", m.Alloc/1024/1024),
		"sys":   fmt.Sprintf("%d MB", m.Sys/1024/1024),
	}
}

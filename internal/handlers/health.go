package handlers

import (
	"net/http"

	"eventhub/internal/db"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

type HealthHandler struct {
	db *gorm.DB
}

func NewHealthHandler(gdb *gorm.DB) *HealthHandler {
	return &HealthHandler{db: gdb}
}

func (h *HealthHandler) Index(c *gin.Context) {
	Success(c, http.StatusOK, gin.H{"hello": "world"})
}

// Healthz reports whether the database answers.
func (h *HealthHandler) Healthz(c *gin.Context) {
	if err := db.Ping(h.db); err != nil {
		zerolog.Ctx(c.Request.Context()).Warn().Err(err).Msg("health check failed")
		Success(c, http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	Success(c, http.StatusOK, gin.H{"status": "ok"})
}

func NotFound(c *gin.Context) {
	Fail(c, http.StatusNotFound, "Not Found")
}

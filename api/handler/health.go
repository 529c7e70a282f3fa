package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hybridguard/filterengine/models"
)

// Health returns a handler for GET /health. Intentionally outside
// auth so monitoring probes always work.
func Health(a *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, models.HealthResponse{
			Status:  "healthy",
			Uptime:  time.Since(a.StartTime).Round(time.Second).String(),
			Version: a.Version,
		})
	}
}

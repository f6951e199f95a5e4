package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Health answers liveness probes
// @Summary Health check
// @Tags System
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /health [get]
func Health(sessions func() int) gin.HandlerFunc {
	return func(c *gin.Context) {
		n := 0
		if sessions != nil {
			n = sessions()
		}
		c.JSON(http.StatusOK, HealthResponse{Status: "ok", Sessions: n})
	}
}

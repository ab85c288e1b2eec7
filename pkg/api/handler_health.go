package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// handleHealth reports service liveness and tenant count. External
// dependencies are excluded so orchestration platforms do not restart the
// service when a backend is degraded.
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"tenants": s.cfg.TenantRegistry.Len(),
	})
}

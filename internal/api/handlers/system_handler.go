package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sentinelmesh/console/internal/ipaddr"
	"github.com/sentinelmesh/console/internal/warden"
)

// SystemHandler exposes address and geo resolution helpers for the console UI.
type SystemHandler struct {
	engine *warden.Warden
}

func NewSystemHandler(engine *warden.Warden) *SystemHandler {
	return &SystemHandler{engine: engine}
}

// MyIP handles GET /api/v1/system/my-ip
func (h *SystemHandler) MyIP(c *gin.Context) {
	ip := warden.ResolveClientIP(c.GetHeader("X-Forwarded-For"), c.Request.RemoteAddr)
	c.JSON(http.StatusOK, gin.H{"ip": ip})
}

// ResolveCountry handles GET /api/v1/system/geo/:ip
func (h *SystemHandler) ResolveCountry(c *gin.Context) {
	raw := c.Param("ip")
	norm, err := ipaddr.NormalizeIP(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid IP address"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ip":      norm,
		"country": h.engine.ResolveCountry(norm),
	})
}

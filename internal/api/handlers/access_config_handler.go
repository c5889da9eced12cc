package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/sentinelmesh/console/internal/services"
)

// AccessConfigHandler serves the singleton access engine configuration.
type AccessConfigHandler struct {
	service *services.AccessConfigService
	notify  *services.NotificationService
}

func NewAccessConfigHandler(service *services.AccessConfigService, notify *services.NotificationService) *AccessConfigHandler {
	return &AccessConfigHandler{service: service, notify: notify}
}

// Get handles GET /api/v1/access/config
func (h *AccessConfigHandler) Get(c *gin.Context) {
	cfg, err := h.service.Get()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// Update handles PUT /api/v1/access/config
func (h *AccessConfigHandler) Update(c *gin.Context) {
	var patch services.AccessConfigPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	actor := actorFromContext(c)
	cfg, err := h.service.Update(&patch, actor)
	if err != nil {
		if isValidationError(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if h.notify != nil {
		h.notify.NotifyConfigChange(actor)
	}
	c.JSON(http.StatusOK, cfg)
}

// ListAudits handles GET /api/v1/access/audits
func (h *AccessConfigHandler) ListAudits(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	audits, err := h.service.ListAudits(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, audits)
}

func isValidationError(err error) bool {
	for _, e := range []error{
		services.ErrInvalidPolicy,
		services.ErrInvalidGeoMode,
		services.ErrInvalidCountryCode,
		services.ErrInvalidThreshold,
		services.ErrInvalidFailWindow,
		services.ErrInvalidBanDuration,
	} {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}

// actorFromContext reports who performs an admin action, for audit records.
func actorFromContext(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if id, ok := v.(uint); ok {
			return "user:" + strconv.FormatUint(uint64(id), 10)
		}
	}
	return "anonymous"
}

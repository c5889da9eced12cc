package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/sentinelmesh/console/internal/services"
)

// AccessLogHandler serves the deduplicated outcome log.
type AccessLogHandler struct {
	logs *services.AccessLogService
}

func NewAccessLogHandler(logs *services.AccessLogService) *AccessLogHandler {
	return &AccessLogHandler{logs: logs}
}

// List handles GET /api/v1/access/logs with optional outcome, blocked and
// search query filters.
func (h *AccessLogHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "200"))
	filter := services.LogFilter{
		Outcome:     c.Query("outcome"),
		BlockedOnly: c.Query("blocked") == "true",
		Search:      c.Query("search"),
		Limit:       limit,
	}

	entries, err := h.logs.List(filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, entries)
}

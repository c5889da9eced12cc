package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sentinelmesh/console/internal/ipaddr"
	"github.com/sentinelmesh/console/internal/services"
	"github.com/sentinelmesh/console/internal/warden"
)

// AccessRuleHandler manages per-IP allow/block rules and the jail view.
type AccessRuleHandler struct {
	rules  *services.AccessRuleService
	engine *warden.Warden
}

func NewAccessRuleHandler(rules *services.AccessRuleService, engine *warden.Warden) *AccessRuleHandler {
	return &AccessRuleHandler{rules: rules, engine: engine}
}

// List handles GET /api/v1/access/rules
func (h *AccessRuleHandler) List(c *gin.Context) {
	rules, err := h.rules.List()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rules)
}

type createRuleRequest struct {
	IP         string `json:"ip" binding:"required"`
	Kind       string `json:"kind" binding:"required"`
	Reason     string `json:"reason"`
	TTLSeconds int    `json:"ttl_seconds"`
}

// Create handles POST /api/v1/access/rules
func (h *AccessRuleHandler) Create(c *gin.Context) {
	var req createRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ttl := time.Duration(req.TTLSeconds) * time.Second
	rule, err := h.rules.Create(req.IP, req.Kind, req.Reason, ttl, actorFromContext(c))
	if err != nil {
		if errors.Is(err, ipaddr.ErrInvalidAddress) || errors.Is(err, services.ErrInvalidRuleKind) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, rule)
}

// Delete handles DELETE /api/v1/access/rules/:id
func (h *AccessRuleHandler) Delete(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid ID"})
		return
	}

	if err := h.rules.Delete(uint(id), actorFromContext(c)); err != nil {
		if errors.Is(err, services.ErrRuleNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "access rule not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "access rule deleted"})
}

// ListJailed handles GET /api/v1/access/jail
func (h *AccessRuleHandler) ListJailed(c *gin.Context) {
	rules, err := h.rules.ListJailed()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rules)
}

// Release handles POST /api/v1/access/jail/:id/release
func (h *AccessRuleHandler) Release(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid ID"})
		return
	}

	rule, err := h.rules.Release(uint(id), actorFromContext(c))
	if err != nil {
		if errors.Is(err, services.ErrRuleNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "access rule not found"})
			return
		}
		if errors.Is(err, services.ErrRuleNotJailed) {
			c.JSON(http.StatusConflict, gin.H{"error": "rule is not a temp block"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "released", "rule": rule})
}

type testRequest struct {
	IP string `json:"ip" binding:"required"`
}

// Test handles POST /api/v1/access/test: a dry run of the decision pipeline
// that records nothing in the outcome log.
func (h *AccessRuleHandler) Test(c *gin.Context) {
	var req testRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	d := h.engine.Test(warden.RequestContext{
		IP:     req.IP,
		Path:   "/",
		Method: "GET",
	})
	c.JSON(http.StatusOK, gin.H{
		"allowed": d.Allowed,
		"reason":  d.Reason,
		"country": d.Country,
	})
}

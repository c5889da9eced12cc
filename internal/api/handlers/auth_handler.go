package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sentinelmesh/console/internal/services"
	"github.com/sentinelmesh/console/internal/warden"
)

// minFormFillTime is the fastest a human plausibly fills the login form.
const minFormFillTime = 1500 * time.Millisecond

// AuthHandler handles operator sign-in and feeds the access engine's failure
// tracker on every attempt.
type AuthHandler struct {
	auth       *services.AuthService
	engine     *warden.Warden
	production bool
}

func NewAuthHandler(auth *services.AuthService, engine *warden.Warden, production bool) *AuthHandler {
	return &AuthHandler{auth: auth, engine: engine, production: production}
}

// setSecureCookie sets an auth cookie with security best practices
// - HttpOnly: prevents JavaScript access (XSS protection)
// - Secure: only sent over HTTPS (in production)
// - SameSite=Strict: prevents CSRF attacks
func (h *AuthHandler) setSecureCookie(c *gin.Context, name, value string, maxAge int) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(name, value, maxAge, "/", "", h.production, true)
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	// Website is a honeypot field: hidden in the UI, so any value means a bot.
	Website string `json:"website"`
	// FormRenderedAt is the unix-millisecond timestamp the login form was
	// served, used to catch scripted instant submissions.
	FormRenderedAt int64 `json:"form_rendered_at"`
}

// Login handles POST /api/v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rc := warden.ContextFromRequest(c)

	// Anti-automation heuristics count as ordinary failures; the tracker does
	// not distinguish failure causes.
	if req.Website != "" {
		h.engine.OnFailure(rc.IP, "HONEYPOT_FIELD", rc)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	if req.FormRenderedAt > 0 {
		rendered := time.UnixMilli(req.FormRenderedAt)
		if time.Since(rendered) < minFormFillTime {
			h.engine.OnFailure(rc.IP, "FORM_SUBMITTED_TOO_FAST", rc)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
	}

	token, err := h.auth.Login(req.Email, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) || errors.Is(err, services.ErrUserDisabled) {
			h.engine.OnFailure(rc.IP, err.Error(), rc)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.engine.OnSuccess(rc.IP, rc)
	h.setSecureCookie(c, "auth_token", token, 3600*24)
	c.JSON(http.StatusOK, gin.H{"token": token})
}

type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Name     string `json:"name" binding:"required"`
}

// Register handles POST /api/v1/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.auth.Register(req.Email, req.Password, req.Name)
	if err != nil {
		if errors.Is(err, services.ErrEmailTaken) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, user)
}

// Logout handles POST /api/v1/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	h.setSecureCookie(c, "auth_token", "", -1)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// Me handles GET /api/v1/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	userID, _ := c.Get("userID")
	role, _ := c.Get("role")

	u, err := h.auth.GetUserByID(userID.(uint))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id": userID,
		"role":    role,
		"name":    u.Name,
		"email":   u.Email,
	})
}

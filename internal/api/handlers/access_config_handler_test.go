package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinelmesh/console/internal/models"
)

func newConfigRouter(env *testEnv) *gin.Engine {
	router := gin.New()
	h := NewAccessConfigHandler(env.configs, nil)
	router.GET("/access/config", h.Get)
	router.PUT("/access/config", h.Update)
	router.GET("/access/audits", h.ListAudits)
	return router
}

func TestAccessConfigHandler_GetCreatesDefault(t *testing.T) {
	env := setupTestEnv(t)
	router := newConfigRouter(env)

	w := doJSON(router, http.MethodGet, "/access/config", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var cfg models.AccessConfig
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cfg))
	assert.True(t, cfg.Enabled)
	assert.Equal(t, models.PolicyAllow, cfg.DefaultPolicy)
}

func TestAccessConfigHandler_Update(t *testing.T) {
	env := setupTestEnv(t)
	router := newConfigRouter(env)

	w := doJSON(router, http.MethodPut, "/access/config", gin.H{
		"default_policy":    "deny",
		"ip_allow_list":     "10.0.0.0/24, ::ffff:10.0.0.5",
		"geo_mode":          "block_list",
		"blocked_countries": "ru,kp",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var cfg models.AccessConfig
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cfg))
	assert.Equal(t, models.PolicyDeny, cfg.DefaultPolicy)
	assert.Equal(t, "10.0.0.0/24,10.0.0.5", cfg.IPAllowList)
	assert.Equal(t, "RU,KP", cfg.BlockedCountries)

	t.Run("validation errors are 400", func(t *testing.T) {
		w := doJSON(router, http.MethodPut, "/access/config", gin.H{"fail_threshold": 1000})
		assert.Equal(t, http.StatusBadRequest, w.Code)

		w = doJSON(router, http.MethodPut, "/access/config", gin.H{"geo_mode": "strict"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("updates are audited", func(t *testing.T) {
		w := doJSON(router, http.MethodGet, "/access/audits", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var audits []models.AccessAudit
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &audits))
		assert.NotEmpty(t, audits)
	})
}

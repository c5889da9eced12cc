package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinelmesh/console/internal/models"
	"github.com/sentinelmesh/console/internal/services"
)

func TestAccessLogHandler_List(t *testing.T) {
	env := setupTestEnv(t)
	router := gin.New()
	router.GET("/access/logs", NewAccessLogHandler(env.logs).List)

	seed := []services.AccessEvent{
		{IP: "203.0.113.5", Outcome: models.OutcomeBlocked, Path: "/a", Reason: "IP blocked by list", Blocked: true},
		{IP: "198.51.100.7", Outcome: models.OutcomeAuthFailure, Path: "/login", Reason: "bad password"},
	}
	for _, e := range seed {
		require.NoError(t, env.logs.Record(e))
	}

	t.Run("all entries", func(t *testing.T) {
		w := doJSON(router, http.MethodGet, "/access/logs", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var entries []models.AccessLogEntry
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &entries))
		assert.Len(t, entries, 2)
	})

	t.Run("blocked only", func(t *testing.T) {
		w := doJSON(router, http.MethodGet, "/access/logs?blocked=true", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var entries []models.AccessLogEntry
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &entries))
		require.Len(t, entries, 1)
		assert.Equal(t, "203.0.113.5", entries[0].IP)
	})

	t.Run("search", func(t *testing.T) {
		w := doJSON(router, http.MethodGet, "/access/logs?search=bad+password", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var entries []models.AccessLogEntry
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &entries))
		require.Len(t, entries, 1)
		assert.Equal(t, "198.51.100.7", entries[0].IP)
	})

	t.Run("outcome filter", func(t *testing.T) {
		w := doJSON(router, http.MethodGet, "/access/logs?outcome=auth_failure", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var entries []models.AccessLogEntry
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &entries))
		assert.Len(t, entries, 1)
	})
}

package handlers

import (
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/sentinelmesh/console/internal/geo"
	"github.com/sentinelmesh/console/internal/models"
	"github.com/sentinelmesh/console/internal/services"
	"github.com/sentinelmesh/console/internal/warden"
)

type testEnv struct {
	db      *gorm.DB
	configs *services.AccessConfigService
	rules   *services.AccessRuleService
	logs    *services.AccessLogService
	engine  *warden.Warden
}

func setupTestEnv(t *testing.T) *testEnv {
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.AccessConfig{},
		&models.AccessRule{},
		&models.AccessLogEntry{},
		&models.AccessAudit{},
		&models.User{},
		&models.NotificationProvider{},
	))

	configs := services.NewAccessConfigService(db)
	rules := services.NewAccessRuleService(db)
	logs := services.NewAccessLogService(db)
	engine := warden.New(configs, rules, logs, nil, geo.Disabled{})

	return &testEnv{db: db, configs: configs, rules: rules, logs: logs, engine: engine}
}

package services

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/sentinelmesh/console/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.AccessConfig{},
		&models.AccessRule{},
		&models.AccessLogEntry{},
		&models.AccessAudit{},
		&models.NotificationProvider{},
		&models.User{},
	))
	return db
}

package services

import (
	"os"
	"testing"

	"github.com/jaredcannon/clusterview/internal/models"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TestMain runs once before all tests in this package
func TestMain(m *testing.M) {
	os.Setenv("ENV", "test")
	os.Exit(m.Run())
}

// setupTestDB creates an in-memory SQLite database for testing
func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err, "Failed to open in-memory database")

	// Every pooled connection to :memory: would get its own empty database
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(&models.ClusterSample{})
	require.NoError(t, err, "Failed to run migrations")

	t.Cleanup(func() {
		sqlDB.Close()
	})

	return db
}

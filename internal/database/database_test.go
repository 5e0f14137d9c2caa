package database

import (
	"testing"

	"github.com/amitpo23/medici-web03012026-sub000/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"
)

func TestOpen_SQLiteMigrates(t *testing.T) {
	db, err := Open(Config{Driver: "sqlite", DBName: ":memory:", LogLevel: logger.Silent})
	require.NoError(t, err)

	for _, m := range []interface{}{&models.AlertEvent{}, &models.APIRequestLog{}, &models.Cancellation{}, &models.Booking{}} {
		assert.True(t, db.Migrator().HasTable(m))
	}
}

func TestDialector(t *testing.T) {
	for _, driver := range []string{"sqlite", "mysql", "postgres"} {
		d, err := Dialector(Config{Driver: driver, DBName: "alerts", Host: "localhost", Port: 5432})
		require.NoError(t, err, driver)
		assert.Equal(t, driver, d.Name())
	}

	_, err := Dialector(Config{Driver: "oracle"})
	assert.Error(t, err)
}

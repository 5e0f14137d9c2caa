package signals

import (
	"context"
	"testing"
	"time"

	"github.com/amitpo23/medici-web03012026-sub000/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&models.APIRequestLog{}, &models.Cancellation{}, &models.Booking{}))
	return db
}

func TestAPIStatsProvider(t *testing.T) {
	db := openTestDB(t)
	now := time.Now().UTC()

	rows := []models.APIRequestLog{
		{Method: "GET", Path: "/bookings", StatusCode: 200, ResponseTime: 100, CreatedAt: now.Add(-time.Minute)},
		{Method: "GET", Path: "/bookings", StatusCode: 500, ResponseTime: 300, CreatedAt: now.Add(-2 * time.Minute)},
		{Method: "POST", Path: "/cancel", StatusCode: 503, ResponseTime: 200, CreatedAt: now.Add(-3 * time.Minute)},
		{Method: "GET", Path: "/old", StatusCode: 500, ResponseTime: 9000, CreatedAt: now.Add(-time.Hour)},
	}
	require.NoError(t, db.Create(&rows).Error)

	p := &APIStatsProvider{DB: db, Window: 5 * time.Minute, Now: func() time.Time { return now }}
	snap, err := p.Fetch(context.Background())
	require.NoError(t, err)

	api := snap.(APISnapshot)
	assert.Equal(t, int64(3), api.Total)
	assert.Equal(t, int64(2), api.Errors)
	assert.InDelta(t, 200.0, api.AvgResponseMs, 0.01)
	assert.Equal(t, int64(300), api.MaxResponseMs)
}

func TestCancellationProvider(t *testing.T) {
	db := openTestDB(t)
	now := time.Now().UTC()

	rows := []models.Cancellation{
		{BookingID: 1, Status: "failed", Error: "supplier timeout", CreatedAt: now.Add(-10 * time.Minute)},
		{BookingID: 2, Status: "failed", CreatedAt: now.Add(-20 * time.Minute)},
		{BookingID: 3, Status: "success", CreatedAt: now.Add(-30 * time.Minute)},
		{BookingID: 4, Status: "failed", CreatedAt: now.Add(-2 * time.Hour)},
	}
	require.NoError(t, db.Create(&rows).Error)

	p := &CancellationProvider{DB: db, Now: func() time.Time { return now }}
	snap, err := p.Fetch(context.Background())
	require.NoError(t, err)

	c := snap.(CancellationSnapshot)
	assert.Equal(t, int64(2), c.FailuresLastHour)
	assert.Equal(t, int64(3), c.TotalLastHour)
}

func TestRevenueProvider(t *testing.T) {
	db := openTestDB(t)
	now := time.Now().UTC()

	rows := []models.Booking{
		{Amount: 100, Currency: "USD", Status: "confirmed", CreatedAt: now.Add(-10 * time.Minute)},
		{Amount: 50, Currency: "USD", Status: "cancelled", CreatedAt: now.Add(-15 * time.Minute)},
		{Amount: 300, Currency: "USD", Status: "confirmed", CreatedAt: now.Add(-90 * time.Minute)},
		{Amount: 100, Currency: "USD", Status: "confirmed", CreatedAt: now.Add(-100 * time.Minute)},
	}
	require.NoError(t, db.Create(&rows).Error)

	p := &RevenueProvider{DB: db, Now: func() time.Time { return now }}
	snap, err := p.Fetch(context.Background())
	require.NoError(t, err)

	r := snap.(RevenueSnapshot)
	assert.InDelta(t, 100.0, r.CurrentHour, 0.01)
	assert.InDelta(t, 400.0, r.PreviousHour, 0.01)
	assert.InDelta(t, 75.0, r.DropPercent(), 0.01)
}

func TestDatabaseLatencyProvider(t *testing.T) {
	db := openTestDB(t)

	snap, err := (&DatabaseLatencyProvider{DB: db}).Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, KindDatabase, snap.Kind())
	assert.GreaterOrEqual(t, snap.(DatabaseSnapshot).ResponseMs, int64(0))
}

func TestDBProviders(t *testing.T) {
	providers := DBProviders(nil, time.Minute)

	names := make([]string, len(providers))
	for i, p := range providers {
		names[i] = p.Name()
	}
	assert.Equal(t, []string{"api_stats", "cancellations", "revenue", "database_latency"}, names)
}

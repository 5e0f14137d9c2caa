package signals

import (
	"context"
	"fmt"
	"time"

	"github.com/amitpo23/medici-web03012026-sub000/internal/models"

	"gorm.io/gorm"
)

// DBProviders builds the database-backed providers sharing one connection.
// window bounds the API traffic aggregation.
func DBProviders(db *gorm.DB, window time.Duration) []Provider {
	return []Provider{
		&APIStatsProvider{DB: db, Window: window},
		&CancellationProvider{DB: db},
		&RevenueProvider{DB: db},
		&DatabaseLatencyProvider{DB: db},
	}
}

func clockOrNow(now func() time.Time) time.Time {
	if now == nil {
		return time.Now()
	}
	return now()
}

// APIStatsProvider aggregates api_request_logs over a sliding window.
type APIStatsProvider struct {
	DB     *gorm.DB
	Window time.Duration
	Now    func() time.Time
}

func (p *APIStatsProvider) Name() string { return "api_stats" }

func (p *APIStatsProvider) Fetch(ctx context.Context) (Snapshot, error) {
	now := clockOrNow(p.Now)
	window := p.Window
	if window <= 0 {
		window = 5 * time.Minute
	}

	var row struct {
		Total       int64
		Errors      int64
		AvgResponse float64
		MaxResponse int64
	}
	err := p.DB.WithContext(ctx).
		Model(&models.APIRequestLog{}).
		Select("COUNT(*) AS total, "+
			"COALESCE(SUM(CASE WHEN status_code >= 500 THEN 1 ELSE 0 END), 0) AS errors, "+
			"COALESCE(AVG(response_time), 0) AS avg_response, "+
			"COALESCE(MAX(response_time), 0) AS max_response").
		Where("created_at >= ?", now.Add(-window)).
		Scan(&row).Error
	if err != nil {
		return nil, fmt.Errorf("query api stats: %w", err)
	}

	return APISnapshot{
		At:            now,
		Window:        window,
		Total:         row.Total,
		Errors:        row.Errors,
		AvgResponseMs: row.AvgResponse,
		MaxResponseMs: row.MaxResponse,
	}, nil
}

// CancellationProvider counts cancellation outcomes in the last hour.
type CancellationProvider struct {
	DB  *gorm.DB
	Now func() time.Time
}

func (p *CancellationProvider) Name() string { return "cancellations" }

func (p *CancellationProvider) Fetch(ctx context.Context) (Snapshot, error) {
	now := clockOrNow(p.Now)
	since := now.Add(-time.Hour)

	var total, failed int64
	base := p.DB.WithContext(ctx).Model(&models.Cancellation{}).Where("created_at >= ?", since)
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("count cancellations: %w", err)
	}
	if err := base.Session(&gorm.Session{}).Where("status = ?", "failed").Count(&failed).Error; err != nil {
		return nil, fmt.Errorf("count failed cancellations: %w", err)
	}

	return CancellationSnapshot{
		At:               now,
		FailuresLastHour: failed,
		TotalLastHour:    total,
	}, nil
}

// RevenueProvider sums confirmed bookings hour over hour.
type RevenueProvider struct {
	DB  *gorm.DB
	Now func() time.Time
}

func (p *RevenueProvider) Name() string { return "revenue" }

func (p *RevenueProvider) Fetch(ctx context.Context) (Snapshot, error) {
	now := clockOrNow(p.Now)

	current, err := p.sum(ctx, now.Add(-time.Hour), now)
	if err != nil {
		return nil, err
	}
	previous, err := p.sum(ctx, now.Add(-2*time.Hour), now.Add(-time.Hour))
	if err != nil {
		return nil, err
	}

	return RevenueSnapshot{
		At:           now,
		CurrentHour:  current,
		PreviousHour: previous,
	}, nil
}

func (p *RevenueProvider) sum(ctx context.Context, from, to time.Time) (float64, error) {
	var total float64
	err := p.DB.WithContext(ctx).
		Model(&models.Booking{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("status = ? AND created_at >= ? AND created_at < ?", "confirmed", from, to).
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("sum revenue: %w", err)
	}
	return total, nil
}

// DatabaseLatencyProvider times a trivial round trip to the database.
type DatabaseLatencyProvider struct {
	DB  *gorm.DB
	Now func() time.Time
}

func (p *DatabaseLatencyProvider) Name() string { return "database_latency" }

func (p *DatabaseLatencyProvider) Fetch(ctx context.Context) (Snapshot, error) {
	start := time.Now()
	if err := p.DB.WithContext(ctx).Exec("SELECT 1").Error; err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return DatabaseSnapshot{
		At:         clockOrNow(p.Now),
		ResponseMs: time.Since(start).Milliseconds(),
	}, nil
}

package persist

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/amitpo23/medici-web03012026-sub000/internal/alert"
	"github.com/amitpo23/medici-web03012026-sub000/internal/models"

	"gorm.io/gorm"
)

// GormSink archives alert transitions in the alert_events table.
type GormSink struct {
	db *gorm.DB
}

func NewGormSink(db *gorm.DB) *GormSink {
	return &GormSink{db: db}
}

func (s *GormSink) Name() string { return "sql" }

// Record implements alert.Sink.
func (s *GormSink) Record(ctx context.Context, t alert.Transition) error {
	event, err := toEvent(t)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Create(&event).Error; err != nil {
		return fmt.Errorf("failed to save alert event: %w", err)
	}
	return nil
}

func toEvent(t alert.Transition) (models.AlertEvent, error) {
	a := t.Alert
	event := models.AlertEvent{
		AlertID:         a.ID,
		Type:            a.Type,
		Transition:      string(t.Kind),
		Severity:        string(a.Severity),
		Category:        a.Category,
		Title:           a.Title,
		Message:         a.Message,
		Status:          string(a.Status),
		Acknowledged:    a.Acknowledged,
		OccurrenceCount: a.OccurrenceCount,
		FirstSeenAt:     a.CreatedAt,
		LastSeenAt:      a.LastSeenAt,
		ResolvedAt:      a.ResolvedAt,
		CreatedAt:       t.At,
	}
	if len(a.Metadata) > 0 {
		data, err := json.Marshal(a.Metadata)
		if err != nil {
			return event, fmt.Errorf("failed to marshal alert metadata: %w", err)
		}
		event.Metadata = string(data)
	}
	return event, nil
}

// EventFilter 查询条件
type EventFilter struct {
	Type       string
	Transition string
	Limit      int
}

// Events returns archived transitions, newest first.
func (s *GormSink) Events(ctx context.Context, f EventFilter) ([]models.AlertEvent, error) {
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	q := s.db.WithContext(ctx).Model(&models.AlertEvent{})
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	if f.Transition != "" {
		q = q.Where("transition = ?", f.Transition)
	}

	var events []models.AlertEvent
	if err := q.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&events).Error; err != nil {
		return nil, fmt.Errorf("failed to query alert events: %w", err)
	}
	return events, nil
}

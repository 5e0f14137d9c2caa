package models

import "time"

// AlertEvent 告警状态变更记录
type AlertEvent struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	AlertID         string     `gorm:"size:64;not null;index" json:"alert_id"`
	Type            string     `gorm:"size:100;not null;index" json:"type"`
	Transition      string     `gorm:"size:20;not null" json:"transition"` // created, escalated, acknowledged, resolved
	Severity        string     `gorm:"size:20;not null" json:"severity"`
	Category        string     `gorm:"size:50;index" json:"category"`
	Title           string     `gorm:"size:255" json:"title"`
	Message         string     `gorm:"type:text" json:"message"`
	Metadata        string     `gorm:"type:text" json:"metadata"` // JSON string
	Status          string     `gorm:"size:20;not null" json:"status"`
	Acknowledged    bool       `json:"acknowledged"`
	OccurrenceCount int        `json:"occurrence_count"`
	FirstSeenAt     time.Time  `json:"first_seen_at"`
	LastSeenAt      time.Time  `json:"last_seen_at"`
	ResolvedAt      *time.Time `json:"resolved_at,omitempty"`
	CreatedAt       time.Time  `gorm:"index" json:"created_at"`
}

func (AlertEvent) TableName() string {
	return "alert_events"
}

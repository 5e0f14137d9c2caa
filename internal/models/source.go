package models

import "time"

// The tables below are owned by the booking application; the alert
// service only reads them to build signal snapshots.

// APIRequestLog is one served API request.
type APIRequestLog struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Method       string    `gorm:"size:10" json:"method"`
	Path         string    `gorm:"size:500" json:"path"`
	StatusCode   int       `gorm:"index" json:"status_code"`
	ResponseTime int64     `json:"response_time"` // milliseconds
	CreatedAt    time.Time `gorm:"index" json:"created_at"`
}

func (APIRequestLog) TableName() string {
	return "api_request_logs"
}

// Cancellation is one booking cancellation attempt against a supplier.
type Cancellation struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	BookingID uint      `gorm:"index" json:"booking_id"`
	Status    string    `gorm:"size:20;index" json:"status"` // success, failed
	Error     string    `gorm:"type:text" json:"error"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

func (Cancellation) TableName() string {
	return "cancellations"
}

// Booking is a confirmed sale; Amount feeds the revenue signal.
type Booking struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Amount    float64   `json:"amount"`
	Currency  string    `gorm:"size:3" json:"currency"`
	Status    string    `gorm:"size:20;index" json:"status"` // confirmed, cancelled
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

func (Booking) TableName() string {
	return "bookings"
}

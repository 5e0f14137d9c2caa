package alert

import (
	"errors"
	"time"
)

var (
	// ErrAlertNotFound is returned when no active alert matches an id or type.
	ErrAlertNotFound = errors.New("alert not found")
	// ErrUnknownThreshold is returned when an update names keys that do not exist.
	ErrUnknownThreshold = errors.New("unknown threshold")
	// ErrInvalidThreshold is returned for negative or non-finite threshold values.
	ErrInvalidThreshold = errors.New("invalid threshold value")
)

// Severity 告警级别
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Rank orders severities; unknown values rank below warning.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 2
	case SeverityWarning:
		return 1
	default:
		return 0
	}
}

func (s Severity) Valid() bool {
	return s == SeverityWarning || s == SeverityCritical
}

// Status 告警状态
type Status string

const (
	StatusActive   Status = "active"
	StatusResolved Status = "resolved"
)

// Alert 告警实例，只由 Store 修改
type Alert struct {
	ID              string                 `json:"id"`
	Type            string                 `json:"type"`
	Severity        Severity               `json:"severity"`
	Title           string                 `json:"title"`
	Message         string                 `json:"message"`
	Category        string                 `json:"category"`
	Metadata        map[string]interface{} `json:"metadata,omitempty"`
	Channels        []string               `json:"channels,omitempty"`
	OccurrenceCount int                    `json:"occurrence_count"`
	CreatedAt       time.Time              `json:"created_at"`
	LastSeenAt      time.Time              `json:"last_seen_at"`
	Status          Status                 `json:"status"`
	Acknowledged    bool                   `json:"acknowledged"`
	AcknowledgedAt  *time.Time             `json:"acknowledged_at,omitempty"`
	ResolvedAt      *time.Time             `json:"resolved_at,omitempty"`
}

// Clone returns a deep copy safe to hand out of the store.
func (a Alert) Clone() Alert {
	c := a
	if a.Metadata != nil {
		c.Metadata = make(map[string]interface{}, len(a.Metadata))
		for k, v := range a.Metadata {
			c.Metadata[k] = v
		}
	}
	if a.Channels != nil {
		c.Channels = append([]string(nil), a.Channels...)
	}
	if a.AcknowledgedAt != nil {
		t := *a.AcknowledgedAt
		c.AcknowledgedAt = &t
	}
	if a.ResolvedAt != nil {
		t := *a.ResolvedAt
		c.ResolvedAt = &t
	}
	return c
}

// Outcome is the result of evaluating one rule once.
// Fired=false is an explicit "condition cleared" signal.
type Outcome struct {
	RuleID   string                 `json:"rule_id"`
	Fired    bool                   `json:"fired"`
	Severity Severity               `json:"severity,omitempty"`
	Title    string                 `json:"title,omitempty"`
	Message  string                 `json:"message,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`

	// Filled from the rule by RuleEngine when the condition leaves them empty.
	Category string        `json:"category,omitempty"`
	Channels []string      `json:"channels,omitempty"`
	Cooldown time.Duration `json:"-"`
}

// Fire builds a firing outcome.
func Fire(ruleID string, severity Severity, title, message string, metadata map[string]interface{}) *Outcome {
	return &Outcome{
		RuleID:   ruleID,
		Fired:    true,
		Severity: severity,
		Title:    title,
		Message:  message,
		Metadata: metadata,
	}
}

// Clear builds a resolve outcome.
func Clear(ruleID string) *Outcome {
	return &Outcome{RuleID: ruleID}
}

// TransitionKind names a lifecycle step.
type TransitionKind string

const (
	TransitionNone         TransitionKind = "none"
	TransitionCreated      TransitionKind = "created"
	TransitionRefired      TransitionKind = "refired"
	TransitionEscalated    TransitionKind = "escalated"
	TransitionAcknowledged TransitionKind = "acknowledged"
	TransitionResolved     TransitionKind = "resolved"
)

// Transition describes what one store mutation did. Notify reports whether
// the suppression policy wants it dispatched; the store itself never sends.
type Transition struct {
	Kind             TransitionKind `json:"kind"`
	Alert            Alert          `json:"alert"`
	PreviousSeverity Severity       `json:"previous_severity,omitempty"`
	Notify           bool           `json:"notify"`
	At               time.Time      `json:"at"`
}

// HistoryEntry is an immutable copy of an alert at a lifecycle transition.
type HistoryEntry struct {
	Alert
	Transition TransitionKind `json:"transition"`
	RecordedAt time.Time      `json:"recorded_at"`
}

// firing reports whether the entry marks a raised alert rather than an ack or resolve.
func (h HistoryEntry) firing() bool {
	return h.Transition == TransitionCreated || h.Transition == TransitionEscalated
}

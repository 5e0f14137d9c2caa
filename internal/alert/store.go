package alert

import (
	"sort"
	"sync"
	"time"

	"github.com/amitpo23/medici-web03012026-sub000/internal/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultHistoryCapacity is the history ring size when none is configured.
const DefaultHistoryCapacity = 1000

// Store owns the active alerts and the history ring.
// Every mutation runs under one mutex so at most one alert per type is active.
type Store struct {
	mu      sync.RWMutex
	active  map[string]*Alert // key: type
	history *Ring[HistoryEntry]
	policy  SuppressionPolicy

	now   func() time.Time
	newID func() string
	log   *zap.Logger
}

// StoreOption 配置 Store
type StoreOption func(*Store)

func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

func WithIDGenerator(gen func() string) StoreOption {
	return func(s *Store) { s.newID = gen }
}

func WithStoreLogger(l *zap.Logger) StoreOption {
	return func(s *Store) { s.log = logger.OrNop(l) }
}

// NewStore creates a store whose history keeps the newest capacity entries.
func NewStore(capacity int, opts ...StoreOption) *Store {
	s := &Store{
		active:  make(map[string]*Alert),
		history: NewRing[HistoryEntry](capacity),
		now:     time.Now,
		newID:   uuid.NewString,
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Apply runs one outcome through the lifecycle state machine.
func (s *Store) Apply(o Outcome) Transition {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	existing := s.active[o.RuleID]

	if !o.Fired {
		if existing == nil {
			return Transition{Kind: TransitionNone, At: now}
		}
		return s.resolveLocked(existing, now)
	}

	sev := o.Severity
	if !sev.Valid() {
		sev = SeverityWarning
	}
	o.Severity = sev
	notify := s.policy.ShouldNotify(o, existing)

	if existing == nil {
		a := &Alert{
			ID:              s.newID(),
			Type:            o.RuleID,
			Severity:        sev,
			Title:           o.Title,
			Message:         o.Message,
			Category:        o.Category,
			Metadata:        copyMetadata(o.Metadata),
			Channels:        append([]string(nil), o.Channels...),
			OccurrenceCount: 1,
			CreatedAt:       now,
			LastSeenAt:      now,
			Status:          StatusActive,
		}
		s.active[o.RuleID] = a
		s.recordLocked(a, TransitionCreated, now)
		s.log.Info("Alert created",
			zap.String("alert_id", a.ID),
			zap.String("type", a.Type),
			zap.String("severity", string(a.Severity)))
		return Transition{Kind: TransitionCreated, Alert: a.Clone(), Notify: notify, At: now}
	}

	previous := existing.Severity
	existing.OccurrenceCount++
	if now.After(existing.LastSeenAt) {
		existing.LastSeenAt = now
	}
	existing.Title = o.Title
	existing.Message = o.Message
	existing.Metadata = copyMetadata(o.Metadata)

	if previous == sev {
		return Transition{Kind: TransitionRefired, Alert: existing.Clone(), Notify: notify, At: now}
	}

	existing.Severity = sev
	s.recordLocked(existing, TransitionEscalated, now)
	s.log.Info("Alert severity changed",
		zap.String("alert_id", existing.ID),
		zap.String("type", existing.Type),
		zap.String("from", string(previous)),
		zap.String("to", string(sev)))
	return Transition{
		Kind:             TransitionEscalated,
		Alert:            existing.Clone(),
		PreviousSeverity: previous,
		Notify:           notify,
		At:               now,
	}
}

// Acknowledge marks an active alert as seen. It never resolves the alert.
func (s *Store) Acknowledge(id string) (Transition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.active {
		if a.ID != id {
			continue
		}
		now := s.now()
		if a.Acknowledged {
			return Transition{Kind: TransitionNone, Alert: a.Clone(), At: now}, nil
		}
		a.Acknowledged = true
		a.AcknowledgedAt = &now
		s.recordLocked(a, TransitionAcknowledged, now)
		return Transition{Kind: TransitionAcknowledged, Alert: a.Clone(), At: now}, nil
	}
	return Transition{}, ErrAlertNotFound
}

// ResolveByType manually resolves the active alert of the given type.
func (s *Store) ResolveByType(alertType string) (Transition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.active[alertType]
	if !ok {
		return Transition{}, ErrAlertNotFound
	}
	return s.resolveLocked(a, s.now()), nil
}

func (s *Store) resolveLocked(a *Alert, now time.Time) Transition {
	a.Status = StatusResolved
	a.ResolvedAt = &now
	delete(s.active, a.Type)
	s.recordLocked(a, TransitionResolved, now)
	s.log.Info("Alert resolved",
		zap.String("alert_id", a.ID),
		zap.String("type", a.Type),
		zap.Int("occurrences", a.OccurrenceCount))
	return Transition{Kind: TransitionResolved, Alert: a.Clone(), At: now}
}

func (s *Store) recordLocked(a *Alert, kind TransitionKind, now time.Time) {
	s.history.Push(HistoryEntry{Alert: a.Clone(), Transition: kind, RecordedAt: now})
}

// GetActive returns active alerts, critical first, then most recently seen.
func (s *Store) GetActive() []Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeLocked()
}

func (s *Store) activeLocked() []Alert {
	out := make([]Alert, 0, len(s.active))
	for _, a := range s.active {
		out = append(out, a.Clone())
	}
	SortActive(out)
	return out
}

// SortActive orders by severity descending, then lastSeenAt descending.
func SortActive(alerts []Alert) {
	sort.SliceStable(alerts, func(i, j int) bool {
		ri, rj := alerts[i].Severity.Rank(), alerts[j].Severity.Rank()
		if ri != rj {
			return ri > rj
		}
		if !alerts[i].LastSeenAt.Equal(alerts[j].LastSeenAt) {
			return alerts[i].LastSeenAt.After(alerts[j].LastSeenAt)
		}
		return alerts[i].Type < alerts[j].Type
	})
}

// GetActiveByType returns the active alert for a type.
func (s *Store) GetActiveByType(alertType string) (Alert, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.active[alertType]
	if !ok {
		return Alert{}, false
	}
	return a.Clone(), true
}

// GetHistory returns up to limit entries, newest first. limit <= 0 means all.
func (s *Store) GetHistory(limit int) []HistoryEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.history.Newest(limit)
}

// Snapshot returns active alerts and history taken under one read lock.
func (s *Store) Snapshot() ([]Alert, []HistoryEntry) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeLocked(), s.history.Newest(0)
}

// HistoryCapacity 返回历史容量
func (s *Store) HistoryCapacity() int {
	return s.history.Cap()
}

func copyMetadata(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

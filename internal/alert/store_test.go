package alert

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 1, 14, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestStore(capacity int) (*Store, *fakeClock) {
	clock := newFakeClock()
	n := 0
	var mu sync.Mutex
	s := NewStore(capacity,
		WithClock(clock.Now),
		WithIDGenerator(func() string {
			mu.Lock()
			defer mu.Unlock()
			n++
			return fmt.Sprintf("alert-%d", n)
		}))
	return s, clock
}

func fire(ruleID string, sev Severity) Outcome {
	return *Fire(ruleID, sev, ruleID+" title", ruleID+" message", map[string]interface{}{"k": "v"})
}

func TestStore_AtMostOneActivePerType(t *testing.T) {
	s, clock := newTestStore(100)

	sequence := []Outcome{
		fire("error_rate", SeverityWarning),
		fire("error_rate", SeverityWarning),
		fire("db_slow", SeverityCritical),
		fire("error_rate", SeverityCritical),
		*Clear("db_slow"),
		fire("db_slow", SeverityWarning),
		fire("error_rate", SeverityWarning),
		*Clear("error_rate"),
		fire("error_rate", SeverityCritical),
		fire("db_slow", SeverityWarning),
	}

	for i, o := range sequence {
		clock.Advance(time.Minute)
		s.Apply(o)

		seen := make(map[string]bool)
		for _, a := range s.GetActive() {
			require.False(t, seen[a.Type], "step %d: duplicate active alert for %s", i, a.Type)
			seen[a.Type] = true
			assert.Equal(t, StatusActive, a.Status)
			assert.False(t, a.LastSeenAt.Before(a.CreatedAt))
		}
	}
	assert.Len(t, s.GetActive(), 2)
}

func TestStore_ResolveClearsAndRecords(t *testing.T) {
	s, clock := newTestStore(100)

	created := s.Apply(fire("db_slow", SeverityWarning))
	require.Equal(t, TransitionCreated, created.Kind)

	clock.Advance(time.Minute)
	resolved := s.Apply(*Clear("db_slow"))

	assert.Equal(t, TransitionResolved, resolved.Kind)
	assert.Empty(t, s.GetActive())

	history := s.GetHistory(10)
	require.Len(t, history, 2)
	assert.Equal(t, TransitionResolved, history[0].Transition)
	assert.Equal(t, StatusResolved, history[0].Status)
	require.NotNil(t, history[0].ResolvedAt)
	assert.Equal(t, clock.Now(), *history[0].ResolvedAt)
	assert.Equal(t, created.Alert.ID, history[0].ID)
	assert.Equal(t, TransitionCreated, history[1].Transition)
}

func TestStore_ClearWithoutActiveIsNoop(t *testing.T) {
	s, _ := newTestStore(100)

	tr := s.Apply(*Clear("db_slow"))

	assert.Equal(t, TransitionNone, tr.Kind)
	assert.False(t, tr.Notify)
	assert.Empty(t, s.GetHistory(0))
}

func TestStore_SuppressesRepeatedFiring(t *testing.T) {
	s, clock := newTestStore(100)

	notifications := 0
	for i := 0; i < 10; i++ {
		clock.Advance(time.Minute)
		if s.Apply(fire("error_rate", SeverityWarning)).Notify {
			notifications++
		}
	}

	assert.Equal(t, 1, notifications)

	history := s.GetHistory(0)
	require.Len(t, history, 1)
	assert.Equal(t, TransitionCreated, history[0].Transition)

	active, ok := s.GetActiveByType("error_rate")
	require.True(t, ok)
	assert.Equal(t, 10, active.OccurrenceCount)
	assert.True(t, active.LastSeenAt.After(active.CreatedAt))
}

func TestStore_SeverityChangeRenotifiesAndKeepsIdentity(t *testing.T) {
	s, clock := newTestStore(100)

	first := s.Apply(fire("error_rate", SeverityWarning))
	for i := 0; i < 9; i++ {
		clock.Advance(time.Minute)
		s.Apply(fire("error_rate", SeverityWarning))
	}

	clock.Advance(time.Minute)
	escalated := s.Apply(fire("error_rate", SeverityCritical))

	assert.Equal(t, TransitionEscalated, escalated.Kind)
	assert.True(t, escalated.Notify)
	assert.Equal(t, SeverityWarning, escalated.PreviousSeverity)
	assert.Equal(t, first.Alert.ID, escalated.Alert.ID)
	assert.Equal(t, first.Alert.CreatedAt, escalated.Alert.CreatedAt)
	assert.Equal(t, SeverityCritical, escalated.Alert.Severity)
	assert.Equal(t, 11, escalated.Alert.OccurrenceCount)

	clock.Advance(time.Minute)
	back := s.Apply(fire("error_rate", SeverityWarning))
	assert.Equal(t, TransitionEscalated, back.Kind)
	assert.True(t, back.Notify)
	assert.Equal(t, first.Alert.ID, back.Alert.ID)

	assert.Len(t, s.GetActive(), 1)
}

func TestStore_AcknowledgeIsNonResolving(t *testing.T) {
	s, clock := newTestStore(100)

	created := s.Apply(fire("db_slow", SeverityCritical))

	clock.Advance(time.Minute)
	ack, err := s.Acknowledge(created.Alert.ID)
	require.NoError(t, err)
	assert.Equal(t, TransitionAcknowledged, ack.Kind)
	require.NotNil(t, ack.Alert.AcknowledgedAt)
	ackAt := *ack.Alert.AcknowledgedAt

	active := s.GetActive()
	require.Len(t, active, 1)
	assert.True(t, active[0].Acknowledged)
	assert.Equal(t, StatusActive, active[0].Status)

	// second ack keeps the original timestamp
	clock.Advance(time.Minute)
	again, err := s.Acknowledge(created.Alert.ID)
	require.NoError(t, err)
	assert.Equal(t, TransitionNone, again.Kind)
	assert.Equal(t, ackAt, *again.Alert.AcknowledgedAt)

	clock.Advance(time.Minute)
	resolved := s.Apply(*Clear("db_slow"))
	assert.Equal(t, TransitionResolved, resolved.Kind)

	history := s.GetHistory(0)
	require.Len(t, history, 3)
	assert.Equal(t, TransitionResolved, history[0].Transition)
	assert.True(t, history[0].Acknowledged)
	assert.Equal(t, TransitionAcknowledged, history[1].Transition)
}

func TestStore_NotFound(t *testing.T) {
	s, _ := newTestStore(100)

	_, err := s.Acknowledge("missing")
	assert.ErrorIs(t, err, ErrAlertNotFound)

	_, err = s.ResolveByType("db_slow")
	assert.ErrorIs(t, err, ErrAlertNotFound)

	created := s.Apply(fire("db_slow", SeverityWarning))
	_, err = s.ResolveByType("db_slow")
	require.NoError(t, err)

	// resolved alerts can no longer be acknowledged
	_, err = s.Acknowledge(created.Alert.ID)
	assert.ErrorIs(t, err, ErrAlertNotFound)
}

func TestStore_ManualResolve(t *testing.T) {
	s, _ := newTestStore(100)
	s.Apply(fire("revenue_drop", SeverityCritical))

	tr, err := s.ResolveByType("revenue_drop")
	require.NoError(t, err)
	assert.Equal(t, TransitionResolved, tr.Kind)
	assert.Equal(t, StatusResolved, tr.Alert.Status)
	assert.Empty(t, s.GetActive())

	// a later firing opens a fresh occurrence
	again := s.Apply(fire("revenue_drop", SeverityCritical))
	assert.Equal(t, TransitionCreated, again.Kind)
	assert.NotEqual(t, tr.Alert.ID, again.Alert.ID)
	assert.Equal(t, 1, again.Alert.OccurrenceCount)
}

func TestStore_GetActiveOrdering(t *testing.T) {
	s, clock := newTestStore(100)

	s.Apply(fire("a_warning_old", SeverityWarning))
	clock.Advance(time.Minute)
	s.Apply(fire("b_critical", SeverityCritical))
	clock.Advance(time.Minute)
	s.Apply(fire("c_warning_new", SeverityWarning))
	clock.Advance(time.Minute)
	s.Apply(fire("d_critical_new", SeverityCritical))

	active := s.GetActive()
	require.Len(t, active, 4)
	got := make([]string, len(active))
	for i, a := range active {
		got[i] = a.Type
	}
	assert.Equal(t, []string{"d_critical_new", "b_critical", "c_warning_new", "a_warning_old"}, got)
}

func TestStore_HistoryBounded(t *testing.T) {
	const capacity = 10
	s, clock := newTestStore(capacity)

	for i := 0; i < capacity+5; i++ {
		clock.Advance(time.Second)
		s.Apply(fire(fmt.Sprintf("type_%02d", i), SeverityWarning))
	}

	history := s.GetHistory(0)
	require.Len(t, history, capacity)
	assert.Equal(t, capacity, s.HistoryCapacity())
	// newest first; type_00..type_04 were evicted
	assert.Equal(t, "type_14", history[0].Type)
	assert.Equal(t, "type_05", history[capacity-1].Type)

	assert.Len(t, s.GetHistory(3), 3)
}

func TestStore_InvalidSeverityDefaultsToWarning(t *testing.T) {
	s, _ := newTestStore(10)

	tr := s.Apply(fire("odd", Severity("major")))

	assert.Equal(t, SeverityWarning, tr.Alert.Severity)
}

func TestStore_ReturnsCopies(t *testing.T) {
	s, _ := newTestStore(10)
	tr := s.Apply(fire("error_rate", SeverityWarning))

	tr.Alert.Metadata["k"] = "mutated"
	active := s.GetActive()

	assert.Equal(t, "v", active[0].Metadata["k"])
}

func TestStore_ConcurrentApply(t *testing.T) {
	s, _ := newTestStore(1000)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sev := SeverityWarning
			if i%2 == 0 {
				sev = SeverityCritical
			}
			s.Apply(fire("error_rate", sev))
		}(i)
	}
	wg.Wait()

	active := s.GetActive()
	require.Len(t, active, 1)
	assert.Equal(t, 50, active[0].OccurrenceCount)
}

func TestRing_FIFOEviction(t *testing.T) {
	r := NewRing[int](10)
	for i := 1; i <= 15; i++ {
		r.Push(i)
	}

	assert.Equal(t, 10, r.Len())
	assert.Equal(t, []int{6, 7, 8, 9, 10, 11, 12, 13, 14, 15}, r.Items())
	assert.Equal(t, []int{15, 14, 13}, r.Newest(3))
	assert.Len(t, r.Newest(0), 10)
}

func TestRing_PartiallyFilled(t *testing.T) {
	r := NewRing[string](4)
	r.Push("a")
	r.Push("b")

	assert.Equal(t, []string{"a", "b"}, r.Items())
	assert.Equal(t, []string{"b", "a"}, r.Newest(10))
	assert.Equal(t, 4, r.Cap())
}

package alert

import (
	"sync"
	"time"
)

// SuppressionPolicy decides whether a firing outcome is worth a new notification.
// It is time independent: persistence of the same severity is folded into the
// existing alert, a severity change is always reported.
type SuppressionPolicy struct{}

// ShouldNotify 判断是否需要发送通知
func (SuppressionPolicy) ShouldNotify(o Outcome, existing *Alert) bool {
	if !o.Fired {
		return false
	}
	if existing == nil {
		return true
	}
	return existing.Severity != o.Severity
}

// Cooldown is the secondary, duration based policy: a rule that opted in is
// notified at most once per window, even across distinct occurrences.
type Cooldown struct {
	mu   sync.Mutex
	last map[string]time.Time
	now  func() time.Time
}

func NewCooldown(now func() time.Time) *Cooldown {
	if now == nil {
		now = time.Now
	}
	return &Cooldown{last: make(map[string]time.Time), now: now}
}

// Allow reports whether ruleID may notify now and, if so, records the send.
// A non-positive window always allows.
func (c *Cooldown) Allow(ruleID string, window time.Duration) bool {
	if window <= 0 {
		return true
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if last, ok := c.last[ruleID]; ok && now.Sub(last) < window {
		return false
	}
	c.last[ruleID] = now
	return true
}

// LastNotified returns when ruleID last passed the cooldown.
func (c *Cooldown) LastNotified(ruleID string) (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.last[ruleID]
	return t, ok
}

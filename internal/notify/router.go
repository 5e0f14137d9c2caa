package notify

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/amitpo23/medici-web03012026-sub000/internal/alert"
	"github.com/amitpo23/medici-web03012026-sub000/internal/logger"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Channel is an outbound notification transport.
type Channel interface {
	Name() string
	Send(ctx context.Context, a alert.Alert) error
}

// emailCategories 严重告警需额外发送邮件的分类
var emailCategories = map[string]bool{
	alert.CategoryDatabase: true,
	alert.CategoryRevenue:  true,
}

// Router fans transitions out to channels. Every channel send runs in its own
// goroutine under a timeout; a failing channel never affects the others or the caller.
type Router struct {
	mu       sync.RWMutex
	channels map[string]Channel
	limiters map[string]*rate.Limiter

	timeout       time.Duration
	ratePerMinute int

	wg  sync.WaitGroup
	log *zap.Logger
}

// NewRouter creates a router. ratePerMinute <= 0 disables per-channel rate limiting.
func NewRouter(timeout time.Duration, ratePerMinute int, log *zap.Logger) *Router {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Router{
		channels:      make(map[string]Channel),
		limiters:      make(map[string]*rate.Limiter),
		timeout:       timeout,
		ratePerMinute: ratePerMinute,
		log:           logger.OrNop(log),
	}
}

// Register adds or replaces a channel under its name.
func (r *Router) Register(ch Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := ch.Name()
	r.channels[name] = ch
	if r.ratePerMinute > 0 {
		r.limiters[name] = rate.NewLimiter(rate.Limit(float64(r.ratePerMinute)/60), r.ratePerMinute)
	}
	r.log.Info("Notification channel registered", zap.String("channel", name))
}

// Channels returns the registered channel names, sorted.
func (r *Router) Channels() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.channels))
	for name := range r.channels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Route resolves the target channels for an alert: the rule's own channels
// plus the severity policy, restricted to registered channels.
func (r *Router) Route(a alert.Alert) []string {
	want := make(map[string]bool, len(a.Channels)+2)
	for _, ch := range a.Channels {
		want[ch] = true
	}
	if a.Severity == alert.SeverityCritical {
		want[alert.ChannelBroadcast] = true
		if emailCategories[a.Category] {
			want[alert.ChannelEmail] = true
		}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	targets := make([]string, 0, len(want))
	for name := range want {
		if _, ok := r.channels[name]; ok {
			targets = append(targets, name)
		}
	}
	sort.Strings(targets)
	return targets
}

// Dispatch implements alert.Dispatcher. It returns immediately.
func (r *Router) Dispatch(ctx context.Context, t alert.Transition) {
	targets := r.Route(t.Alert)
	if len(targets) == 0 {
		r.log.Debug("No channel for alert", zap.String("alert_id", t.Alert.ID), zap.String("type", t.Alert.Type))
		return
	}

	// 通知不随周期的 ctx 取消而中断，只受渠道超时约束
	base := context.WithoutCancel(ctx)

	for _, name := range targets {
		r.mu.RLock()
		ch := r.channels[name]
		limiter := r.limiters[name]
		r.mu.RUnlock()

		if limiter != nil && !limiter.Allow() {
			r.log.Warn("Notification dropped by rate limit",
				zap.String("channel", name),
				zap.String("alert_id", t.Alert.ID))
			continue
		}

		r.wg.Add(1)
		go r.send(base, ch, t)
	}
}

func (r *Router) send(ctx context.Context, ch Channel, t alert.Transition) {
	defer r.wg.Done()
	defer func() {
		if p := recover(); p != nil {
			r.log.Error("Notification channel panicked",
				zap.String("channel", ch.Name()),
				zap.String("alert_id", t.Alert.ID),
				zap.Any("panic", p))
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	if err := ch.Send(ctx, t.Alert); err != nil {
		r.log.Error("Notification failed",
			zap.String("channel", ch.Name()),
			zap.String("alert_id", t.Alert.ID),
			zap.String("transition", string(t.Kind)),
			zap.Error(err))
		return
	}
	r.log.Info("Notification sent",
		zap.String("channel", ch.Name()),
		zap.String("alert_id", t.Alert.ID),
		zap.String("transition", string(t.Kind)),
		zap.Duration("took", time.Since(start)))
}

// Wait blocks until in-flight sends finish or ctx is done.
func (r *Router) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

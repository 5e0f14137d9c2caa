package alert

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amitpo23/medici-web03012026-sub000/internal/logger"
	"github.com/amitpo23/medici-web03012026-sub000/internal/signals"

	"go.uber.org/zap"
)

// TestAlertType is the type slot used by synthetic alerts.
const TestAlertType = "test_alert"

// ErrInvalidSeverity is returned when a caller supplies an unknown severity.
var ErrInvalidSeverity = errors.New("invalid severity")

// Dispatcher hands a transition to the notification layer. It must not block.
type Dispatcher interface {
	Dispatch(ctx context.Context, t Transition)
}

// Sink archives lifecycle transitions, e.g. to SQL or a search index.
type Sink interface {
	Name() string
	Record(ctx context.Context, t Transition) error
}

// EngineOptions 引擎依赖
type EngineOptions struct {
	Providers  []signals.Provider
	Rules      *RuleEngine
	Store      *Store
	Thresholds *Thresholds
	Dispatcher Dispatcher
	Sinks      []Sink

	ProviderTimeout time.Duration
	SinkTimeout     time.Duration
	// ResolveNotify sends a notification when an alert resolves.
	ResolveNotify bool

	Now    func() time.Time
	Logger *zap.Logger
}

// CycleResult summarizes one evaluation cycle.
type CycleResult struct {
	StartedAt      time.Time               `json:"started_at"`
	Duration       time.Duration           `json:"duration"`
	Signals        []signals.Kind          `json:"signals"`
	Outcomes       []Outcome               `json:"outcomes"`
	Transitions    []Transition            `json:"transitions"`
	ProviderErrors []signals.ProviderError `json:"provider_errors,omitempty"`
	RuleErrors     []RuleError             `json:"rule_errors,omitempty"`
	Notified       int                     `json:"notified"`
}

// ActiveSummary is the active list plus derived severity counts.
type ActiveSummary struct {
	Alerts   []Alert `json:"alerts"`
	Total    int     `json:"total"`
	Critical int     `json:"critical"`
	Warning  int     `json:"warning"`
}

// Engine wires providers, rules, the store and the notification layer.
type Engine struct {
	providers  []signals.Provider
	rules      *RuleEngine
	store      *Store
	thresholds *Thresholds
	dispatcher Dispatcher
	sinks      []Sink
	cooldown   *Cooldown

	providerTimeout time.Duration
	sinkTimeout     time.Duration
	resolveNotify   bool

	now func() time.Time
	log *zap.Logger
}

func NewEngine(opts EngineOptions) *Engine {
	e := &Engine{
		providers:       opts.Providers,
		rules:           opts.Rules,
		store:           opts.Store,
		thresholds:      opts.Thresholds,
		dispatcher:      opts.Dispatcher,
		sinks:           opts.Sinks,
		providerTimeout: opts.ProviderTimeout,
		sinkTimeout:     opts.SinkTimeout,
		resolveNotify:   opts.ResolveNotify,
		now:             opts.Now,
		log:             logger.OrNop(opts.Logger),
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.rules == nil {
		e.rules = NewRuleEngine(e.log, BuiltinRules(DefaultLogCooldown)...)
	}
	if e.store == nil {
		e.store = NewStore(DefaultHistoryCapacity, WithClock(e.now), WithStoreLogger(e.log))
	}
	if e.thresholds == nil {
		e.thresholds, _ = NewThresholds(nil)
	}
	if e.providerTimeout <= 0 {
		e.providerTimeout = 10 * time.Second
	}
	if e.sinkTimeout <= 0 {
		e.sinkTimeout = 5 * time.Second
	}
	e.cooldown = NewCooldown(e.now)
	return e
}

// RunCycle collects signals, evaluates rules, applies outcomes to the store
// and emits the resulting transitions. Failures of individual providers,
// rules, channels or sinks are logged and reported, never returned.
func (e *Engine) RunCycle(ctx context.Context) CycleResult {
	started := e.now()
	res := CycleResult{StartedAt: started}

	values := e.thresholds.All()
	set, providerErrs := signals.Collect(ctx, e.providers, e.providerTimeout, e.log)
	res.ProviderErrors = providerErrs
	for k := range set {
		res.Signals = append(res.Signals, k)
	}

	outcomes, ruleErrs := e.rules.Evaluate(ctx, set, values)
	res.Outcomes = outcomes
	res.RuleErrors = ruleErrs

	for _, o := range outcomes {
		t := e.store.Apply(o)
		if t.Kind == TransitionNone {
			continue
		}
		t = e.applyNotifyPolicy(t, o.Cooldown)
		if e.emit(ctx, t) {
			res.Notified++
		}
		res.Transitions = append(res.Transitions, t)
	}

	res.Duration = e.now().Sub(started)
	e.log.Debug("Alert cycle finished",
		zap.Int("signals", len(set)),
		zap.Int("outcomes", len(outcomes)),
		zap.Int("transitions", len(res.Transitions)),
		zap.Int("notified", res.Notified),
		zap.Duration("duration", res.Duration))
	return res
}

func (e *Engine) applyNotifyPolicy(t Transition, cooldown time.Duration) Transition {
	switch t.Kind {
	case TransitionCreated, TransitionEscalated:
		if t.Notify && !e.cooldown.Allow(t.Alert.Type, cooldown) {
			e.log.Debug("Notification suppressed by cooldown",
				zap.String("type", t.Alert.Type),
				zap.Duration("cooldown", cooldown))
			t.Notify = false
		}
	case TransitionResolved:
		t.Notify = e.resolveNotify
	}
	return t
}

// emit records the transition in every sink and, when asked, dispatches it.
// Sinks run first and their failures do not affect dispatch.
func (e *Engine) emit(ctx context.Context, t Transition) bool {
	if t.Kind != TransitionRefired {
		for _, s := range e.sinks {
			sctx, cancel := context.WithTimeout(ctx, e.sinkTimeout)
			if err := s.Record(sctx, t); err != nil {
				e.log.Warn("Alert sink failed",
					zap.String("sink", s.Name()),
					zap.String("alert_id", t.Alert.ID),
					zap.Error(err))
			}
			cancel()
		}
	}
	if t.Notify && e.dispatcher != nil {
		e.dispatcher.Dispatch(ctx, t)
		return true
	}
	return false
}

// Active returns active alerts with derived severity counts.
func (e *Engine) Active() ActiveSummary {
	alerts := e.store.GetActive()
	sum := ActiveSummary{Alerts: alerts, Total: len(alerts)}
	for _, a := range alerts {
		switch a.Severity {
		case SeverityCritical:
			sum.Critical++
		case SeverityWarning:
			sum.Warning++
		}
	}
	return sum
}

// History returns up to limit history entries, newest first.
func (e *Engine) History(limit int) []HistoryEntry {
	return e.store.GetHistory(limit)
}

// HistoryCapacity 返回历史环容量
func (e *Engine) HistoryCapacity() int {
	return e.store.HistoryCapacity()
}

// Stats computes statistics over a consistent store snapshot.
func (e *Engine) Stats() Stats {
	active, history := e.store.Snapshot()
	return ComputeStats(active, history, e.now())
}

// Acknowledge marks an active alert acknowledged.
func (e *Engine) Acknowledge(ctx context.Context, id string) (Alert, error) {
	t, err := e.store.Acknowledge(id)
	if err != nil {
		return Alert{}, err
	}
	if t.Kind != TransitionNone {
		e.emit(ctx, t)
	}
	return t.Alert, nil
}

// Resolve manually resolves the active alert of alertType.
func (e *Engine) Resolve(ctx context.Context, alertType string) (Alert, error) {
	t, err := e.store.ResolveByType(alertType)
	if err != nil {
		return Alert{}, err
	}
	t = e.applyNotifyPolicy(t, 0)
	e.emit(ctx, t)
	return t.Alert, nil
}

// Thresholds returns the current threshold values.
func (e *Engine) Thresholds() Values {
	return e.thresholds.All()
}

// UpdateThresholds changes thresholds for the next cycle.
func (e *Engine) UpdateThresholds(changes map[string]float64) (Values, error) {
	values, err := e.thresholds.Update(changes)
	if err != nil {
		return nil, err
	}
	e.log.Info("Thresholds updated", zap.Any("changes", changes))
	return values, nil
}

// Rules returns the registered rules.
func (e *Engine) Rules() []Rule {
	return e.rules.Rules()
}

// CreateTestAlert pushes a synthetic alert straight into the store,
// bypassing rule evaluation.
func (e *Engine) CreateTestAlert(ctx context.Context, severity Severity, message string) (Alert, error) {
	if severity == "" {
		severity = SeverityWarning
	}
	if !severity.Valid() {
		return Alert{}, fmt.Errorf("%w: %q", ErrInvalidSeverity, severity)
	}
	if message == "" {
		message = "This is a test alert"
	}

	t := e.store.Apply(Outcome{
		RuleID:   TestAlertType,
		Fired:    true,
		Severity: severity,
		Title:    "Test alert",
		Message:  message,
		Category: "test",
		Channels: []string{ChannelBroadcast},
		Metadata: map[string]interface{}{"synthetic": true},
	})
	e.emit(ctx, t)
	return t.Alert, nil
}

package alert

import (
	"context"
	"testing"
	"time"

	"github.com/amitpo23/medici-web03012026-sub000/internal/signals"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuleEngine_IsolatesPanickingRule(t *testing.T) {
	engine := NewRuleEngine(nil,
		Rule{
			ID:       "good",
			Severity: SeverityWarning,
			Condition: func(signals.Set, Values) *Outcome {
				return &Outcome{Fired: true}
			},
		},
		Rule{
			ID: "bad",
			Condition: func(signals.Set, Values) *Outcome {
				var m map[string]int
				m["boom"] = 1
				return nil
			},
		},
		Rule{
			ID: "silent",
			Condition: func(signals.Set, Values) *Outcome {
				return nil
			},
		},
	)

	outcomes, failures := engine.Evaluate(context.Background(), signals.Set{}, Values{})

	require.Len(t, outcomes, 1)
	assert.Equal(t, "good", outcomes[0].RuleID)
	require.Len(t, failures, 1)
	assert.Equal(t, "bad", failures[0].Rule)
	assert.Contains(t, failures[0].Error, "panicked")
}

func TestRuleEngine_FillsRuleMetadata(t *testing.T) {
	engine := NewRuleEngine(nil, Rule{
		ID:       "db_slow",
		Name:     "Slow database",
		Severity: SeverityWarning,
		Category: CategoryDatabase,
		Channels: []string{ChannelChat},
		Cooldown: time.Minute,
		Condition: func(signals.Set, Values) *Outcome {
			return &Outcome{RuleID: "ignored", Fired: true}
		},
	})

	outcomes, failures := engine.Evaluate(context.Background(), signals.Set{}, Values{})
	require.Empty(t, failures)
	require.Len(t, outcomes, 1)

	o := outcomes[0]
	assert.Equal(t, "db_slow", o.RuleID)
	assert.Equal(t, SeverityWarning, o.Severity)
	assert.Equal(t, CategoryDatabase, o.Category)
	assert.Equal(t, []string{ChannelChat}, o.Channels)
	assert.Equal(t, "Slow database", o.Title)
	assert.Equal(t, time.Minute, o.Cooldown)
}

func TestTiered(t *testing.T) {
	tests := []struct {
		name      string
		value     float64
		threshold float64
		want      Severity
		fired     bool
	}{
		{"below", 9, 10, "", false},
		{"at threshold", 10, 10, SeverityWarning, true},
		{"between", 19.9, 10, SeverityWarning, true},
		{"double", 20, 10, SeverityCritical, true},
		{"disabled threshold", 100, 0, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sev, fired := tiered(tt.value, tt.threshold)
			assert.Equal(t, tt.fired, fired)
			assert.Equal(t, tt.want, sev)
		})
	}
}

func TestBuiltinRules(t *testing.T) {
	now := time.Date(2026, 1, 14, 12, 0, 0, 0, time.UTC)
	th := Values(DefaultThresholds())

	tests := []struct {
		name     string
		cond     Condition
		set      signals.Set
		wantNil  bool
		fired    bool
		severity Severity
	}{
		{
			name:    "error rate without api snapshot has no opinion",
			cond:    errorRateCondition,
			set:     signals.Set{},
			wantNil: true,
		},
		{
			name:  "error rate with no traffic clears",
			cond:  errorRateCondition,
			set:   signals.Set{signals.KindAPI: signals.APISnapshot{At: now}},
			fired: false,
		},
		{
			name:     "error rate above threshold",
			cond:     errorRateCondition,
			set:      signals.Set{signals.KindAPI: signals.APISnapshot{At: now, Total: 100, Errors: 7}},
			fired:    true,
			severity: SeverityWarning,
		},
		{
			name:     "error rate doubled is critical",
			cond:     errorRateCondition,
			set:      signals.Set{signals.KindAPI: signals.APISnapshot{At: now, Total: 100, Errors: 12}},
			fired:    true,
			severity: SeverityCritical,
		},
		{
			name:     "slow responses",
			cond:     slowResponseCondition,
			set:      signals.Set{signals.KindAPI: signals.APISnapshot{At: now, Total: 5, AvgResponseMs: 3500}},
			fired:    true,
			severity: SeverityWarning,
		},
		{
			name:  "fast responses clear",
			cond:  slowResponseCondition,
			set:   signals.Set{signals.KindAPI: signals.APISnapshot{At: now, Total: 5, AvgResponseMs: 120}},
			fired: false,
		},
		{
			name:     "revenue halved",
			cond:     revenueDropCondition,
			set:      signals.Set{signals.KindRevenue: signals.RevenueSnapshot{At: now, CurrentHour: 300, PreviousHour: 1000}},
			fired:    true,
			severity: SeverityCritical,
		},
		{
			name:  "revenue growth clears",
			cond:  revenueDropCondition,
			set:   signals.Set{signals.KindRevenue: signals.RevenueSnapshot{At: now, CurrentHour: 1200, PreviousHour: 1000}},
			fired: false,
		},
		{
			name:     "database slow",
			cond:     dbSlowCondition,
			set:      signals.Set{signals.KindDatabase: signals.DatabaseSnapshot{At: now, ResponseMs: 1500}},
			fired:    true,
			severity: SeverityWarning,
		},
		{
			name:     "database very slow",
			cond:     dbSlowCondition,
			set:      signals.Set{signals.KindDatabase: signals.DatabaseSnapshot{At: now, ResponseMs: 2500}},
			fired:    true,
			severity: SeverityCritical,
		},
		{
			name:     "memory high",
			cond:     highMemoryCondition,
			set:      signals.Set{signals.KindSystem: signals.SystemSnapshot{At: now, MemoryPercent: 93}},
			fired:    true,
			severity: SeverityWarning,
		},
		{
			name: "fatal log entry",
			cond: logFatalCondition,
			set: signals.Set{signals.KindLogs: signals.LogSnapshot{At: now, Entries: []signals.LogEntry{
				{Timestamp: now.Add(-time.Minute), Level: "info", Message: "ok"},
				{Timestamp: now.Add(-30 * time.Second), Level: "fatal", Message: "out of file descriptors"},
			}}},
			fired:    true,
			severity: SeverityCritical,
		},
		{
			name: "one of two endpoints down",
			cond: endpointDownCondition,
			set: signals.Set{signals.KindEndpoints: signals.EndpointSnapshot{At: now, Endpoints: []signals.EndpointStatus{
				{Name: "supplier-api", Up: false, Message: "HTTP 502"},
				{Name: "payments", Up: true},
			}}},
			fired:    true,
			severity: SeverityWarning,
		},
		{
			name: "all endpoints down",
			cond: endpointDownCondition,
			set: signals.Set{signals.KindEndpoints: signals.EndpointSnapshot{At: now, Endpoints: []signals.EndpointStatus{
				{Name: "supplier-api", Up: false},
			}}},
			fired:    true,
			severity: SeverityCritical,
		},
		{
			name:    "no probes configured",
			cond:    endpointDownCondition,
			set:     signals.Set{signals.KindEndpoints: signals.EndpointSnapshot{At: now}},
			wantNil: true,
		},
		{
			name: "no fatal entries clear",
			cond: logFatalCondition,
			set: signals.Set{signals.KindLogs: signals.LogSnapshot{At: now, Entries: []signals.LogEntry{
				{Timestamp: now, Level: "error", Message: "retrying"},
			}}},
			fired: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := tt.cond(tt.set, th)
			if tt.wantNil {
				assert.Nil(t, o)
				return
			}
			require.NotNil(t, o)
			assert.Equal(t, tt.fired, o.Fired)
			if tt.fired {
				assert.Equal(t, tt.severity, o.Severity)
				assert.NotEmpty(t, o.Message)
			}
		})
	}
}

func TestLogErrorBurst(t *testing.T) {
	now := time.Date(2026, 1, 14, 12, 0, 0, 0, time.UTC)
	entries := make([]signals.LogEntry, 0, 12)
	for i := 0; i < 12; i++ {
		entries = append(entries, signals.LogEntry{Timestamp: now.Add(-time.Duration(i) * time.Second), Level: "error", Message: "upstream timeout", Source: "booking"})
	}
	set := signals.Set{signals.KindLogs: signals.LogSnapshot{At: now, Window: 5 * time.Minute, Entries: entries}}

	o := logErrorBurstCondition(set, Values(DefaultThresholds()))

	require.NotNil(t, o)
	assert.True(t, o.Fired)
	assert.Equal(t, SeverityWarning, o.Severity)
	assert.Equal(t, 12, o.Metadata["errors"])
	assert.Equal(t, "upstream timeout", o.Metadata["last_message"])
}

func TestBuiltinRules_LogRulesUseCooldown(t *testing.T) {
	for _, r := range BuiltinRules(time.Hour) {
		switch r.ID {
		case "log_error_burst", "log_fatal":
			assert.Equal(t, time.Hour, r.Cooldown, r.ID)
		default:
			assert.Zero(t, r.Cooldown, r.ID)
		}
		assert.NotNil(t, r.Condition, r.ID)
	}
}

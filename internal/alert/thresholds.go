package alert

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
)

// 阈值名称
const (
	ThresholdErrorRate         = "error_rate_threshold"
	ThresholdSlowResponse      = "slow_response_threshold"
	ThresholdCancellationSpike = "cancellation_spike_threshold"
	ThresholdRevenueDrop       = "revenue_drop_threshold"
	ThresholdDBResponse        = "db_response_threshold"
	ThresholdMemoryUsage       = "memory_usage_threshold"
	ThresholdLogErrorBurst     = "log_error_burst_threshold"
)

// DefaultThresholds returns a fresh copy of the built-in threshold values.
func DefaultThresholds() map[string]float64 {
	return map[string]float64{
		ThresholdErrorRate:         5,    // percent
		ThresholdSlowResponse:      3000, // ms
		ThresholdCancellationSpike: 10,   // failures per hour
		ThresholdRevenueDrop:       30,   // percent
		ThresholdDBResponse:        1000, // ms
		ThresholdMemoryUsage:       90,   // percent
		ThresholdLogErrorBurst:     10,   // error entries per window
	}
}

// Values is an immutable view of the thresholds handed to rule conditions.
type Values map[string]float64

// Get returns the value for key, or 0 when absent.
func (v Values) Get(key string) float64 { return v[key] }

// ThresholdError names the keys an update was rejected for.
type ThresholdError struct {
	Unknown []string
	Invalid []string
}

func (e *ThresholdError) Error() string {
	var parts []string
	if len(e.Unknown) > 0 {
		parts = append(parts, fmt.Sprintf("unknown threshold keys: %s", strings.Join(e.Unknown, ", ")))
	}
	if len(e.Invalid) > 0 {
		parts = append(parts, fmt.Sprintf("invalid threshold values: %s", strings.Join(e.Invalid, ", ")))
	}
	return strings.Join(parts, "; ")
}

func (e *ThresholdError) Is(target error) bool {
	switch target {
	case ErrUnknownThreshold:
		return len(e.Unknown) > 0
	case ErrInvalidThreshold:
		return len(e.Invalid) > 0
	}
	return false
}

// Keys returns every offending key, unknown first.
func (e *ThresholdError) Keys() []string {
	return append(append([]string(nil), e.Unknown...), e.Invalid...)
}

// Thresholds holds the runtime-tunable rule parameters.
// Updates take effect on the next evaluation cycle.
type Thresholds struct {
	mu     sync.RWMutex
	values map[string]float64
}

// NewThresholds starts from the defaults and applies overrides.
func NewThresholds(overrides map[string]float64) (*Thresholds, error) {
	t := &Thresholds{values: DefaultThresholds()}
	if len(overrides) > 0 {
		if _, err := t.Update(overrides); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func (t *Thresholds) Get(key string) (float64, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.values[key]
	return v, ok
}

// All returns a copy of the current values.
func (t *Thresholds) All() Values {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(Values, len(t.values))
	for k, v := range t.values {
		out[k] = v
	}
	return out
}

// Update applies changes atomically: either every key is accepted or none is.
func (t *Thresholds) Update(changes map[string]float64) (Values, error) {
	t.mu.Lock()
	var terr ThresholdError
	for k, v := range changes {
		if _, ok := t.values[k]; !ok {
			terr.Unknown = append(terr.Unknown, k)
			continue
		}
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			terr.Invalid = append(terr.Invalid, k)
		}
	}
	if len(terr.Unknown) > 0 || len(terr.Invalid) > 0 {
		t.mu.Unlock()
		sort.Strings(terr.Unknown)
		sort.Strings(terr.Invalid)
		return nil, &terr
	}
	for k, v := range changes {
		t.values[k] = v
	}
	t.mu.Unlock()
	return t.All(), nil
}

package alert

import (
	"fmt"
	"strings"
	"time"

	"github.com/amitpo23/medici-web03012026-sub000/internal/signals"
)

// 通知渠道标识
const (
	ChannelBroadcast = "broadcast"
	ChannelEmail     = "email"
	ChannelWebhook   = "webhook"
	ChannelChat      = "chat"
)

// 告警分类
const (
	CategoryAPI           = "api"
	CategoryCancellations = "cancellations"
	CategoryRevenue       = "revenue"
	CategoryDatabase      = "database"
	CategorySystem        = "system"
	CategoryLogs          = "logs"
	CategoryUpstream      = "upstream"
)

// DefaultLogCooldown is the notification cooldown for log-pattern rules.
const DefaultLogCooldown = 30 * time.Minute

// BuiltinRules returns the standard rule set. logCooldown applies to the
// log-pattern rules, which otherwise re-alert on every recurrence.
func BuiltinRules(logCooldown time.Duration) []Rule {
	return []Rule{
		{
			ID:          "error_rate",
			Name:        "High API error rate",
			Description: "Share of 5xx responses in the recent window",
			Severity:    SeverityWarning,
			Category:    CategoryAPI,
			Channels:    []string{ChannelBroadcast, ChannelWebhook},
			Condition:   errorRateCondition,
		},
		{
			ID:          "slow_response",
			Name:        "Slow API responses",
			Description: "Average API response time in the recent window",
			Severity:    SeverityWarning,
			Category:    CategoryAPI,
			Channels:    []string{ChannelBroadcast},
			Condition:   slowResponseCondition,
		},
		{
			ID:          "cancellation_spike",
			Name:        "Cancellation failures spike",
			Description: "Failed cancellations in the last hour",
			Severity:    SeverityWarning,
			Category:    CategoryCancellations,
			Channels:    []string{ChannelBroadcast, ChannelChat},
			Condition:   cancellationSpikeCondition,
		},
		{
			ID:          "revenue_drop",
			Name:        "Revenue drop",
			Description: "Hour over hour revenue decline",
			Severity:    SeverityWarning,
			Category:    CategoryRevenue,
			Channels:    []string{ChannelBroadcast, ChannelChat},
			Condition:   revenueDropCondition,
		},
		{
			ID:          "db_slow",
			Name:        "Slow database",
			Description: "Round trip time of a trivial query",
			Severity:    SeverityWarning,
			Category:    CategoryDatabase,
			Channels:    []string{ChannelBroadcast, ChannelChat},
			Condition:   dbSlowCondition,
		},
		{
			ID:          "high_memory",
			Name:        "High memory usage",
			Description: "Host memory usage percentage",
			Severity:    SeverityWarning,
			Category:    CategorySystem,
			Channels:    []string{ChannelBroadcast},
			Condition:   highMemoryCondition,
		},
		{
			ID:          "endpoint_down",
			Name:        "Upstream endpoint down",
			Description: "Configured HTTP/TCP dependencies failing their probe",
			Severity:    SeverityWarning,
			Category:    CategoryUpstream,
			Channels:    []string{ChannelBroadcast, ChannelChat},
			Condition:   endpointDownCondition,
		},
		{
			ID:          "log_error_burst",
			Name:        "Error log burst",
			Description: "Error level log entries in the look-back window",
			Severity:    SeverityWarning,
			Category:    CategoryLogs,
			Channels:    []string{ChannelBroadcast, ChannelChat},
			Cooldown:    logCooldown,
			Condition:   logErrorBurstCondition,
		},
		{
			ID:          "log_fatal",
			Name:        "Fatal log entry",
			Description: "Any fatal or panic entry in the look-back window",
			Severity:    SeverityCritical,
			Category:    CategoryLogs,
			Channels:    []string{ChannelBroadcast, ChannelChat},
			Cooldown:    logCooldown,
			Condition:   logFatalCondition,
		},
	}
}

// tiered returns warning at threshold and critical at twice the threshold.
func tiered(value, threshold float64) (Severity, bool) {
	if threshold <= 0 {
		return "", false
	}
	switch {
	case value >= 2*threshold:
		return SeverityCritical, true
	case value >= threshold:
		return SeverityWarning, true
	default:
		return "", false
	}
}

func errorRateCondition(set signals.Set, th Values) *Outcome {
	api, ok := set.API()
	if !ok {
		return nil
	}
	threshold := th.Get(ThresholdErrorRate)
	rate := api.ErrorRate()
	sev, fired := tiered(rate, threshold)
	if !fired || api.Total == 0 {
		return Clear("error_rate")
	}
	return Fire("error_rate", sev,
		"High API error rate",
		fmt.Sprintf("API error rate is %.1f%% (%d of %d requests), threshold %.1f%%",
			rate, api.Errors, api.Total, threshold),
		map[string]interface{}{
			"error_rate": rate,
			"errors":     api.Errors,
			"total":      api.Total,
			"threshold":  threshold,
		})
}

func slowResponseCondition(set signals.Set, th Values) *Outcome {
	api, ok := set.API()
	if !ok {
		return nil
	}
	threshold := th.Get(ThresholdSlowResponse)
	sev, fired := tiered(api.AvgResponseMs, threshold)
	if !fired || api.Total == 0 {
		return Clear("slow_response")
	}
	return Fire("slow_response", sev,
		"Slow API responses",
		fmt.Sprintf("Average API response time is %.0fms (max %dms), threshold %.0fms",
			api.AvgResponseMs, api.MaxResponseMs, threshold),
		map[string]interface{}{
			"avg_response_ms": api.AvgResponseMs,
			"max_response_ms": api.MaxResponseMs,
			"threshold":       threshold,
		})
}

func cancellationSpikeCondition(set signals.Set, th Values) *Outcome {
	c, ok := set.Cancellations()
	if !ok {
		return nil
	}
	threshold := th.Get(ThresholdCancellationSpike)
	sev, fired := tiered(float64(c.FailuresLastHour), threshold)
	if !fired {
		return Clear("cancellation_spike")
	}
	return Fire("cancellation_spike", sev,
		"Cancellation failures spike",
		fmt.Sprintf("%d cancellation failures in the last hour, threshold %.0f",
			c.FailuresLastHour, threshold),
		map[string]interface{}{
			"failures":  c.FailuresLastHour,
			"total":     c.TotalLastHour,
			"threshold": threshold,
		})
}

func revenueDropCondition(set signals.Set, th Values) *Outcome {
	r, ok := set.Revenue()
	if !ok {
		return nil
	}
	threshold := th.Get(ThresholdRevenueDrop)
	drop := r.DropPercent()
	sev, fired := tiered(drop, threshold)
	if !fired {
		return Clear("revenue_drop")
	}
	return Fire("revenue_drop", sev,
		"Revenue drop",
		fmt.Sprintf("Revenue dropped %.1f%% hour over hour (%.2f -> %.2f), threshold %.1f%%",
			drop, r.PreviousHour, r.CurrentHour, threshold),
		map[string]interface{}{
			"drop_percent":  drop,
			"current_hour":  r.CurrentHour,
			"previous_hour": r.PreviousHour,
			"threshold":     threshold,
		})
}

func dbSlowCondition(set signals.Set, th Values) *Outcome {
	d, ok := set.Database()
	if !ok {
		return nil
	}
	threshold := th.Get(ThresholdDBResponse)
	sev, fired := tiered(float64(d.ResponseMs), threshold)
	if !fired {
		return Clear("db_slow")
	}
	return Fire("db_slow", sev,
		"Slow database",
		fmt.Sprintf("Database responded in %dms, threshold %.0fms", d.ResponseMs, threshold),
		map[string]interface{}{
			"response_ms": d.ResponseMs,
			"threshold":   threshold,
		})
}

func highMemoryCondition(set signals.Set, th Values) *Outcome {
	s, ok := set.System()
	if !ok {
		return nil
	}
	threshold := th.Get(ThresholdMemoryUsage)
	if threshold <= 0 || s.MemoryPercent < threshold {
		return Clear("high_memory")
	}
	return Fire("high_memory", SeverityWarning,
		"High memory usage",
		fmt.Sprintf("Memory usage is %.1f%%, threshold %.0f%%", s.MemoryPercent, threshold),
		map[string]interface{}{
			"memory_percent": s.MemoryPercent,
			"cpu_percent":    s.CPUPercent,
			"threshold":      threshold,
		})
}

// endpointDownCondition is critical once every probed endpoint is down.
func endpointDownCondition(set signals.Set, _ Values) *Outcome {
	eps, ok := set.Endpoints()
	if !ok || len(eps.Endpoints) == 0 {
		return nil
	}
	down := eps.Down()
	if len(down) == 0 {
		return Clear("endpoint_down")
	}

	sev := SeverityWarning
	if len(down) == len(eps.Endpoints) {
		sev = SeverityCritical
	}
	names := make([]string, len(down))
	for i, d := range down {
		names[i] = d.Name
	}
	return Fire("endpoint_down", sev,
		"Upstream endpoint down",
		fmt.Sprintf("%d of %d endpoints down: %s (%s)",
			len(down), len(eps.Endpoints), strings.Join(names, ", "), down[0].Message),
		map[string]interface{}{
			"down":       names,
			"down_count": len(down),
			"total":      len(eps.Endpoints),
		})
}

func logErrorBurstCondition(set signals.Set, th Values) *Outcome {
	logs, ok := set.Logs()
	if !ok {
		return nil
	}
	threshold := th.Get(ThresholdLogErrorBurst)
	count := logs.CountLevel("error", "fatal", "panic")
	sev, fired := tiered(float64(count), threshold)
	if !fired {
		return Clear("log_error_burst")
	}
	meta := map[string]interface{}{
		"errors":         count,
		"window_minutes": logs.Window.Minutes(),
		"threshold":      threshold,
	}
	if last, ok := lastWithLevel(logs, "error", "fatal", "panic"); ok {
		meta["last_message"] = last.Message
		meta["last_source"] = last.Source
	}
	return Fire("log_error_burst", sev,
		"Error log burst",
		fmt.Sprintf("%d error entries in the last %s, threshold %.0f", count, logs.Window, threshold),
		meta)
}

func logFatalCondition(set signals.Set, _ Values) *Outcome {
	logs, ok := set.Logs()
	if !ok {
		return nil
	}
	last, found := lastWithLevel(logs, "fatal", "panic")
	if !found {
		return Clear("log_fatal")
	}
	return Fire("log_fatal", SeverityCritical,
		"Fatal log entry",
		fmt.Sprintf("Fatal entry logged at %s: %s", last.Timestamp.Format(time.RFC3339), last.Message),
		map[string]interface{}{
			"fatal_count": logs.CountLevel("fatal", "panic"),
			"message":     last.Message,
			"source":      last.Source,
		})
}

func lastWithLevel(logs signals.LogSnapshot, levels ...string) (signals.LogEntry, bool) {
	for i := len(logs.Entries) - 1; i >= 0; i-- {
		for _, l := range levels {
			if logs.Entries[i].Level == l {
				return logs.Entries[i], true
			}
		}
	}
	return signals.LogEntry{}, false
}

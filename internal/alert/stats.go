package alert

import (
	"sort"
	"time"
)

const (
	statsWindow  = 24 * time.Hour
	topTypeLimit = 5
)

// TypeCount is one entry of the most-frequent alert types.
type TypeCount struct {
	Type     string    `json:"type"`
	Count    int       `json:"count"`
	LastSeen time.Time `json:"last_seen"`
}

// Stats 告警统计
type Stats struct {
	Active            int              `json:"active"`
	ActiveBySeverity  map[Severity]int `json:"active_by_severity"`
	Last24h           int              `json:"last_24h"`
	Last24hBySeverity map[Severity]int `json:"last_24h_by_severity"`
	ByCategory        map[string]int   `json:"by_category"`
	TopTypes          []TypeCount      `json:"top_types"`
	HistorySize       int              `json:"history_size"`
	GeneratedAt       time.Time        `json:"generated_at"`
}

// ComputeStats derives rollups from the active set and the history ring.
// Only firing entries (created, escalated) are counted; acks and resolves
// would otherwise count one alert several times.
func ComputeStats(active []Alert, history []HistoryEntry, now time.Time) Stats {
	st := Stats{
		Active:            len(active),
		ActiveBySeverity:  map[Severity]int{SeverityCritical: 0, SeverityWarning: 0},
		Last24hBySeverity: map[Severity]int{SeverityCritical: 0, SeverityWarning: 0},
		ByCategory:        make(map[string]int),
		TopTypes:          make([]TypeCount, 0, topTypeLimit),
		HistorySize:       len(history),
		GeneratedAt:       now,
	}

	for _, a := range active {
		st.ActiveBySeverity[a.Severity]++
	}

	since := now.Add(-statsWindow)
	types := make(map[string]*TypeCount)
	for _, h := range history {
		if !h.firing() {
			continue
		}
		category := h.Category
		if category == "" {
			category = "other"
		}
		st.ByCategory[category]++

		if h.RecordedAt.Before(since) || h.RecordedAt.After(now) {
			continue
		}
		st.Last24h++
		st.Last24hBySeverity[h.Severity]++

		tc, ok := types[h.Type]
		if !ok {
			tc = &TypeCount{Type: h.Type}
			types[h.Type] = tc
		}
		tc.Count++
		if h.RecordedAt.After(tc.LastSeen) {
			tc.LastSeen = h.RecordedAt
		}
	}

	ranked := make([]TypeCount, 0, len(types))
	for _, tc := range types {
		ranked = append(ranked, *tc)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		if !ranked[i].LastSeen.Equal(ranked[j].LastSeen) {
			return ranked[i].LastSeen.After(ranked[j].LastSeen)
		}
		return ranked[i].Type < ranked[j].Type
	})
	if len(ranked) > topTypeLimit {
		ranked = ranked[:topTypeLimit]
	}
	st.TopTypes = append(st.TopTypes, ranked...)

	return st
}

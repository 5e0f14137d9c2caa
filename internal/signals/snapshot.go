package signals

import "time"

// Kind identifies which monitored domain a snapshot describes.
type Kind string

const (
	KindAPI           Kind = "api"
	KindCancellations Kind = "cancellations"
	KindRevenue       Kind = "revenue"
	KindDatabase      Kind = "database"
	KindLogs          Kind = "logs"
	KindSystem        Kind = "system"
	KindEndpoints     Kind = "endpoints"
)

// Snapshot is an immutable point-in-time read of one data source.
type Snapshot interface {
	Kind() Kind
	TakenAt() time.Time
}

// APISnapshot summarizes recent API traffic.
type APISnapshot struct {
	At            time.Time
	Window        time.Duration
	Total         int64
	Errors        int64
	AvgResponseMs float64
	MaxResponseMs int64
}

func (s APISnapshot) Kind() Kind         { return KindAPI }
func (s APISnapshot) TakenAt() time.Time { return s.At }

// ErrorRate returns the error percentage, or 0 when there was no traffic.
func (s APISnapshot) ErrorRate() float64 {
	if s.Total <= 0 {
		return 0
	}
	return float64(s.Errors) * 100 / float64(s.Total)
}

// CancellationSnapshot counts failed cancellations within the last hour.
type CancellationSnapshot struct {
	At               time.Time
	FailuresLastHour int64
	TotalLastHour    int64
}

func (s CancellationSnapshot) Kind() Kind         { return KindCancellations }
func (s CancellationSnapshot) TakenAt() time.Time { return s.At }

// RevenueSnapshot compares revenue of the current and previous hour.
type RevenueSnapshot struct {
	At           time.Time
	CurrentHour  float64
	PreviousHour float64
}

func (s RevenueSnapshot) Kind() Kind         { return KindRevenue }
func (s RevenueSnapshot) TakenAt() time.Time { return s.At }

// DropPercent is the hour-over-hour decline; growth and empty baselines report 0.
func (s RevenueSnapshot) DropPercent() float64 {
	if s.PreviousHour <= 0 || s.CurrentHour >= s.PreviousHour {
		return 0
	}
	return (s.PreviousHour - s.CurrentHour) * 100 / s.PreviousHour
}

// DatabaseSnapshot carries the measured round trip of a trivial query.
type DatabaseSnapshot struct {
	At         time.Time
	ResponseMs int64
}

func (s DatabaseSnapshot) Kind() Kind         { return KindDatabase }
func (s DatabaseSnapshot) TakenAt() time.Time { return s.At }

// LogEntry is one already-parsed structured log record.
type LogEntry struct {
	Timestamp time.Time              `json:"timestamp"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Source    string                 `json:"source,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// LogSnapshot holds log records observed in the look-back window.
type LogSnapshot struct {
	At      time.Time
	Window  time.Duration
	Entries []LogEntry
}

func (s LogSnapshot) Kind() Kind         { return KindLogs }
func (s LogSnapshot) TakenAt() time.Time { return s.At }

// CountLevel counts entries whose level is one of levels.
func (s LogSnapshot) CountLevel(levels ...string) int {
	n := 0
	for _, e := range s.Entries {
		for _, l := range levels {
			if e.Level == l {
				n++
				break
			}
		}
	}
	return n
}

// SystemSnapshot is host resource usage.
type SystemSnapshot struct {
	At            time.Time
	MemoryPercent float64
	CPUPercent    float64
}

func (s SystemSnapshot) Kind() Kind         { return KindSystem }
func (s SystemSnapshot) TakenAt() time.Time { return s.At }

// Set is the collection of snapshots gathered for one evaluation cycle.
// A missing kind means that provider was unavailable this cycle.
type Set map[Kind]Snapshot

// API returns the API snapshot when present.
func (s Set) API() (APISnapshot, bool) {
	v, ok := s[KindAPI].(APISnapshot)
	return v, ok
}

func (s Set) Cancellations() (CancellationSnapshot, bool) {
	v, ok := s[KindCancellations].(CancellationSnapshot)
	return v, ok
}

func (s Set) Revenue() (RevenueSnapshot, bool) {
	v, ok := s[KindRevenue].(RevenueSnapshot)
	return v, ok
}

func (s Set) Database() (DatabaseSnapshot, bool) {
	v, ok := s[KindDatabase].(DatabaseSnapshot)
	return v, ok
}

func (s Set) Logs() (LogSnapshot, bool) {
	v, ok := s[KindLogs].(LogSnapshot)
	return v, ok
}

func (s Set) System() (SystemSnapshot, bool) {
	v, ok := s[KindSystem].(SystemSnapshot)
	return v, ok
}

func (s Set) Endpoints() (EndpointSnapshot, bool) {
	v, ok := s[KindEndpoints].(EndpointSnapshot)
	return v, ok
}

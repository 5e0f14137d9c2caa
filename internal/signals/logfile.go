package signals

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// maxLogLine bounds one JSONL record; longer lines are skipped.
const maxLogLine = 1 << 20

// LogFileProvider reads the application's daily JSONL logs
// (logs/app-2026-01-14.jsonl) and returns the records inside Window.
type LogFileProvider struct {
	Dir    string
	Prefix string
	Window time.Duration
	Now    func() time.Time
}

// NewLogFileProvider creates a provider over dir with the default "app" prefix.
func NewLogFileProvider(dir string, window time.Duration) *LogFileProvider {
	return &LogFileProvider{Dir: dir, Prefix: "app", Window: window}
}

func (p *LogFileProvider) Name() string { return "log_files" }

func (p *LogFileProvider) Fetch(ctx context.Context) (Snapshot, error) {
	now := clockOrNow(p.Now)
	window := p.Window
	if window <= 0 {
		window = 5 * time.Minute
	}
	since := now.Add(-window)

	if _, err := os.Stat(p.Dir); err != nil {
		return nil, fmt.Errorf("log directory unavailable: %w", err)
	}

	entries := make([]LogEntry, 0)
	// A window may straddle midnight, so walk each calendar day it touches.
	for d := startOfDay(since); !d.After(now); d = d.AddDate(0, 0, 1) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		path := p.fileFor(d)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}
		dayEntries, err := readLogFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		for _, e := range dayEntries {
			if e.Timestamp.Before(since) || e.Timestamp.After(now) {
				continue
			}
			entries = append(entries, e)
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.Before(entries[j].Timestamp)
	})

	return LogSnapshot{At: now, Window: window, Entries: entries}, nil
}

func (p *LogFileProvider) fileFor(day time.Time) string {
	prefix := p.Prefix
	if prefix == "" {
		prefix = "app"
	}
	return filepath.Join(p.Dir, fmt.Sprintf("%s-%s.jsonl", prefix, day.Format("2006-01-02")))
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// readLogFile parses one JSONL file, skipping blank and malformed lines.
func readLogFile(path string) ([]LogEntry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	entries := make([]LogEntry, 0)
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), maxLogLine)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var entry LogEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			continue
		}
		entry.Level = strings.ToLower(entry.Level)
		entries = append(entries, entry)
	}

	return entries, scanner.Err()
}

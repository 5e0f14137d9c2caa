package signals

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeJSONL(t *testing.T, path string, entries []LogEntry, extra ...string) {
	t.Helper()
	var sb strings.Builder
	for _, e := range entries {
		b, err := json.Marshal(e)
		require.NoError(t, err)
		sb.Write(b)
		sb.WriteByte('\n')
	}
	for _, line := range extra {
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	require.NoError(t, os.WriteFile(path, []byte(sb.String()), 0o644))
}

func TestLogFileProvider_WindowAcrossMidnight(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 1, 14, 0, 2, 0, 0, time.UTC)

	writeJSONL(t, filepath.Join(dir, "app-2026-01-13.jsonl"), []LogEntry{
		{Timestamp: now.Add(-time.Hour), Level: "error", Message: "too old"},
		{Timestamp: now.Add(-3 * time.Minute), Level: "ERROR", Message: "late yesterday"},
	}, "not json", "")
	writeJSONL(t, filepath.Join(dir, "app-2026-01-14.jsonl"), []LogEntry{
		{Timestamp: now.Add(-time.Minute), Level: "info", Message: "started"},
		{Timestamp: now.Add(time.Minute), Level: "error", Message: "from the future"},
	})

	p := &LogFileProvider{Dir: dir, Window: 5 * time.Minute, Now: func() time.Time { return now }}
	snap, err := p.Fetch(context.Background())
	require.NoError(t, err)

	logs, ok := snap.(LogSnapshot)
	require.True(t, ok)
	require.Len(t, logs.Entries, 2)
	assert.Equal(t, "late yesterday", logs.Entries[0].Message)
	assert.Equal(t, "error", logs.Entries[0].Level)
	assert.Equal(t, "started", logs.Entries[1].Message)
	assert.Equal(t, 5*time.Minute, logs.Window)
}

func TestLogFileProvider_MissingFilesAreEmpty(t *testing.T) {
	p := NewLogFileProvider(t.TempDir(), time.Minute)

	snap, err := p.Fetch(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snap.(LogSnapshot).Entries)
}

func TestLogFileProvider_MissingDirectoryFails(t *testing.T) {
	p := NewLogFileProvider(filepath.Join(t.TempDir(), "nope"), time.Minute)

	_, err := p.Fetch(context.Background())
	assert.Error(t, err)
}

package runlog

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockiq/internal/types"
)

func readEntries(t *testing.T, path string) []Entry {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var out []Entry
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e Entry
		require.NoError(t, json.Unmarshal(sc.Bytes(), &e))
		out = append(out, e)
	}
	require.NoError(t, sc.Err())
	return out
}

func TestRecordAppendsSummaryLines(t *testing.T) {
	dir := t.TempDir()
	l := New(dir)
	l.now = func() time.Time { return time.Date(2026, 4, 1, 9, 30, 0, 0, time.UTC) }

	result := &types.AnalysisResult{
		Ticker:         "AAPL",
		ReportMarkdown: "# long report",
		Scorecard:      types.Scorecard{Score: 72},
		CompilerScorecard: &types.CompiledScorecard{
			FinalScore:      63,
			FinalConfidence: 0.68,
			FinalSignal:     types.Neutral,
		},
		AsOf: "2026-04-01T09:30:00Z",
	}
	require.NoError(t, l.Record(context.Background(), "run-1", "AAPL", result, nil))
	require.NoError(t, l.Record(context.Background(), "run-2", "ZZZZ", nil, errors.New("ticker 'ZZZZ' not found on polygon")))

	entries := readEntries(t, filepath.Join(dir, "2026-04-01.jsonl"))
	require.Len(t, entries, 2)

	assert.Equal(t, "run-1", entries[0].RunID)
	assert.Equal(t, "ok", entries[0].Status)
	require.NotNil(t, entries[0].FinalScore)
	assert.Equal(t, 63, *entries[0].FinalScore)
	assert.Equal(t, types.Neutral, entries[0].FinalSignal)
	assert.Equal(t, 72, *entries[0].Score)

	assert.Equal(t, "failed", entries[1].Status)
	assert.Equal(t, "ZZZZ", entries[1].Ticker)
	assert.Contains(t, entries[1].Error, "not found")
	assert.Nil(t, entries[1].Score)

	raw, err := os.ReadFile(filepath.Join(dir, "2026-04-01.jsonl"))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "long report")
}

func TestCompressOlder(t *testing.T) {
	dir := t.TempDir()
	l := New(dir)
	now := time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	old := filepath.Join(dir, "2026-03-01.jsonl")
	fresh := filepath.Join(dir, "2026-04-09.jsonl")
	require.NoError(t, os.WriteFile(old, []byte("{}\n"), 0o644))
	require.NoError(t, os.WriteFile(fresh, []byte("{}\n"), 0o644))
	require.NoError(t, os.Chtimes(old, now.AddDate(0, 0, -30), now.AddDate(0, 0, -30)))
	require.NoError(t, os.Chtimes(fresh, now.AddDate(0, 0, -1), now.AddDate(0, 0, -1)))

	n, err := l.CompressOlder(7)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.FileExists(t, old+".gz")
	assert.NoFileExists(t, old)
	assert.FileExists(t, fresh)
}

func TestCompressOlderMissingDir(t *testing.T) {
	n, err := New(filepath.Join(t.TempDir(), "absent")).CompressOlder(7)
	require.NoError(t, err)
	assert.Zero(t, n)
}

// Package runlog appends one JSON line per analysis run to a daily file. Lines
// hold the verdict summary only, never the report or the full metrics.
package runlog

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"stockiq/internal/interfaces"
	"stockiq/internal/types"
)

type Entry struct {
	Time            string       `json:"time"`
	RunID           string       `json:"run_id"`
	Ticker          string       `json:"ticker"`
	Status          string       `json:"status"`
	Error           string       `json:"error,omitempty"`
	AsOf            string       `json:"as_of,omitempty"`
	Score           *int         `json:"score,omitempty"`
	FinalScore      *int         `json:"final_score,omitempty"`
	FinalSignal     types.Signal `json:"final_signal,omitempty"`
	FinalConfidence *float64     `json:"final_confidence,omitempty"`
}

type Log struct {
	dir string
	mu  sync.Mutex
	now func() time.Time
}

var _ interfaces.RunRecorder = (*Log)(nil)

func New(dir string) *Log {
	if dir == "" {
		dir = filepath.Join("logs", "runs")
	}
	return &Log{dir: dir, now: time.Now}
}

func (l *Log) Record(_ context.Context, runID, ticker string, result *types.AnalysisResult, runErr error) error {
	now := l.now().UTC()
	e := Entry{
		Time:   now.Format(time.RFC3339),
		RunID:  runID,
		Ticker: ticker,
		Status: "ok",
	}
	if runErr != nil {
		e.Status = "failed"
		e.Error = runErr.Error()
	}
	if result != nil {
		e.Ticker = result.Ticker
		e.AsOf = result.AsOf
		score := result.Scorecard.Score
		e.Score = &score
		if c := result.CompilerScorecard; c != nil {
			fs, fc := c.FinalScore, c.FinalConfidence
			e.FinalScore = &fs
			e.FinalConfidence = &fc
			e.FinalSignal = c.FinalSignal
		}
	}
	return l.append(now, e)
}

func (l *Log) append(now time.Time, e Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	p := l.dailyFilepath(now)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(f, string(b))
	return err
}

func (l *Log) dailyFilepath(t time.Time) string {
	return filepath.Join(l.dir, t.Format(time.DateOnly)+".jsonl")
}

// CompressOlder gzips daily files last modified more than retentionDays ago
// and removes the originals. It returns how many files were compressed.
func (l *Log) CompressOlder(retentionDays int) (int, error) {
	if retentionDays <= 0 {
		return 0, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().AddDate(0, 0, -retentionDays)
	compressed := 0
	err := filepath.WalkDir(l.dir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || filepath.Ext(p) != ".jsonl" {
			return nil
		}
		info, err := d.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			return nil
		}
		gz := p + ".gz"
		if _, err := os.Stat(gz); err == nil {
			_ = os.Remove(p)
			return nil
		}
		if err := gzipFile(p, gz); err != nil {
			return nil
		}
		_ = os.Remove(p)
		compressed++
		return nil
	})
	return compressed, err
}

func gzipFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	gw := gzip.NewWriter(out)
	if _, err := io.Copy(gw, in); err != nil {
		_ = gw.Close()
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}
	if err := gw.Close(); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

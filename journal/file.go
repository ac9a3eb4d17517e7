package journal

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/shreyanshxt/FinSight/logger"
)

// File stores each history as a JSON array on disk, rewritten on every
// append. An unreadable file is treated as empty history.
type File struct {
	mu         sync.Mutex
	tradesPath string
	equityPath string
}

func NewFile(tradesPath, equityPath string) (*File, error) {
	for _, p := range []string{tradesPath, equityPath} {
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return nil, fmt.Errorf("create journal dir: %w", err)
		}
	}
	return &File{tradesPath: tradesPath, equityPath: equityPath}, nil
}

func (j *File) RecordTrade(t TradeRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	var recs []TradeRecord
	readJSON(j.tradesPath, &recs)
	recs = trimTrades(append(recs, t))
	return writeJSON(j.tradesPath, recs)
}

func (j *File) RecordEquity(s EquitySample) (bool, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	var hist []EquitySample
	readJSON(j.equityPath, &hist)
	var last *EquitySample
	if n := len(hist); n > 0 {
		last = &hist[n-1]
	}
	if !ShouldSample(last, s) {
		return false, nil
	}
	hist = trimSamples(append(hist, s))
	if err := writeJSON(j.equityPath, hist); err != nil {
		return false, err
	}
	return true, nil
}

func (j *File) Trades() ([]TradeRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	recs := []TradeRecord{}
	readJSON(j.tradesPath, &recs)
	return recs, nil
}

func (j *File) Equity() ([]EquitySample, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	hist := []EquitySample{}
	readJSON(j.equityPath, &hist)
	return hist, nil
}

func (j *File) Close() error { return nil }

func readJSON(path string, v any) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Warn("journal: read %s: %v", path, err)
		}
		return
	}
	if err := json.Unmarshal(data, v); err != nil {
		logger.Warn("journal: %s is not valid JSON, starting a new history: %v", path, err)
	}
}

func writeJSON(path string, v any) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp journal: %w", err)
	}
	if err := json.NewEncoder(tmp).Encode(v); err != nil {
		tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("encode journal: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close temp journal: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace journal: %w", err)
	}
	return nil
}

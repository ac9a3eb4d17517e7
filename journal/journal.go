package journal

import (
	"time"

	"github.com/shreyanshxt/FinSight/broker"
)

// Retention limits. Older entries are dropped once these are exceeded.
const (
	MaxTrades      = 500
	MaxSamples     = 1000
	SampleInterval = 60 * time.Second
)

type TradeRecord struct {
	ID        string        `json:"id"`
	Timestamp time.Time     `json:"timestamp"`
	Symbol    string        `json:"symbol"`
	Side      broker.Side   `json:"side"`
	Qty       int64         `json:"qty"`
	Price     float64       `json:"price"`
	Source    broker.Source `json:"source"`
	Mode      string        `json:"mode"`
	Books     []string      `json:"books,omitempty"`
}

type EquitySample struct {
	Timestamp time.Time `json:"timestamp"`
	Equity    float64   `json:"equity"`
}

// Journal is the append-only trade and performance history. RecordEquity
// applies ShouldSample itself and reports whether the sample was kept.
type Journal interface {
	RecordTrade(TradeRecord) error
	RecordEquity(EquitySample) (bool, error)
	Trades() ([]TradeRecord, error)
	Equity() ([]EquitySample, error)
	Close() error
}

// ShouldSample reports whether s should be appended after last. A sample is
// kept when the history is empty, equity moved, or SampleInterval has
// elapsed since the previous one.
func ShouldSample(last *EquitySample, s EquitySample) bool {
	if last == nil {
		return true
	}
	if last.Equity != s.Equity {
		return true
	}
	return s.Timestamp.Sub(last.Timestamp) >= SampleInterval
}

func trimTrades(recs []TradeRecord) []TradeRecord {
	if len(recs) > MaxTrades {
		return recs[len(recs)-MaxTrades:]
	}
	return recs
}

func trimSamples(s []EquitySample) []EquitySample {
	if len(s) > MaxSamples {
		return s[len(s)-MaxSamples:]
	}
	return s
}

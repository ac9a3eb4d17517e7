package journal

import "sync"

// Memory keeps history in process. It is used by tests and dry runs.
type Memory struct {
	mu     sync.Mutex
	trades []TradeRecord
	equity []EquitySample
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) RecordTrade(t TradeRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trades = trimTrades(append(m.trades, t))
	return nil
}

func (m *Memory) RecordEquity(s EquitySample) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var last *EquitySample
	if n := len(m.equity); n > 0 {
		last = &m.equity[n-1]
	}
	if !ShouldSample(last, s) {
		return false, nil
	}
	m.equity = trimSamples(append(m.equity, s))
	return true, nil
}

func (m *Memory) Trades() ([]TradeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]TradeRecord(nil), m.trades...), nil
}

func (m *Memory) Equity() ([]EquitySample, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]EquitySample(nil), m.equity...), nil
}

func (m *Memory) Close() error { return nil }

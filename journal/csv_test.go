package journal

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/shreyanshxt/FinSight/broker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteTradesCSV(t *testing.T) {
	t.Parallel()

	ts := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	var buf bytes.Buffer
	err := WriteTradesCSV(&buf, []TradeRecord{{
		ID:        "01J0000000000000000000000A",
		Timestamp: ts,
		Symbol:    "AAPL",
		Side:      broker.SideBuy,
		Qty:       4,
		Price:     100.5,
		Source:    broker.SourceAgent,
		Mode:      "simulation",
		Books:     []string{broker.BookHouse, broker.BookAgent},
	}})
	require.NoError(t, err)

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, tradesHeader, rows[0])
	assert.Equal(t, []string{
		"01J0000000000000000000000A",
		"2025-01-02T03:04:05Z",
		"AAPL",
		"buy",
		"4",
		"100.500000",
		"agent",
		"simulation",
		"house+agent",
	}, rows[1])
}

func TestWriteEquityCSV(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	err := WriteEquityCSV(&buf, []EquitySample{
		{Timestamp: time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC), Equity: 100000},
		{Timestamp: time.Date(2025, 1, 2, 0, 1, 0, 0, time.UTC), Equity: 99950.25},
	})
	require.NoError(t, err)

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, equityHeader, rows[0])
	assert.Equal(t, "99950.250000", rows[2][1])
}

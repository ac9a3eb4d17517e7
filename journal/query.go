package journal

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/shreyanshxt/FinSight/broker"
)

const tradeColumns = `id, timestamp, symbol, side, qty, price, source, mode, books`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrade(r rowScanner) (TradeRecord, error) {
	var (
		rec          TradeRecord
		side, source string
		books        string
	)
	if err := r.Scan(
		&rec.ID,
		&rec.Timestamp,
		&rec.Symbol,
		&side,
		&rec.Qty,
		&rec.Price,
		&source,
		&rec.Mode,
		&books,
	); err != nil {
		return TradeRecord{}, err
	}
	rec.Side = broker.Side(side)
	rec.Source = broker.Source(source)
	if books != "" {
		rec.Books = strings.Split(books, ",")
	}
	return rec, nil
}

// GetTrade returns a single trade record by ID.
func (j *SQLite) GetTrade(tradeID string) (TradeRecord, error) {
	row := j.db.QueryRow(`SELECT `+tradeColumns+` FROM trades WHERE id = ?`, tradeID)
	rec, err := scanTrade(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return TradeRecord{}, fmt.Errorf("trade %q not found", tradeID)
		}
		return TradeRecord{}, err
	}
	return rec, nil
}

// Trades returns the retained history, oldest first.
func (j *SQLite) Trades() ([]TradeRecord, error) {
	return j.queryTrades(`SELECT ` + tradeColumns + ` FROM trades ORDER BY timestamp ASC, id ASC`)
}

// ListTradesBetween returns trades whose timestamp is within [start, end).
func (j *SQLite) ListTradesBetween(start, end time.Time) ([]TradeRecord, error) {
	return j.queryTrades(`
		SELECT `+tradeColumns+`
		FROM trades
		WHERE timestamp >= ? AND timestamp < ?
		ORDER BY timestamp ASC, id ASC`, start.UTC(), end.UTC())
}

func (j *SQLite) queryTrades(q string, args ...any) ([]TradeRecord, error) {
	rows, err := j.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []TradeRecord{}
	for rows.Next() {
		rec, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Equity returns the retained samples, oldest first.
func (j *SQLite) Equity() ([]EquitySample, error) {
	return j.querySamples(`SELECT timestamp, equity FROM equity ORDER BY seq ASC`)
}

// ListEquityBetween returns samples whose timestamp is within [start, end).
func (j *SQLite) ListEquityBetween(start, end time.Time) ([]EquitySample, error) {
	return j.querySamples(`
		SELECT timestamp, equity
		FROM equity
		WHERE timestamp >= ? AND timestamp < ?
		ORDER BY seq ASC`, start.UTC(), end.UTC())
}

func (j *SQLite) querySamples(q string, args ...any) ([]EquitySample, error) {
	rows, err := j.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []EquitySample{}
	for rows.Next() {
		var s EquitySample
		if err := rows.Scan(&s.Timestamp, &s.Equity); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

package journal

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

type SQLite struct {
	mu sync.Mutex
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply journal schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (j *SQLite) RecordTrade(t TradeRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	tx, err := j.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		INSERT INTO trades
		(id, timestamp, symbol, side, qty, price, source, mode, books)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Timestamp.UTC(), t.Symbol, string(t.Side), t.Qty, t.Price,
		string(t.Source), t.Mode, strings.Join(t.Books, ","),
	); err != nil {
		return fmt.Errorf("insert trade: %w", err)
	}

	if _, err := tx.Exec(`
		DELETE FROM trades WHERE id NOT IN (
			SELECT id FROM trades ORDER BY timestamp DESC, id DESC LIMIT ?
		)`, MaxTrades); err != nil {
		return fmt.Errorf("prune trades: %w", err)
	}

	return tx.Commit()
}

func (j *SQLite) RecordEquity(s EquitySample) (bool, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	tx, err := j.db.Begin()
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var last EquitySample
	err = tx.QueryRow(`SELECT timestamp, equity FROM equity ORDER BY seq DESC LIMIT 1`).
		Scan(&last.Timestamp, &last.Equity)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if !ShouldSample(nil, s) {
			return false, nil
		}
	case err != nil:
		return false, fmt.Errorf("read last sample: %w", err)
	default:
		if !ShouldSample(&last, s) {
			return false, nil
		}
	}

	if _, err := tx.Exec(`INSERT INTO equity (timestamp, equity) VALUES (?, ?)`,
		s.Timestamp.UTC(), s.Equity); err != nil {
		return false, fmt.Errorf("insert sample: %w", err)
	}
	if _, err := tx.Exec(`
		DELETE FROM equity WHERE seq NOT IN (
			SELECT seq FROM equity ORDER BY seq DESC LIMIT ?
		)`, MaxSamples); err != nil {
		return false, fmt.Errorf("prune samples: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

func (j *SQLite) Close() error {
	return j.db.Close()
}

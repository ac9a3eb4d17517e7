package journal

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"
	"time"
)

var (
	tradesHeader = []string{"id", "timestamp", "symbol", "side", "qty", "price", "source", "mode", "books"}
	equityHeader = []string{"timestamp", "equity"}
)

// WriteTradesCSV exports trade history with a header row.
func WriteTradesCSV(w io.Writer, recs []TradeRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(tradesHeader); err != nil {
		return err
	}
	for _, t := range recs {
		if err := cw.Write([]string{
			t.ID,
			t.Timestamp.Format(time.RFC3339),
			t.Symbol,
			string(t.Side),
			strconv.FormatInt(t.Qty, 10),
			f(t.Price),
			string(t.Source),
			t.Mode,
			strings.Join(t.Books, "+"),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteEquityCSV exports the performance history with a header row.
func WriteEquityCSV(w io.Writer, samples []EquitySample) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(equityHeader); err != nil {
		return err
	}
	for _, s := range samples {
		if err := cw.Write([]string{
			s.Timestamp.Format(time.RFC3339),
			f(s.Equity),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}

package market

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNoData       = errors.New("no market data")
	ErrInvalidPrice = errors.New("invalid price")
)

// Bar is one daily OHLCV row.
type Bar struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

type Bollinger struct {
	Upper float64 `json:"upper"`
	Mid   float64 `json:"mid"`
	Lower float64 `json:"lower"`
}

type Indicators struct {
	Note      string     `json:"note"`
	RSI       float64    `json:"rsi"`
	MACD      float64    `json:"macd"`
	SMA20     float64    `json:"sma_20"`
	EMA20     float64    `json:"ema_20"`
	SMA50     float64    `json:"sma_50"`
	ATR14     float64    `json:"atr_14,omitempty"`
	Bollinger *Bollinger `json:"bollinger,omitempty"`
}

// Snapshot is what the decision engine and the dashboard see for a symbol.
type Snapshot struct {
	Symbol         string     `json:"ticker"`
	Timestamp      time.Time  `json:"timestamp"`
	Price          float64    `json:"current_price"`
	ChangeAbsolute float64    `json:"change_absolute"`
	ChangePercent  float64    `json:"change_percent"`
	Volume         int64      `json:"volume"`
	History        []Bar      `json:"history"`
	Indicators     Indicators `json:"indicators"`
}

// Closes returns the close of each history bar, oldest first.
func (s Snapshot) Closes() []float64 {
	out := make([]float64, len(s.History))
	for i, b := range s.History {
		out[i] = b.Close
	}
	return out
}

type Headline struct {
	Headline  string    `json:"headline"`
	Summary   string    `json:"summary,omitempty"`
	Source    string    `json:"source,omitempty"`
	URL       string    `json:"url,omitempty"`
	Published time.Time `json:"published"`
}

// PriceSource yields the latest price for a symbol.
type PriceSource interface {
	Price(ctx context.Context, symbol string) (float64, error)
}

// Oracle adds the full market context used for analysis.
type Oracle interface {
	PriceSource
	Snapshot(ctx context.Context, symbol string) (Snapshot, error)
}

type NewsSource interface {
	Headlines(ctx context.Context, symbol string) ([]Headline, error)
}

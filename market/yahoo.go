package market

import (
	"context"
	"fmt"
	"strings"
	"time"

	finance "github.com/piquette/finance-go"
	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"
	"github.com/piquette/finance-go/quote"
	"golang.org/x/time/rate"
)

const historyWindow = 30

type (
	quoteFunc func(symbol string) (*finance.Quote, error)
	chartFunc func(symbol string, start, end time.Time) ([]Bar, error)
)

// Yahoo is the Yahoo Finance oracle. Calls are rate limited and retried.
type Yahoo struct {
	limiter  *rate.Limiter
	retry    RetryConfig
	lookback time.Duration
	now      func() time.Time

	quote quoteFunc
	chart chartFunc
}

type YahooOption func(*Yahoo)

// WithRateLimit caps outbound requests per second.
func WithRateLimit(perSecond float64, burst int) YahooOption {
	return func(y *Yahoo) {
		if perSecond > 0 {
			y.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		}
	}
}

func WithRetryConfig(c RetryConfig) YahooOption {
	return func(y *Yahoo) { y.retry = c }
}

func NewYahoo(opts ...YahooOption) *Yahoo {
	y := &Yahoo{
		limiter:  rate.NewLimiter(rate.Limit(2), 4),
		retry:    DefaultRetryConfig(),
		lookback: 365 * 24 * time.Hour,
		now:      time.Now,
		quote:    quote.Get,
		chart:    fetchChart,
	}
	for _, o := range opts {
		o(y)
	}
	return y
}

func normalize(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// Price returns the regular market price, falling back to the last daily
// close when the quote endpoint has nothing.
func (y *Yahoo) Price(ctx context.Context, symbol string) (float64, error) {
	symbol = normalize(symbol)

	var price float64
	err := y.call(ctx, func() error {
		q, err := y.quote(symbol)
		if err != nil {
			return fmt.Errorf("quote %s: %w", symbol, err)
		}
		if q == nil {
			return fmt.Errorf("quote %s: %w", symbol, ErrNoData)
		}
		price = q.RegularMarketPrice
		return nil
	})
	if err == nil && price > 0 {
		return price, nil
	}

	snap, serr := y.Snapshot(ctx, symbol)
	if serr != nil {
		if err != nil {
			return 0, err
		}
		return 0, serr
	}
	return snap.Price, nil
}

// Snapshot pulls a year of daily bars and derives price change and
// indicators from them.
func (y *Yahoo) Snapshot(ctx context.Context, symbol string) (Snapshot, error) {
	symbol = normalize(symbol)
	end := y.now()
	start := end.Add(-y.lookback)

	var bars []Bar
	err := y.call(ctx, func() error {
		b, err := y.chart(symbol, start, end)
		if err != nil {
			return fmt.Errorf("chart %s: %w", symbol, err)
		}
		if len(b) < 2 {
			return fmt.Errorf("chart %s: %w", symbol, ErrNoData)
		}
		bars = b
		return nil
	})
	if err != nil {
		return Snapshot{}, err
	}
	return buildSnapshot(symbol, end, bars)
}

func buildSnapshot(symbol string, at time.Time, bars []Bar) (Snapshot, error) {
	last := bars[len(bars)-1]
	prev := bars[len(bars)-2]
	if last.Close <= 0 {
		return Snapshot{}, fmt.Errorf("%s: %w: %v", symbol, ErrInvalidPrice, last.Close)
	}

	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}

	change := last.Close - prev.Close
	pct := 0.0
	if prev.Close != 0 {
		pct = change / prev.Close * 100
	}

	ind := Compute(closes)
	if v, err := ATROf(bars, 14); err == nil {
		ind.ATR14 = v
	}

	hist := bars
	if len(hist) > historyWindow {
		hist = hist[len(hist)-historyWindow:]
	}

	return Snapshot{
		Symbol:         symbol,
		Timestamp:      at,
		Price:          last.Close,
		ChangeAbsolute: change,
		ChangePercent:  pct,
		Volume:         last.Volume,
		History:        append([]Bar(nil), hist...),
		Indicators:     ind,
	}, nil
}

func (y *Yahoo) call(ctx context.Context, fn func() error) error {
	return WithRetry(ctx, y.retry, func() error {
		if y.limiter != nil {
			if err := y.limiter.Wait(ctx); err != nil {
				return err
			}
		}
		return fn()
	})
}

func fetchChart(symbol string, start, end time.Time) ([]Bar, error) {
	iter := chart.Get(&chart.Params{
		Symbol:   symbol,
		Start:    datetime.New(&start),
		End:      datetime.New(&end),
		Interval: datetime.OneDay,
	})

	var out []Bar
	for iter.Next() {
		b := iter.Bar()
		open, _ := b.Open.Float64()
		high, _ := b.High.Float64()
		low, _ := b.Low.Float64()
		cl, _ := b.Close.Float64()
		out = append(out, Bar{
			Time:   time.Unix(int64(b.Timestamp), 0).UTC(),
			Open:   open,
			High:   high,
			Low:    low,
			Close:  cl,
			Volume: int64(b.Volume),
		})
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

package market

import (
	"fmt"
	"math"
)

// MinBarsForIndicators is the shortest history Compute will analyse.
const MinBarsForIndicators = 26

// EMA is a streaming exponential moving average seeded with the first value.
type EMA struct {
	n     int
	alpha float64
	seen  int
	value float64
}

func NewEMA(period int) *EMA {
	if period <= 0 {
		panic("EMA period must be > 0")
	}
	return &EMA{n: period, alpha: 2.0 / float64(period+1)}
}

func (e *EMA) Update(x float64) {
	e.seen++
	if e.seen == 1 {
		e.value = x
		return
	}
	e.value = e.alpha*x + (1.0-e.alpha)*e.value
}

func (e *EMA) Ready() bool      { return e.seen >= e.n }
func (e *EMA) Float64() float64 { return e.value }

// EMAOf runs an EMA across closes and returns the final value.
func EMAOf(closes []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, fmt.Errorf("period must be positive, got %d", period)
	}
	if len(closes) == 0 {
		return 0, fmt.Errorf("not enough closes: need 1, got 0")
	}
	e := NewEMA(period)
	for _, c := range closes {
		e.Update(c)
	}
	return e.Float64(), nil
}

// SMA is the mean of the last period closes.
func SMA(closes []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, fmt.Errorf("period must be positive, got %d", period)
	}
	if len(closes) < period {
		return 0, fmt.Errorf("not enough closes: need %d, got %d", period, len(closes))
	}
	sum := 0.0
	for _, c := range closes[len(closes)-period:] {
		sum += c
	}
	return sum / float64(period), nil
}

// RSI uses simple rolling means of gains and losses over period changes.
// It is 100 when there were no losses and 50 when there was no movement.
func RSI(closes []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, fmt.Errorf("period must be positive, got %d", period)
	}
	if len(closes) < period+1 {
		return 0, fmt.Errorf("not enough closes: need %d, got %d", period+1, len(closes))
	}
	var gain, loss float64
	for i := len(closes) - period; i < len(closes); i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	gain /= float64(period)
	loss /= float64(period)

	switch {
	case gain == 0 && loss == 0:
		return 50, nil
	case loss == 0:
		return 100, nil
	}
	rs := gain / loss
	return 100 - 100/(1+rs), nil
}

// MACD is EMA(fast) - EMA(slow).
func MACD(closes []float64, fast, slow int) (float64, error) {
	if fast <= 0 || slow <= fast {
		return 0, fmt.Errorf("invalid MACD periods %d/%d", fast, slow)
	}
	if len(closes) < slow {
		return 0, fmt.Errorf("not enough closes: need %d, got %d", slow, len(closes))
	}
	f, _ := EMAOf(closes, fast)
	s, _ := EMAOf(closes, slow)
	return f - s, nil
}

// Bands returns SMA(period) +/- k sample standard deviations.
func Bands(closes []float64, period int, k float64) (Bollinger, error) {
	mid, err := SMA(closes, period)
	if err != nil {
		return Bollinger{}, err
	}
	if period < 2 {
		return Bollinger{Upper: mid, Mid: mid, Lower: mid}, nil
	}
	var ss float64
	for _, c := range closes[len(closes)-period:] {
		ss += (c - mid) * (c - mid)
	}
	sd := math.Sqrt(ss / float64(period-1))
	return Bollinger{Upper: mid + k*sd, Mid: mid, Lower: mid - k*sd}, nil
}

// Compute derives the dashboard indicator set. Short histories get neutral
// defaults and note "insufficient_data".
func Compute(closes []float64) Indicators {
	if len(closes) < MinBarsForIndicators {
		return Indicators{Note: "insufficient_data", RSI: 50}
	}

	ind := Indicators{Note: "calculated_locally", RSI: 50}
	if v, err := RSI(closes, 14); err == nil {
		ind.RSI = v
	}
	if v, err := MACD(closes, 12, 26); err == nil {
		ind.MACD = v
	}
	if v, err := SMA(closes, 20); err == nil {
		ind.SMA20 = v
	}
	if v, err := EMAOf(closes, 20); err == nil {
		ind.EMA20 = v
	}
	if v, err := SMA(closes, 50); err == nil {
		ind.SMA50 = v
	}
	if b, err := Bands(closes, 20, 2); err == nil {
		ind.Bollinger = &b
	}
	return ind
}

// ATR is a streaming Average True Range using Wilder's smoothing. It is
// seeded with the mean of the first period true ranges.
type ATR struct {
	period  int
	atr     float64
	count   int
	warmup  float64
	prev    Bar
	hasPrev bool
}

func NewATR(period int) *ATR {
	if period <= 0 {
		panic("ATR period must be > 0")
	}
	return &ATR{period: period}
}

func (a *ATR) Name() string { return fmt.Sprintf("ATR(%d)", a.period) }

// Warmup is period+1 because the first bar has no previous close.
func (a *ATR) Warmup() int { return a.period + 1 }

func (a *ATR) Update(b Bar) {
	if !a.hasPrev {
		a.prev = b
		a.hasPrev = true
		return
	}
	tr := trueRange(b, a.prev)
	a.prev = b

	if a.count < a.period {
		a.warmup += tr
		a.count++
		if a.count == a.period {
			a.atr = a.warmup / float64(a.period)
		}
		return
	}
	a.atr = (a.atr*float64(a.period-1) + tr) / float64(a.period)
}

func (a *ATR) Ready() bool { return a.count >= a.period }

func (a *ATR) Value() float64 {
	if !a.Ready() {
		return 0
	}
	return a.atr
}

// ATROf runs an ATR across bars and returns the final value.
func ATROf(bars []Bar, period int) (float64, error) {
	if period <= 0 {
		return 0, fmt.Errorf("period must be positive, got %d", period)
	}
	if len(bars) < period+1 {
		return 0, fmt.Errorf("not enough bars: need %d, got %d", period+1, len(bars))
	}
	a := NewATR(period)
	for _, b := range bars {
		a.Update(b)
	}
	return a.Value(), nil
}

func trueRange(cur, prev Bar) float64 {
	hl := cur.High - cur.Low
	hc := math.Abs(cur.High - prev.Close)
	lc := math.Abs(cur.Low - prev.Close)
	return math.Max(hl, math.Max(hc, lc))
}

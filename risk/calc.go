// Package risk turns a risk score and stop-loss levels into position sizes
// and exit floors for the agent book.
package risk

import "math"

const (
	// AllocationFraction is the share of agent cash a single buy may use
	// before the risk multiplier is applied.
	AllocationFraction = 0.20
	MinMultiplier      = 0.1

	MinScore     = 1
	MaxScore     = 10
	DefaultScore = 5
)

// Multiplier scales allocation down as the risk score rises:
// 1 -> 1.0, 5 -> 0.6, 10 -> 0.1.
func Multiplier(score int) float64 {
	return math.Max(MinMultiplier, float64(11-score)/10)
}

// BuyQuantity sizes an agent buy. It returns 0 when not even one unit is
// affordable.
func BuyQuantity(cash, price float64, score int) int64 {
	if price <= 0 || cash <= 0 {
		return 0
	}
	alloc := cash * AllocationFraction * Multiplier(score)
	qty := int64(math.Floor(alloc / price))
	if qty < 1 && cash >= price {
		qty = 1
	}
	return qty
}

// ActiveStopLoss picks the tighter of a stored and a freshly suggested
// stop. Non-positive values mean "no stop".
func ActiveStopLoss(stored, fresh float64) float64 {
	switch {
	case stored > 0 && fresh > 0:
		return math.Max(stored, fresh)
	case stored > 0:
		return stored
	case fresh > 0:
		return fresh
	}
	return 0
}

// StopHit reports whether price has fallen to or through an active stop.
func StopHit(price, stop float64) bool {
	return stop > 0 && price <= stop
}

// ClampScore rounds a model-supplied score into MinScore..MaxScore. NaN
// becomes DefaultScore.
func ClampScore(v float64) int {
	if math.IsNaN(v) {
		return DefaultScore
	}
	s := int(math.Round(v))
	if s < MinScore {
		return MinScore
	}
	if s > MaxScore {
		return MaxScore
	}
	return s
}

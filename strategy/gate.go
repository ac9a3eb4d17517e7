// Package strategy holds the pre-trade gates a manual order can be routed
// through. A gate only decides whether the order may proceed; sizing is the
// caller's business.
package strategy

import (
	"fmt"
	"strings"

	"github.com/shreyanshxt/FinSight/broker"
	"github.com/shreyanshxt/FinSight/market"
	"github.com/shreyanshxt/FinSight/signal"
)

type Name string

const (
	Market        Name = "market"
	Momentum      Name = "momentum"
	MeanReversion Name = "mean_reversion"
	Breakout      Name = "breakout"
	AIOptimized   Name = "ai_optimized"
)

// Names lists every known gate.
var Names = []Name{Market, Momentum, MeanReversion, Breakout, AIOptimized}

// Parse accepts an empty name as Market.
func Parse(s string) (Name, error) {
	n := Name(strings.ToLower(strings.TrimSpace(s)))
	if n == "" {
		return Market, nil
	}
	for _, known := range Names {
		if n == known {
			return n, nil
		}
	}
	return "", fmt.Errorf("unknown strategy %q", s)
}

// NeedsSignal reports whether the gate consults a fresh model signal.
func (n Name) NeedsSignal() bool { return n == AIOptimized }

type Violation struct {
	Code string
	Msg  string
}

type Decision struct {
	Allowed    bool
	Violations []Violation
}

func (d *Decision) add(code, msg string) {
	d.Violations = append(d.Violations, Violation{Code: code, Msg: msg})
	d.Allowed = false
}

// Reason is the first violation message, or "" when allowed.
func (d Decision) Reason() string {
	if len(d.Violations) == 0 {
		return ""
	}
	return d.Violations[0].Msg
}

type Input struct {
	Side       broker.Side
	Price      float64
	Indicators market.Indicators
	// Signal is only read by AIOptimized.
	Signal signal.Signal
}

// Evaluate runs gate n against in.
func Evaluate(n Name, in Input) Decision {
	d := Decision{Allowed: true}
	ind := in.Indicators

	switch n {
	case Momentum:
		if in.Side == broker.SideBuy && (ind.RSI < 50 || ind.MACD < 0) {
			d.add("MOMENTUM_NOT_BULLISH",
				fmt.Sprintf("momentum not bullish (RSI %.1f, MACD %.3f)", ind.RSI, ind.MACD))
		}
		if in.Side == broker.SideSell && (ind.RSI > 50 || ind.MACD > 0) {
			d.add("MOMENTUM_NOT_BEARISH",
				fmt.Sprintf("momentum not bearish (RSI %.1f, MACD %.3f)", ind.RSI, ind.MACD))
		}

	case MeanReversion:
		if in.Side == broker.SideBuy && ind.RSI > 35 {
			d.add("NOT_OVERSOLD", fmt.Sprintf("not oversold enough for mean reversion (RSI %.1f > 35)", ind.RSI))
		}
		if in.Side == broker.SideSell && ind.RSI < 65 {
			d.add("NOT_OVERBOUGHT", fmt.Sprintf("not overbought enough for mean reversion (RSI %.1f < 65)", ind.RSI))
		}

	case Breakout:
		// Without bands there is nothing to break out of.
		if bb := ind.Bollinger; bb != nil {
			if in.Side == broker.SideBuy && in.Price < bb.Mid {
				d.add("NO_BREAKOUT", fmt.Sprintf("price %.2f below BB midline %.2f (no breakout)", in.Price, bb.Mid))
			}
			if in.Side == broker.SideSell && in.Price > bb.Mid {
				d.add("NO_BREAKDOWN", fmt.Sprintf("price %.2f above BB midline %.2f (no breakdown)", in.Price, bb.Mid))
			}
		}

	case AIOptimized:
		want := strings.ToUpper(string(in.Side))
		sig := in.Signal
		if sig == "" {
			sig = signal.Hold
		}
		if string(sig) != want {
			d.add("SIGNAL_MISMATCH", fmt.Sprintf("AI signal is %s, not %s", sig, want))
		}
	}
	return d
}

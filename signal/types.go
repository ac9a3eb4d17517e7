// Package signal asks a language model for a trade recommendation and
// decodes its reply.
package signal

import (
	"context"
	"strings"

	"github.com/shreyanshxt/FinSight/broker"
	"github.com/shreyanshxt/FinSight/market"
	"github.com/shreyanshxt/FinSight/risk"
)

type Signal string

const (
	Buy  Signal = "BUY"
	Sell Signal = "SELL"
	Hold Signal = "HOLD"
)

// Parse accepts any casing and surrounding whitespace.
func Parse(s string) (Signal, bool) {
	switch sig := Signal(strings.ToUpper(strings.TrimSpace(s))); sig {
	case Buy, Sell, Hold:
		return sig, true
	}
	return "", false
}

// Side maps BUY and SELL onto order sides. HOLD has none.
func (s Signal) Side() (broker.Side, bool) {
	switch s {
	case Buy:
		return broker.SideBuy, true
	case Sell:
		return broker.SideSell, true
	}
	return "", false
}

// Decoder names record which path produced a Recommendation.
const (
	DecoderStrict    = "strict"
	DecoderHeuristic = "heuristic"
	DecoderFailed    = "failed"
	DecoderStatic    = "static"
)

type Recommendation struct {
	Signal    Signal  `json:"signal"`
	RiskScore int     `json:"risk_score"`
	StopLoss  float64 `json:"stop_loss"`
	Reasoning string  `json:"reasoning"`
	Decoder   string  `json:"decoder"`
	Model     string  `json:"model,omitempty"`
}

// Failed is the HOLD recommendation used when analysis could not run.
func Failed(err error) Recommendation {
	return Recommendation{
		Signal:    Hold,
		RiskScore: risk.DefaultScore,
		Reasoning: "analysis failed: " + err.Error(),
		Decoder:   DecoderFailed,
	}
}

type Request struct {
	Symbol string
	Market market.Snapshot
	News   []market.Headline
}

// Source produces a recommendation for one symbol. Implementations bound
// their own latency.
type Source interface {
	Recommend(ctx context.Context, req Request) (Recommendation, error)
	Name() string
}

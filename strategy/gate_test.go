package strategy

import (
	"testing"

	"github.com/shreyanshxt/FinSight/broker"
	"github.com/shreyanshxt/FinSight/market"
	"github.com/shreyanshxt/FinSight/signal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Parallel()

	n, err := Parse("")
	require.NoError(t, err)
	assert.Equal(t, Market, n)

	n, err = Parse(" Mean_Reversion ")
	require.NoError(t, err)
	assert.Equal(t, MeanReversion, n)
	assert.False(t, n.NeedsSignal())
	assert.True(t, AIOptimized.NeedsSignal())

	_, err = Parse("martingale")
	assert.Error(t, err)
}

func TestEvaluate(t *testing.T) {
	t.Parallel()

	bands := &market.Bollinger{Upper: 110, Mid: 100, Lower: 90}
	tests := []struct {
		name    string
		gate    Name
		in      Input
		allowed bool
		code    string
	}{
		{"market always passes", Market, Input{Side: broker.SideBuy}, true, ""},
		{"momentum buy ok", Momentum, Input{Side: broker.SideBuy, Indicators: market.Indicators{RSI: 61, MACD: 0.4}}, true, ""},
		{"momentum buy weak rsi", Momentum, Input{Side: broker.SideBuy, Indicators: market.Indicators{RSI: 45, MACD: 0.4}}, false, "MOMENTUM_NOT_BULLISH"},
		{"momentum buy negative macd", Momentum, Input{Side: broker.SideBuy, Indicators: market.Indicators{RSI: 55, MACD: -0.1}}, false, "MOMENTUM_NOT_BULLISH"},
		{"momentum sell ok", Momentum, Input{Side: broker.SideSell, Indicators: market.Indicators{RSI: 40, MACD: -1}}, true, ""},
		{"momentum sell bullish", Momentum, Input{Side: broker.SideSell, Indicators: market.Indicators{RSI: 40, MACD: 1}}, false, "MOMENTUM_NOT_BEARISH"},
		{"reversion buy oversold", MeanReversion, Input{Side: broker.SideBuy, Indicators: market.Indicators{RSI: 28}}, true, ""},
		{"reversion buy neutral", MeanReversion, Input{Side: broker.SideBuy, Indicators: market.Indicators{RSI: 50}}, false, "NOT_OVERSOLD"},
		{"reversion sell overbought", MeanReversion, Input{Side: broker.SideSell, Indicators: market.Indicators{RSI: 72}}, true, ""},
		{"reversion sell neutral", MeanReversion, Input{Side: broker.SideSell, Indicators: market.Indicators{RSI: 60}}, false, "NOT_OVERBOUGHT"},
		{"breakout buy above mid", Breakout, Input{Side: broker.SideBuy, Price: 105, Indicators: market.Indicators{Bollinger: bands}}, true, ""},
		{"breakout buy below mid", Breakout, Input{Side: broker.SideBuy, Price: 95, Indicators: market.Indicators{Bollinger: bands}}, false, "NO_BREAKOUT"},
		{"breakout sell above mid", Breakout, Input{Side: broker.SideSell, Price: 105, Indicators: market.Indicators{Bollinger: bands}}, false, "NO_BREAKDOWN"},
		{"breakout without bands", Breakout, Input{Side: broker.SideBuy, Price: 1}, true, ""},
		{"ai agrees", AIOptimized, Input{Side: broker.SideSell, Signal: signal.Sell}, true, ""},
		{"ai holds", AIOptimized, Input{Side: broker.SideBuy, Signal: signal.Hold}, false, "SIGNAL_MISMATCH"},
		{"ai missing signal", AIOptimized, Input{Side: broker.SideBuy}, false, "SIGNAL_MISMATCH"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			d := Evaluate(tt.gate, tt.in)
			assert.Equal(t, tt.allowed, d.Allowed)
			if tt.allowed {
				assert.Empty(t, d.Violations)
				assert.Empty(t, d.Reason())
				return
			}
			require.Len(t, d.Violations, 1)
			assert.Equal(t, tt.code, d.Violations[0].Code)
			assert.NotEmpty(t, d.Reason())
		})
	}
}

func TestEvaluateAIReason(t *testing.T) {
	t.Parallel()

	d := Evaluate(AIOptimized, Input{Side: broker.SideBuy, Signal: signal.Hold})
	assert.Equal(t, "AI signal is HOLD, not BUY", d.Reason())
}

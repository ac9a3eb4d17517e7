package broker

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPositionMark(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		pos    Position
		price  float64
		wantPL float64
		wantPC float64
	}{
		{"gain", Position{Qty: 10, AvgEntryPrice: 100}, 110, 100, 0.1},
		{"loss", Position{Qty: 4, AvgEntryPrice: 50}, 40, -40, -0.2},
		{"flat", Position{Qty: 1, AvgEntryPrice: 25}, 25, 0, 0},
		{"zero avg", Position{Qty: 3}, 10, 30, 0},
	}

	const tol = 1e-9

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := tt.pos
			p.Mark(tt.price)
			if math.Abs(p.UnrealizedPL-tt.wantPL) > tol {
				t.Fatalf("UnrealizedPL = %v, expected %v", p.UnrealizedPL, tt.wantPL)
			}
			if math.Abs(p.UnrealizedPLPC-tt.wantPC) > tol {
				t.Fatalf("UnrealizedPLPC = %v, expected %v", p.UnrealizedPLPC, tt.wantPC)
			}
			assert.Equal(t, tt.price, p.CurrentPrice)
		})
	}
}

func TestSnapshotRevalue(t *testing.T) {
	t.Parallel()

	s := NewSnapshot(1000, "USD")
	s.Cash = 400
	s.Positions["AAPL"] = Position{Qty: 3, AvgEntryPrice: 200, CurrentPrice: 210}
	s.Agent.Cash = 50
	s.Agent.Positions["AAPL"] = Position{Qty: 1, AvgEntryPrice: 200, CurrentPrice: 210}

	s.Revalue()

	assert.InDelta(t, 1030, s.Equity, 1e-9)
	assert.InDelta(t, 400, s.BuyingPower, 1e-9)
	assert.InDelta(t, 260, s.Agent.Equity, 1e-9)
}

func TestSnapshotCloneIsDeep(t *testing.T) {
	t.Parallel()

	s := NewSnapshot(100, "USD")
	s.Positions["NVDA"] = Position{Qty: 1}
	s.Agent.Positions["NVDA"] = Position{Qty: 1}

	c := s.Clone()
	c.Positions["NVDA"] = Position{Qty: 9}
	c.Agent.Positions["TSLA"] = Position{Qty: 2}

	assert.Equal(t, int64(1), s.Positions["NVDA"].Qty)
	assert.NotContains(t, s.Agent.Positions, "TSLA")
}

func TestSnapshotJSONLayout(t *testing.T) {
	t.Parallel()

	s := NewSnapshot(100000, "USD")
	s.Agent.Positions["AAPL"] = Position{Qty: 4, AvgEntryPrice: 100, CurrentPrice: 100, StopLoss: 95, RiskScore: 10}

	raw, err := json.Marshal(s)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))

	for _, k := range []string{"equity", "buying_power", "cash", "currency", "positions", "agent_portfolio"} {
		assert.Contains(t, doc, k)
	}
	agent := doc["agent_portfolio"].(map[string]any)
	for _, k := range []string{"allocated", "cash", "equity", "positions"} {
		assert.Contains(t, agent, k)
	}
	pos := agent["positions"].(map[string]any)["AAPL"].(map[string]any)
	assert.Equal(t, float64(95), pos["stop_loss"])
	assert.Equal(t, float64(10), pos["risk_score"])
}

func TestOrderValidate(t *testing.T) {
	t.Parallel()

	assert.Nil(t, Order{Symbol: "AAPL", Qty: 1, Side: SideBuy}.Validate())

	rej := Order{Symbol: "", Qty: 1, Side: SideBuy}.Validate()
	require.NotNil(t, rej)
	assert.Equal(t, RejectInvalidOrder, rej.Kind)

	rej = Order{Symbol: "AAPL", Qty: 0, Side: SideSell}.Validate()
	require.NotNil(t, rej)
	assert.Equal(t, RejectInvalidOrder, rej.Kind)

	rej = Order{Symbol: "AAPL", Qty: 1, Side: "hold"}.Validate()
	require.NotNil(t, rej)
	assert.Contains(t, rej.Error(), "hold")
}

func TestSymbolsUnion(t *testing.T) {
	t.Parallel()

	s := NewSnapshot(0, "USD")
	s.Positions["AAPL"] = Position{Qty: 1}
	s.Positions["TSLA"] = Position{Qty: 1}
	s.Agent.Positions["AAPL"] = Position{Qty: 1}
	s.Agent.Positions["NVDA"] = Position{Qty: 1}

	assert.ElementsMatch(t, []string{"AAPL", "TSLA", "NVDA"}, s.Symbols())
}

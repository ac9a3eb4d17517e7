package sim

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
	"github.com/shreyanshxt/FinSight/broker"
	"github.com/shreyanshxt/FinSight/logger"
)

func dec(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

// validPrice reports whether p can be booked: finite and positive.
func validPrice(p float64) bool {
	return p > 0 && !math.IsNaN(p) && !math.IsInf(p, 0)
}

func costOf(price float64, qty int64) decimal.Decimal {
	return dec(price).Mul(decimal.NewFromInt(qty))
}

// buyInto adds qty shares at price to ps[symbol], folding cost into the
// weighted average entry price.
func buyInto(ps broker.Positions, symbol string, qty int64, price float64, cost decimal.Decimal) broker.Position {
	pos := ps[symbol]
	newQty := pos.Qty + qty
	basis := decimal.NewFromInt(pos.Qty).Mul(dec(pos.AvgEntryPrice)).Add(cost)
	pos.Qty = newQty
	pos.AvgEntryPrice = basis.Div(decimal.NewFromInt(newQty)).InexactFloat64()
	pos.Mark(price)
	ps[symbol] = pos
	return pos
}

// sellFrom removes qty shares from ps[symbol]. The caller has checked that
// enough are held. The row is deleted when it reaches zero.
func sellFrom(ps broker.Positions, symbol string, qty int64, price float64) {
	pos := ps[symbol]
	pos.Qty -= qty
	if pos.Qty == 0 {
		delete(ps, symbol)
		return
	}
	pos.Mark(price)
	ps[symbol] = pos
}

// applyTrade mutates s for a fill of o at price. It returns a rejection, and
// leaves s untouched, when the order cannot be honoured.
func applyTrade(s *broker.Snapshot, o broker.Order, price float64) *broker.Rejection {
	cost := costOf(price, o.Qty)
	agent := o.Source == broker.SourceAgent

	if agent && o.Side == broker.SideBuy {
		cash := dec(s.Agent.Cash)
		if cash.LessThan(cost) {
			return broker.Reject(broker.RejectInsufficientAgentFunds,
				fmt.Sprintf("insufficient agent funds: agent cash %s < cost %s (short %s)",
					cash.StringFixed(2), cost.StringFixed(2), cost.Sub(cash).StringFixed(2)))
		}
	}

	switch o.Side {
	case broker.SideBuy:
		cash := dec(s.Cash)
		if cash.LessThan(cost) {
			return broker.Reject(broker.RejectInsufficientFunds,
				fmt.Sprintf("insufficient funds: cash %s < cost %s (short %s)",
					cash.StringFixed(2), cost.StringFixed(2), cost.Sub(cash).StringFixed(2)))
		}
		s.Cash = cash.Sub(cost).InexactFloat64()
		buyInto(s.Positions, o.Symbol, o.Qty, price, cost)
	case broker.SideSell:
		held := s.Positions[o.Symbol].Qty
		if held < o.Qty {
			return broker.Reject(broker.RejectInsufficientShares,
				fmt.Sprintf("insufficient shares of %s: held %d < qty %d", o.Symbol, held, o.Qty))
		}
		s.Cash = dec(s.Cash).Add(cost).InexactFloat64()
		sellFrom(s.Positions, o.Symbol, o.Qty, price)
	}

	if agent {
		mirrorAgent(&s.Agent, o, price, cost)
	}
	s.Revalue()
	return nil
}

// mirrorAgent applies an agent-sourced fill to the agent sub-book. A sell of
// shares the agent book does not hold leaves the sub-book as it was.
func mirrorAgent(a *broker.AgentAccount, o broker.Order, price float64, cost decimal.Decimal) {
	if a.Positions == nil {
		a.Positions = broker.Positions{}
	}
	switch o.Side {
	case broker.SideBuy:
		a.Cash = dec(a.Cash).Sub(cost).InexactFloat64()
		pos := buyInto(a.Positions, o.Symbol, o.Qty, price, cost)
		pos.StopLoss = o.StopLoss
		pos.RiskScore = o.RiskScore
		a.Positions[o.Symbol] = pos
	case broker.SideSell:
		held := a.Positions[o.Symbol].Qty
		if held < o.Qty {
			logger.Warn("ledger: agent sell of %d %s exceeds agent holding %d; agent book unchanged",
				o.Qty, o.Symbol, held)
			return
		}
		a.Cash = dec(a.Cash).Add(cost).InexactFloat64()
		sellFrom(a.Positions, o.Symbol, o.Qty, price)
	}
}

// markAll re-prices every row of ps that has a quote and reports whether
// anything was touched.
func markAll(ps broker.Positions, quotes map[string]float64) bool {
	changed := false
	for sym, pos := range ps {
		price, ok := quotes[sym]
		if !ok {
			continue
		}
		pos.Mark(price)
		ps[sym] = pos
		changed = true
	}
	return changed
}

package broker

import (
	"fmt"
	"strings"
	"time"
)

// Position is one symbol row in either book. StopLoss and RiskScore are
// only carried by agent positions.
type Position struct {
	Qty            int64   `json:"qty"`
	AvgEntryPrice  float64 `json:"avg_entry_price"`
	CurrentPrice   float64 `json:"current_price"`
	UnrealizedPL   float64 `json:"unrealized_pl"`
	UnrealizedPLPC float64 `json:"unrealized_plpc"`
	StopLoss       float64 `json:"stop_loss,omitempty"`
	RiskScore      int     `json:"risk_score,omitempty"`
}

// Value is qty * current price.
func (p Position) Value() float64 {
	return float64(p.Qty) * p.CurrentPrice
}

// Mark re-prices the position and recomputes unrealized P/L.
func (p *Position) Mark(price float64) {
	p.CurrentPrice = price
	p.UnrealizedPL = (price - p.AvgEntryPrice) * float64(p.Qty)
	if p.AvgEntryPrice != 0 {
		p.UnrealizedPLPC = price/p.AvgEntryPrice - 1
	} else {
		p.UnrealizedPLPC = 0
	}
}

type Positions map[string]Position

// MarketValue sums qty * current price over every row.
func (ps Positions) MarketValue() float64 {
	total := 0.0
	for _, p := range ps {
		total += p.Value()
	}
	return total
}

func (ps Positions) clone() Positions {
	out := make(Positions, len(ps))
	for k, v := range ps {
		out[k] = v
	}
	return out
}

type HouseAccount struct {
	Equity      float64   `json:"equity"`
	BuyingPower float64   `json:"buying_power"`
	Cash        float64   `json:"cash"`
	Currency    string    `json:"currency"`
	Positions   Positions `json:"positions"`
}

type AgentAccount struct {
	Allocated float64   `json:"allocated"`
	Cash      float64   `json:"cash"`
	Equity    float64   `json:"equity"`
	Positions Positions `json:"positions"`
}

// Clone returns a deep copy.
func (a AgentAccount) Clone() AgentAccount {
	a.Positions = a.Positions.clone()
	return a
}

// Snapshot is the whole persisted ledger: the house book at the top level
// with the agent sub-book nested under agent_portfolio.
type Snapshot struct {
	HouseAccount
	Agent AgentAccount `json:"agent_portfolio"`
}

// NewSnapshot returns a fresh ledger holding balance in cash and nothing else.
func NewSnapshot(balance float64, currency string) Snapshot {
	return Snapshot{
		HouseAccount: HouseAccount{
			Equity:      balance,
			BuyingPower: balance,
			Cash:        balance,
			Currency:    currency,
			Positions:   Positions{},
		},
		Agent: AgentAccount{Positions: Positions{}},
	}
}

// Clone returns a deep copy.
func (s Snapshot) Clone() Snapshot {
	s.Positions = s.Positions.clone()
	s.Agent = s.Agent.Clone()
	return s
}

// Revalue recomputes equity and buying power for both books from cash and
// current prices.
func (s *Snapshot) Revalue() {
	s.Equity = s.Cash + s.Positions.MarketValue()
	s.BuyingPower = s.Cash
	s.Agent.Equity = s.Agent.Cash + s.Agent.Positions.MarketValue()
}

// Symbols returns every symbol held in either book.
func (s Snapshot) Symbols() []string {
	seen := make(map[string]struct{}, len(s.Positions)+len(s.Agent.Positions))
	out := make([]string, 0, len(s.Positions)+len(s.Agent.Positions))
	for _, ps := range []Positions{s.Positions, s.Agent.Positions} {
		for sym := range ps {
			if _, ok := seen[sym]; ok {
				continue
			}
			seen[sym] = struct{}{}
			out = append(out, sym)
		}
	}
	return out
}

type Order struct {
	Symbol    string
	Qty       int64
	Side      Side
	Source    Source
	StopLoss  float64
	RiskScore int
}

// Validate rejects orders that can never be filled regardless of state.
func (o Order) Validate() *Rejection {
	switch {
	case strings.TrimSpace(o.Symbol) == "":
		return Reject(RejectInvalidOrder, "symbol is required")
	case o.Qty <= 0:
		return Reject(RejectInvalidOrder, fmt.Sprintf("qty must be positive, got %d", o.Qty))
	case !o.Side.Valid():
		return Reject(RejectInvalidOrder, fmt.Sprintf("unknown side %q", o.Side))
	}
	return nil
}

type RejectKind string

const (
	RejectPriceUnavailable       RejectKind = "price_unavailable"
	RejectInsufficientFunds      RejectKind = "insufficient_funds"
	RejectInsufficientAgentFunds RejectKind = "insufficient_agent_funds"
	RejectInsufficientShares     RejectKind = "insufficient_shares"
	RejectInvalidOrder           RejectKind = "invalid_order"
	RejectProviderFailure        RejectKind = "provider_failure"
)

// Rejection is a business refusal. It is returned inside a Fill and never
// as an error.
type Rejection struct {
	Kind   RejectKind `json:"kind"`
	Reason string     `json:"reason"`
}

func Reject(kind RejectKind, reason string) *Rejection {
	return &Rejection{Kind: kind, Reason: reason}
}

func (r *Rejection) Error() string {
	return r.Reason
}

type FillStatus string

const (
	FillFilled   FillStatus = "filled"
	FillRejected FillStatus = "rejected"
)

type Fill struct {
	Status    FillStatus `json:"status"`
	Mode      Mode       `json:"mode"`
	TradeID   string     `json:"trade_id,omitempty"`
	Symbol    string     `json:"symbol"`
	Side      Side       `json:"side"`
	Qty       int64      `json:"qty"`
	Price     float64    `json:"price,omitempty"`
	Source    Source     `json:"source"`
	Time      time.Time  `json:"time"`
	Rejection *Rejection `json:"rejection,omitempty"`
}

func (f Fill) Filled() bool { return f.Status == FillFilled }

// Rejected builds a rejected Fill for o.
func Rejected(mode Mode, o Order, rej *Rejection) Fill {
	return Fill{
		Status:    FillRejected,
		Mode:      mode,
		Symbol:    o.Symbol,
		Side:      o.Side,
		Qty:       o.Qty,
		Source:    o.Source,
		Time:      time.Now(),
		Rejection: rej,
	}
}

type OpenOrder struct {
	ID          string    `json:"id"`
	Symbol      string    `json:"symbol"`
	Qty         string    `json:"qty"`
	Side        string    `json:"side"`
	Status      string    `json:"status"`
	SubmittedAt time.Time `json:"submitted_at"`
}

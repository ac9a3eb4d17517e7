package broker

import (
	"context"
)

// Broker is the capability set shared by the local simulated ledger and an
// external brokerage. The variant is chosen once, at construction.
type Broker interface {
	Mode() Mode
	Snapshot(ctx context.Context) (Snapshot, error)
	ExecuteTrade(ctx context.Context, o Order) (Fill, error)
	SetAgentAllocation(ctx context.Context, amount float64) (AgentAccount, error)
	RefreshPrices(ctx context.Context) error
	// MaybeRefreshPrices starts a throttled background refresh and reports
	// whether one was started. It never blocks.
	MaybeRefreshPrices() bool
	OpenOrders(ctx context.Context) ([]OpenOrder, error)
}

type Mode string

const (
	ModeSimulation Mode = "SIMULATION"
	ModeAlpaca     Mode = "ALPACA"
)

// JournalMode is the lower-case tag written into trade history.
func (m Mode) JournalMode() string {
	switch m {
	case ModeAlpaca:
		return "alpaca"
	default:
		return "simulation"
	}
}

type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

type Source string

const (
	SourceManual Source = "manual"
	SourceAgent  Source = "agent"
)

// Book names recorded against a trade.
const (
	BookHouse = "house"
	BookAgent = "agent"
)

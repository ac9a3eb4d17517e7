// Package agent runs the autonomous decision loop: for each watchlist
// ticker it fetches market context, asks for a signal, checks the agent
// book's stop-loss and, when allowed, sizes and submits a trade.
package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shreyanshxt/FinSight/broker"
	"github.com/shreyanshxt/FinSight/config"
	"github.com/shreyanshxt/FinSight/logger"
	"github.com/shreyanshxt/FinSight/market"
	"github.com/shreyanshxt/FinSight/metrics"
	"github.com/shreyanshxt/FinSight/notify"
	"github.com/shreyanshxt/FinSight/risk"
	"github.com/shreyanshxt/FinSight/signal"
)

type Terminal string

const (
	// TerminalSkipped means market data was unavailable.
	TerminalSkipped   Terminal = "skipped"
	TerminalPanicSell Terminal = "panic_sell"
	TerminalTraded    Terminal = "traded"
	TerminalNoAction  Terminal = "no_action"
)

// Outcome describes how one ticker's cycle ended.
type Outcome struct {
	Symbol         string                `json:"ticker"`
	Terminal       Terminal              `json:"terminal"`
	Price          float64               `json:"price,omitempty"`
	Recommendation signal.Recommendation `json:"analysis"`
	Side           broker.Side           `json:"side,omitempty"`
	Qty            int64                 `json:"qty,omitempty"`
	ActiveStop     float64               `json:"active_stop_loss,omitempty"`
	Fill           *broker.Fill          `json:"fill,omitempty"`
	Reason         string                `json:"reason,omitempty"`
}

// SignalProvider resolves a model name to a signal source. signal.Registry
// satisfies it.
type SignalProvider interface {
	Get(ctx context.Context, model string) (signal.Source, error)
}

type Deps struct {
	Broker   broker.Broker
	Oracle   market.Oracle
	News     market.NewsSource // optional
	Signals  SignalProvider
	Config   config.AgentSource
	Notifier notify.Sink
}

type Engine struct {
	d     Deps
	sleep func(ctx context.Context, d time.Duration) error

	mu    sync.Mutex
	model string
}

func New(d Deps) *Engine {
	if d.Notifier == nil {
		d.Notifier = notify.Nop{}
	}
	return &Engine{d: d, sleep: sleepCtx}
}

// Run processes the watchlist forever, sleeping the configured interval
// between passes. It returns only when ctx is done.
func (e *Engine) Run(ctx context.Context) error {
	cfg := e.d.Config.Load()
	logger.Info("agent: starting monitor for %v (model %s)", cfg.Watchlist, cfg.Model)
	for {
		e.RunCycle(ctx)
		if err := ctx.Err(); err != nil {
			return err
		}
		interval := e.d.Config.Load().Interval()
		logger.Info("agent: cycle complete, waiting %s", interval)
		if err := e.sleep(ctx, interval); err != nil {
			return err
		}
	}
}

// RunCycle makes one sequential pass over the watchlist.
func (e *Engine) RunCycle(ctx context.Context) []Outcome {
	start := time.Now()
	watchlist := e.d.Config.Load().Watchlist
	out := make([]Outcome, 0, len(watchlist))
	for _, sym := range watchlist {
		if ctx.Err() != nil {
			break
		}
		out = append(out, e.RunOnce(ctx, sym))
	}
	metrics.ObserveCycle(time.Since(start).Seconds())
	return out
}

// RunOnce runs the full decision sequence for one ticker. Failures are
// logged and folded into the Outcome; it never panics.
func (e *Engine) RunOnce(ctx context.Context, symbol string) (out Outcome) {
	out = Outcome{Symbol: symbol, Terminal: TerminalNoAction}
	defer func() {
		if r := recover(); r != nil {
			logger.Error("agent: %s cycle panicked: %v", symbol, r)
			out.Terminal = TerminalNoAction
			out.Reason = fmt.Sprintf("panic: %v", r)
		}
		metrics.RecordDecision(symbol, string(out.Terminal))
	}()

	cfg := e.d.Config.Load()
	logger.Info("agent: --- cycle for %s ---", symbol)
	return e.decide(ctx, cfg, symbol)
}

func (e *Engine) decide(ctx context.Context, cfg config.Agent, symbol string) Outcome {
	out := Outcome{Symbol: symbol, Terminal: TerminalNoAction}

	// Fetching
	snap, err := e.d.Oracle.Snapshot(ctx, symbol)
	if err != nil || snap.Price <= 0 {
		logger.Warn("agent: no market data for %s: %v", symbol, err)
		out.Terminal = TerminalSkipped
		out.Reason = "market data unavailable"
		return out
	}
	out.Price = snap.Price

	var news []market.Headline
	if e.d.News != nil {
		if news, err = e.d.News.Headlines(ctx, symbol); err != nil {
			logger.Debug("agent: news for %s unavailable: %v", symbol, err)
		}
	}

	// Analyzing
	rec := e.analyze(ctx, cfg.Model, signal.Request{Symbol: symbol, Market: snap, News: news})
	out.Recommendation = rec
	e.d.Notifier.NotifyAnalysis(symbol, string(rec.Signal),
		fmt.Sprintf("Risk: %d/10 | SL: %.2f | %s", rec.RiskScore, rec.StopLoss, rec.Reasoning))

	acct, err := e.d.Broker.Snapshot(ctx)
	if err != nil {
		logger.Error("agent: account unavailable for %s: %v", symbol, err)
		out.Reason = "account unavailable"
		return out
	}
	pos := acct.Agent.Positions[symbol]

	// StopLossCheck
	if pos.Qty > 0 {
		active := risk.ActiveStopLoss(pos.StopLoss, rec.StopLoss)
		out.ActiveStop = active
		if risk.StopHit(snap.Price, active) {
			return e.panicSell(ctx, out, pos.Qty, active)
		}
	}

	// SizeAndTrade
	side, ok := rec.Signal.Side()
	if !ok {
		out.Reason = "signal is HOLD"
		return out
	}
	if !cfg.AutonomousEnabled {
		logger.Info("agent: skipping %s %s, autonomous trading disabled", rec.Signal, symbol)
		out.Reason = "autonomous trading disabled"
		return out
	}

	var qty int64
	switch side {
	case broker.SideBuy:
		qty = risk.BuyQuantity(acct.Agent.Cash, snap.Price, rec.RiskScore)
		if qty < 1 {
			logger.Info("agent: insufficient agent funds for %s: cash %.2f, price %.2f", symbol, acct.Agent.Cash, snap.Price)
			out.Reason = "insufficient agent funds"
			return out
		}
	case broker.SideSell:
		qty = pos.Qty
		if qty <= 0 {
			logger.Info("agent: skipping SELL for %s, agent holds none", symbol)
			out.Reason = "nothing to liquidate"
			return out
		}
	}
	out.Side, out.Qty = side, qty

	logger.Info("agent: %s %d %s (risk %d/10, SL %.2f)", side, qty, symbol, rec.RiskScore, rec.StopLoss)
	fill, ok := e.submit(ctx, &out, broker.Order{
		Symbol:    symbol,
		Qty:       qty,
		Side:      side,
		Source:    broker.SourceAgent,
		StopLoss:  rec.StopLoss,
		RiskScore: rec.RiskScore,
	})
	if !ok {
		return out
	}

	note := fmt.Sprintf("Risk %d/10 | SL %.2f | %s", rec.RiskScore, rec.StopLoss, rec.Reasoning)
	if fill.Mode == broker.ModeSimulation {
		note += " (SIMULATED)"
	}
	e.d.Notifier.NotifyTrade(symbol, string(side), qty, note)
	out.Terminal = TerminalTraded
	return out
}

func (e *Engine) panicSell(ctx context.Context, out Outcome, qty int64, active float64) Outcome {
	logger.Warn("agent: stop loss triggered for %s: price %.2f <= SL %.2f", out.Symbol, out.Price, active)
	e.d.Notifier.Notify(
		fmt.Sprintf("PANIC SELL: Stop-loss breached for %s at %.2f (SL: %.2f)", out.Symbol, out.Price, active),
		notify.LevelError)

	out.Terminal = TerminalPanicSell
	out.Side, out.Qty = broker.SideSell, qty
	e.submit(ctx, &out, broker.Order{
		Symbol: out.Symbol,
		Qty:    qty,
		Side:   broker.SideSell,
		Source: broker.SourceAgent,
	})
	return out
}

// submit executes o and records the fill or the refusal on out.
func (e *Engine) submit(ctx context.Context, out *Outcome, o broker.Order) (broker.Fill, bool) {
	fill, err := e.d.Broker.ExecuteTrade(ctx, o)
	if err != nil {
		logger.Error("agent: trade for %s failed: %v", o.Symbol, err)
		out.Reason = err.Error()
		return fill, false
	}
	out.Fill = &fill
	if !fill.Filled() {
		logger.Warn("agent: trade for %s rejected: %s", o.Symbol, fill.Rejection.Reason)
		out.Reason = fill.Rejection.Reason
		return fill, false
	}
	return fill, true
}

func (e *Engine) analyze(ctx context.Context, model string, req signal.Request) signal.Recommendation {
	e.mu.Lock()
	if model != e.model {
		if e.model != "" {
			logger.Info("agent: switching analyst model %s -> %s", e.model, model)
		}
		e.model = model
	}
	e.mu.Unlock()

	src, err := e.d.Signals.Get(ctx, model)
	if err != nil {
		logger.Warn("agent: no signal source for %s: %v", model, err)
		metrics.RecordSignal(model, string(signal.Hold), signal.DecoderFailed)
		return signal.Failed(err)
	}
	rec, err := src.Recommend(ctx, req)
	if err != nil {
		logger.Warn("agent: analysis of %s with %s failed: %v", req.Symbol, model, err)
		metrics.RecordSignal(model, string(signal.Hold), signal.DecoderFailed)
		return signal.Failed(err)
	}
	return rec
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

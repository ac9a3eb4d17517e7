// Package sim is the local simulated ledger: one house book plus the agent
// sub-book, persisted through a Store and serialized through a process
// mutex and a DistributedLock.
package sim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shreyanshxt/FinSight/broker"
	"github.com/shreyanshxt/FinSight/internal/id"
	"github.com/shreyanshxt/FinSight/journal"
	"github.com/shreyanshxt/FinSight/lock"
	"github.com/shreyanshxt/FinSight/logger"
	"github.com/shreyanshxt/FinSight/market"
	"github.com/shreyanshxt/FinSight/metrics"
	"github.com/shreyanshxt/FinSight/notify"
)

const (
	lockKey = "ledger"

	DefaultStartingBalance = 100000.0
	DefaultCurrency        = "USD"
	DefaultRefreshInterval = 60 * time.Second
)

var ErrInvalidAmount = errors.New("allocation amount must be a non-negative number")

type Ledger struct {
	mu       sync.Mutex
	store    Store
	lock     lock.DistributedLock
	lockTTL  time.Duration
	prices   market.PriceSource
	journal  journal.Journal
	notifier notify.Sink

	balance  float64
	currency string
	now      func() time.Time

	refreshInterval time.Duration
	lastRefresh     atomic.Int64
	refreshing      atomic.Bool
	refreshWG       sync.WaitGroup
}

type Option func(*Ledger)

// WithLock sets the cross-process lock. ttl bounds how long a crashed holder
// can keep the ledger locked.
func WithLock(l lock.DistributedLock, ttl time.Duration) Option {
	return func(lg *Ledger) {
		lg.lock = l
		if ttl > 0 {
			lg.lockTTL = ttl
		}
	}
}

func WithStartingBalance(balance float64, currency string) Option {
	return func(l *Ledger) {
		if balance > 0 {
			l.balance = balance
		}
		if currency != "" {
			l.currency = currency
		}
	}
}

func WithNotifier(n notify.Sink) Option {
	return func(l *Ledger) { l.notifier = n }
}

func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

func WithRefreshInterval(d time.Duration) Option {
	return func(l *Ledger) { l.refreshInterval = d }
}

// NewLedger builds a Ledger over store. A nil journal keeps history in
// memory only.
func NewLedger(store Store, prices market.PriceSource, j journal.Journal, opts ...Option) *Ledger {
	if j == nil {
		j = journal.NewMemory()
	}
	l := &Ledger{
		store:           store,
		lock:            lock.NewNopLock(),
		lockTTL:         30 * time.Second,
		prices:          prices,
		journal:         j,
		notifier:        notify.Nop{},
		balance:         DefaultStartingBalance,
		currency:        DefaultCurrency,
		now:             time.Now,
		refreshInterval: DefaultRefreshInterval,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Ledger) Mode() broker.Mode { return broker.ModeSimulation }

func (l *Ledger) Journal() journal.Journal { return l.journal }

// Snapshot returns a deep copy of the current state. It takes the same lock
// as a trade so it never observes a half-applied transaction.
func (l *Ledger) Snapshot(ctx context.Context) (broker.Snapshot, error) {
	return l.transact(ctx, func(*broker.Snapshot) (bool, error) { return false, nil })
}

func (l *Ledger) OpenOrders(ctx context.Context) ([]broker.OpenOrder, error) {
	return []broker.OpenOrder{}, nil
}

// ExecuteTrade fills o at the oracle's current price. The price is read
// before the transaction begins; the mutation itself runs under the lock.
// Business refusals come back as a rejected Fill with a nil error.
func (l *Ledger) ExecuteTrade(ctx context.Context, o broker.Order) (broker.Fill, error) {
	o.Symbol = strings.ToUpper(strings.TrimSpace(o.Symbol))
	if o.Source == "" {
		o.Source = broker.SourceManual
	}
	if rej := o.Validate(); rej != nil {
		return l.rejected(o, rej), nil
	}

	price, err := l.prices.Price(ctx, o.Symbol)
	if err != nil || !validPrice(price) {
		reason := fmt.Sprintf("could not fetch price for %s", o.Symbol)
		if err != nil {
			reason = fmt.Sprintf("%s: %v", reason, err)
		}
		return l.rejected(o, broker.Reject(broker.RejectPriceUnavailable, reason)), nil
	}

	var rej *broker.Rejection
	snap, err := l.transact(ctx, func(s *broker.Snapshot) (bool, error) {
		rej = applyTrade(s, o, price)
		return rej == nil, nil
	})
	if err != nil {
		metrics.RecordTrade(string(l.Mode()), string(o.Side), string(o.Source), "error")
		return broker.Fill{}, fmt.Errorf("execute trade: %w", err)
	}
	if rej != nil {
		return l.rejected(o, rej), nil
	}

	at := l.now()
	fill := broker.Fill{
		Status:  broker.FillFilled,
		Mode:    l.Mode(),
		TradeID: id.At(at),
		Symbol:  o.Symbol,
		Side:    o.Side,
		Qty:     o.Qty,
		Price:   price,
		Source:  o.Source,
		Time:    at,
	}
	metrics.RecordTrade(string(fill.Mode), string(fill.Side), string(fill.Source), string(fill.Status))
	l.recordTrade(fill)
	l.recordSample(snap)
	return fill, nil
}

// SetAgentAllocation resets the agent book's capital to amount. Positions
// already held by the agent are kept.
func (l *Ledger) SetAgentAllocation(ctx context.Context, amount float64) (broker.AgentAccount, error) {
	if amount < 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return broker.AgentAccount{}, ErrInvalidAmount
	}
	snap, err := l.transact(ctx, func(s *broker.Snapshot) (bool, error) {
		s.Agent.Allocated = amount
		s.Agent.Cash = amount
		s.Revalue()
		return true, nil
	})
	if err != nil {
		return broker.AgentAccount{}, fmt.Errorf("set agent allocation: %w", err)
	}
	metrics.SetEquity(broker.BookAgent, snap.Agent.Equity)
	logger.Info("ledger: agent allocation set to %.2f", amount)
	return snap.Agent, nil
}

// ApplyAgentFill books a fill executed elsewhere into the agent sub-book
// only. It is used when the house book lives at an external broker.
func (l *Ledger) ApplyAgentFill(ctx context.Context, o broker.Order, price float64) error {
	if rej := o.Validate(); rej != nil {
		return rej
	}
	_, err := l.transact(ctx, func(s *broker.Snapshot) (bool, error) {
		mirrorAgent(&s.Agent, o, price, costOf(price, o.Qty))
		s.Revalue()
		return true, nil
	})
	if err != nil {
		return fmt.Errorf("apply agent fill: %w", err)
	}
	return nil
}

// RefreshPrices re-marks every held symbol in both books. Quotes are fetched
// without holding the lock; a symbol whose quote fails keeps its old mark.
func (l *Ledger) RefreshPrices(ctx context.Context) error {
	snap, err := l.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("refresh prices: %w", err)
	}
	syms := snap.Symbols()
	if len(syms) == 0 {
		return nil
	}

	quotes := make(map[string]float64, len(syms))
	for _, sym := range syms {
		price, err := l.prices.Price(ctx, sym)
		if err != nil || !validPrice(price) {
			logger.Warn("ledger: refresh %s skipped: price=%v err=%v", sym, price, err)
			metrics.RecordRefresh("failed")
			continue
		}
		quotes[sym] = price
		metrics.RecordRefresh("ok")
	}
	if len(quotes) == 0 {
		return nil
	}

	changed := false
	snap, err = l.transact(ctx, func(s *broker.Snapshot) (bool, error) {
		house := markAll(s.Positions, quotes)
		agent := markAll(s.Agent.Positions, quotes)
		changed = house || agent
		if changed {
			s.Revalue()
		}
		return changed, nil
	})
	if err != nil {
		return fmt.Errorf("refresh prices: %w", err)
	}
	if changed {
		l.recordSample(snap)
	}
	return nil
}

// MaybeRefreshPrices starts a background refresh unless one was started
// within the refresh interval or is still running.
func (l *Ledger) MaybeRefreshPrices() bool {
	now := l.now().UnixNano()
	last := l.lastRefresh.Load()
	if last != 0 && now-last < int64(l.refreshInterval) {
		return false
	}
	if !l.lastRefresh.CompareAndSwap(last, now) {
		return false
	}
	if !l.refreshing.CompareAndSwap(false, true) {
		return false
	}

	l.refreshWG.Add(1)
	go func() {
		defer l.refreshWG.Done()
		defer l.refreshing.Store(false)
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if err := l.RefreshPrices(ctx); err != nil {
			logger.Warn("ledger: background refresh failed: %v", err)
		}
	}()
	return true
}

// Wait blocks until background refreshes have finished.
func (l *Ledger) Wait() {
	l.refreshWG.Wait()
}

// transact runs fn against the loaded state while holding both locks and
// saves when fn reports a change. It returns a copy of the resulting state.
func (l *Ledger) transact(ctx context.Context, fn func(s *broker.Snapshot) (bool, error)) (broker.Snapshot, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.lock.Lock(ctx, lockKey, l.lockTTL); err != nil {
		return broker.Snapshot{}, fmt.Errorf("acquire ledger lock: %w", err)
	}
	defer func() {
		if err := l.lock.Unlock(context.Background(), lockKey); err != nil {
			logger.Warn("ledger: release lock: %v", err)
		}
	}()

	// Once the lock is held the transaction runs to completion.
	ctx = context.WithoutCancel(ctx)

	s, err := l.loadLocked(ctx)
	if err != nil {
		return broker.Snapshot{}, err
	}
	dirty, err := fn(&s)
	if err != nil {
		return broker.Snapshot{}, err
	}
	if dirty {
		if err := l.store.Save(ctx, s); err != nil {
			return broker.Snapshot{}, fmt.Errorf("save ledger: %w", err)
		}
	}
	return s.Clone(), nil
}

// loadLocked reads the persisted state, creating or repairing it as needed.
// Caller must hold l.mu and the distributed lock.
func (l *Ledger) loadLocked(ctx context.Context) (broker.Snapshot, error) {
	s, found, err := l.store.Load(ctx)
	switch {
	case errors.Is(err, ErrCorruptState):
		return l.recoverLocked(ctx, err)
	case err != nil:
		return broker.Snapshot{}, fmt.Errorf("load ledger: %w", err)
	case !found:
		s = broker.NewSnapshot(l.balance, l.currency)
		if err := l.store.Save(ctx, s); err != nil {
			return broker.Snapshot{}, fmt.Errorf("initialise ledger: %w", err)
		}
		logger.Info("ledger: initialised with %.2f %s", l.balance, l.currency)
		return s, nil
	}

	if s.Positions == nil {
		s.Positions = broker.Positions{}
	}
	if s.Currency == "" {
		s.Currency = l.currency
	}
	// State written before the agent book existed has no agent_portfolio.
	if s.Agent.Positions == nil {
		s.Agent.Positions = broker.Positions{}
		if err := l.store.Save(ctx, s); err != nil {
			return broker.Snapshot{}, fmt.Errorf("migrate ledger: %w", err)
		}
		logger.Info("ledger: added empty agent book to existing state")
	}
	return s, nil
}

func (l *Ledger) recoverLocked(ctx context.Context, cause error) (broker.Snapshot, error) {
	where, qerr := l.store.Quarantine(ctx)
	if qerr != nil {
		return broker.Snapshot{}, fmt.Errorf("%v; %w", cause, qerr)
	}
	logger.Error("ledger: %v; moved to %s and reinitialised", cause, where)
	l.notifier.Notify(fmt.Sprintf("Ledger state was corrupt and has been reset (backup: %s)", where), notify.LevelError)

	s := broker.NewSnapshot(l.balance, l.currency)
	if err := l.store.Save(ctx, s); err != nil {
		return broker.Snapshot{}, fmt.Errorf("reinitialise ledger: %w", err)
	}
	return s, nil
}

func (l *Ledger) rejected(o broker.Order, rej *broker.Rejection) broker.Fill {
	metrics.RecordTrade(string(l.Mode()), string(o.Side), string(o.Source), string(broker.FillRejected))
	metrics.RecordRejection(string(rej.Kind))
	logger.Info("ledger: rejected %s %d %s (%s): %s", o.Side, o.Qty, o.Symbol, o.Source, rej.Reason)
	f := broker.Rejected(l.Mode(), o, rej)
	f.Time = l.now()
	return f
}

func (l *Ledger) recordTrade(f broker.Fill) {
	books := []string{broker.BookHouse}
	if f.Source == broker.SourceAgent {
		books = append(books, broker.BookAgent)
	}
	rec := journal.TradeRecord{
		ID:        f.TradeID,
		Timestamp: f.Time,
		Symbol:    f.Symbol,
		Side:      f.Side,
		Qty:       f.Qty,
		Price:     f.Price,
		Source:    f.Source,
		Mode:      f.Mode.JournalMode(),
		Books:     books,
	}
	if err := l.journal.RecordTrade(rec); err != nil {
		logger.Warn("ledger: record trade %s: %v", rec.ID, err)
	}
}

func (l *Ledger) recordSample(s broker.Snapshot) {
	metrics.SetEquity(broker.BookHouse, s.Equity)
	metrics.SetEquity(broker.BookAgent, s.Agent.Equity)
	if _, err := l.journal.RecordEquity(journal.EquitySample{Timestamp: l.now(), Equity: s.Equity}); err != nil {
		logger.Warn("ledger: record equity: %v", err)
	}
}

var _ broker.Broker = (*Ledger)(nil)

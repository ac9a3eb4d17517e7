package alpaca

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/shreyanshxt/FinSight/broker"
	"github.com/shreyanshxt/FinSight/journal"
	"github.com/shreyanshxt/FinSight/sim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedPrices map[string]float64

func (f fixedPrices) Price(ctx context.Context, symbol string) (float64, error) {
	p, ok := f[symbol]
	if !ok {
		return 0, errors.New("no quote")
	}
	return p, nil
}

type fakeAlpaca struct {
	mu         sync.Mutex
	orders     []orderRequest
	orderCode  int
	equity     string
	authFailed bool
}

func (f *fakeAlpaca) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r.Header.Get("APCA-API-KEY-ID") != "key" || r.Header.Get("APCA-API-SECRET-KEY") != "secret" {
		f.authFailed = true
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/v2/account":
		_, _ = w.Write([]byte(`{"equity":"` + f.equity + `","buying_power":"50000.5","cash":"40000","currency":"USD"}`))
	case r.Method == http.MethodGet && r.URL.Path == "/v2/positions":
		_, _ = w.Write([]byte(`[{"symbol":"AAPL","qty":"4","avg_entry_price":"100","current_price":"110",
			"unrealized_pl":"40","unrealized_plpc":"0.1"}]`))
	case r.Method == http.MethodGet && r.URL.Path == "/v2/orders":
		if r.URL.Query().Get("status") != "open" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`[{"id":"o-1","symbol":"NVDA","qty":"2","side":"buy","status":"new",
			"submitted_at":"2026-01-02T15:04:05Z"}]`))
	case r.Method == http.MethodPost && r.URL.Path == "/v2/orders":
		var req orderRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.orders = append(f.orders, req)
		if f.orderCode != 0 {
			w.WriteHeader(f.orderCode)
			_, _ = w.Write([]byte(`{"code":40310000,"message":"insufficient buying power"}`))
			return
		}
		_, _ = w.Write([]byte(`{"id":"o-2","symbol":"` + req.Symbol + `","qty":"` + req.Qty + `","side":"` + req.Side + `","status":"accepted"}`))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newTestClient(t *testing.T, fake *fakeAlpaca) (*Client, *sim.Ledger, *journal.Memory) {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	prices := fixedPrices{"AAPL": 100, "NVDA": 50}
	j := journal.NewMemory()
	local := sim.NewLedger(sim.NewMemoryStore(), prices, j)
	c, err := New(Config{BaseURL: srv.URL, KeyID: "key", SecretKey: "secret"}, local, prices)
	require.NoError(t, err)
	return c, local, j
}

func TestNewRequiresKeys(t *testing.T) {
	t.Parallel()

	local := sim.NewLedger(sim.NewMemoryStore(), fixedPrices{}, nil)
	_, err := New(Config{KeyID: "key"}, local, fixedPrices{})
	assert.Error(t, err)
	_, err = New(Config{KeyID: "key", SecretKey: "secret"}, nil, fixedPrices{})
	assert.Error(t, err)
}

func TestSnapshotMergesAgentMetadata(t *testing.T) {
	t.Parallel()

	c, local, _ := newTestClient(t, &fakeAlpaca{equity: "100440"})
	ctx := context.Background()
	_, err := local.SetAgentAllocation(ctx, 1000)
	require.NoError(t, err)
	require.NoError(t, local.ApplyAgentFill(ctx, broker.Order{
		Symbol: "AAPL", Qty: 2, Side: broker.SideBuy, Source: broker.SourceAgent, StopLoss: 90, RiskScore: 3,
	}, 100))

	snap, err := c.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 100440.0, snap.Equity)
	assert.Equal(t, 50000.5, snap.BuyingPower)
	assert.Equal(t, "USD", snap.Currency)

	pos := snap.Positions["AAPL"]
	assert.Equal(t, int64(4), pos.Qty)
	assert.Equal(t, 110.0, pos.CurrentPrice)
	assert.Equal(t, 90.0, pos.StopLoss)
	assert.Equal(t, 3, pos.RiskScore)

	assert.Equal(t, int64(2), snap.Agent.Positions["AAPL"].Qty)
	assert.InDelta(t, 800, snap.Agent.Cash, 1e-9)
}

func TestExecuteTradeSubmitsAndJournals(t *testing.T) {
	t.Parallel()

	fake := &fakeAlpaca{equity: "100000"}
	c, local, j := newTestClient(t, fake)
	ctx := context.Background()
	_, err := local.SetAgentAllocation(ctx, 1000)
	require.NoError(t, err)

	fill, err := c.ExecuteTrade(ctx, broker.Order{
		Symbol: " nvda ", Qty: 2, Side: broker.SideBuy, Source: broker.SourceAgent, StopLoss: 45, RiskScore: 6,
	})
	require.NoError(t, err)
	require.True(t, fill.Filled())
	assert.Equal(t, broker.ModeAlpaca, fill.Mode)
	assert.Equal(t, 50.0, fill.Price)
	assert.NotEmpty(t, fill.TradeID)

	require.Len(t, fake.orders, 1)
	assert.Equal(t, orderRequest{Symbol: "NVDA", Qty: "2", Side: "buy", Type: "market", TimeInForce: "gtc"}, fake.orders[0])

	trades, err := j.Trades()
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, "alpaca", trades[0].Mode)
	assert.Equal(t, []string{broker.BookHouse, broker.BookAgent}, trades[0].Books)

	samples, err := j.Equity()
	require.NoError(t, err)
	require.NotEmpty(t, samples)
	assert.Equal(t, 100000.0, samples[len(samples)-1].Equity)

	snap, err := local.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), snap.Agent.Positions["NVDA"].Qty)
	assert.Equal(t, 45.0, snap.Agent.Positions["NVDA"].StopLoss)
	assert.InDelta(t, 900, snap.Agent.Cash, 1e-9)
	assert.Empty(t, snap.Positions, "house book lives at the broker")
}

func TestExecuteTradeRejections(t *testing.T) {
	t.Parallel()

	t.Run("agent funds checked before submit", func(t *testing.T) {
		fake := &fakeAlpaca{equity: "100000"}
		c, _, _ := newTestClient(t, fake)
		fill, err := c.ExecuteTrade(context.Background(), broker.Order{
			Symbol: "AAPL", Qty: 1, Side: broker.SideBuy, Source: broker.SourceAgent,
		})
		require.NoError(t, err)
		require.NotNil(t, fill.Rejection)
		assert.Equal(t, broker.RejectInsufficientAgentFunds, fill.Rejection.Kind)
		assert.Empty(t, fake.orders)
	})

	t.Run("broker refusal", func(t *testing.T) {
		fake := &fakeAlpaca{equity: "100000", orderCode: http.StatusForbidden}
		c, _, j := newTestClient(t, fake)
		fill, err := c.ExecuteTrade(context.Background(), broker.Order{Symbol: "AAPL", Qty: 1, Side: broker.SideBuy})
		require.NoError(t, err)
		require.NotNil(t, fill.Rejection)
		assert.Equal(t, broker.RejectProviderFailure, fill.Rejection.Kind)
		assert.Contains(t, fill.Rejection.Reason, "insufficient buying power")
		trades, _ := j.Trades()
		assert.Empty(t, trades)
	})

	t.Run("transport failure", func(t *testing.T) {
		srv := httptest.NewServer(&fakeAlpaca{})
		srv.Close()
		prices := fixedPrices{"AAPL": 100}
		local := sim.NewLedger(sim.NewMemoryStore(), prices, nil)
		c, err := New(Config{BaseURL: srv.URL, KeyID: "key", SecretKey: "secret"}, local, prices)
		require.NoError(t, err)

		fill, err := c.ExecuteTrade(context.Background(), broker.Order{Symbol: "AAPL", Qty: 1, Side: broker.SideSell})
		require.NoError(t, err)
		require.NotNil(t, fill.Rejection)
		assert.Equal(t, broker.RejectProviderFailure, fill.Rejection.Kind)
	})

	t.Run("invalid order", func(t *testing.T) {
		fake := &fakeAlpaca{}
		c, _, _ := newTestClient(t, fake)
		fill, err := c.ExecuteTrade(context.Background(), broker.Order{Symbol: "AAPL", Qty: 0, Side: broker.SideBuy})
		require.NoError(t, err)
		assert.Equal(t, broker.RejectInvalidOrder, fill.Rejection.Kind)
		assert.Empty(t, fake.orders)
	})
}

func TestOpenOrders(t *testing.T) {
	t.Parallel()

	c, _, _ := newTestClient(t, &fakeAlpaca{})
	orders, err := c.OpenOrders(context.Background())
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "o-1", orders[0].ID)
	assert.Equal(t, "2", orders[0].Qty)
	assert.Equal(t, 2026, orders[0].SubmittedAt.Year())
}

func TestBadCredentialsSurface(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(&fakeAlpaca{})
	t.Cleanup(srv.Close)
	local := sim.NewLedger(sim.NewMemoryStore(), fixedPrices{}, nil)
	c, err := New(Config{BaseURL: srv.URL, KeyID: "wrong", SecretKey: "secret"}, local, fixedPrices{})
	require.NoError(t, err)

	_, err = c.Snapshot(context.Background())
	assert.ErrorContains(t, err, "401")
}

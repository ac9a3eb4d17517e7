// Package alpaca is the external brokerage variant of broker.Broker. The
// house book lives at Alpaca; the agent sub-book is still kept in the local
// ledger.
package alpaca

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"github.com/shreyanshxt/FinSight/broker"
	"github.com/shreyanshxt/FinSight/internal/id"
	"github.com/shreyanshxt/FinSight/journal"
	"github.com/shreyanshxt/FinSight/logger"
	"github.com/shreyanshxt/FinSight/market"
	"github.com/shreyanshxt/FinSight/metrics"
	"github.com/shreyanshxt/FinSight/sim"
)

const DefaultBaseURL = "https://paper-api.alpaca.markets"

type Config struct {
	BaseURL   string
	KeyID     string
	SecretKey string
	Timeout   time.Duration
}

type Client struct {
	http    *resty.Client
	local   *sim.Ledger
	prices  market.PriceSource
	journal journal.Journal
	now     func() time.Time
}

// New returns a Client trading through Alpaca. local keeps agent metadata
// and receives mirrored agent fills; its journal is shared.
func New(cfg Config, local *sim.Ledger, prices market.PriceSource) (*Client, error) {
	if cfg.KeyID == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("alpaca: key id and secret are required")
	}
	if local == nil {
		return nil, fmt.Errorf("alpaca: local ledger is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	hc := resty.New()
	hc.SetBaseURL(strings.TrimRight(cfg.BaseURL, "/"))
	hc.SetTimeout(cfg.Timeout)
	hc.SetHeader("APCA-API-KEY-ID", cfg.KeyID)
	hc.SetHeader("APCA-API-SECRET-KEY", cfg.SecretKey)
	hc.SetHeader("Accept", "application/json")

	return &Client{
		http:    hc,
		local:   local,
		prices:  prices,
		journal: local.Journal(),
		now:     time.Now,
	}, nil
}

func (c *Client) Mode() broker.Mode { return broker.ModeAlpaca }

type account struct {
	Equity      float64 `json:"equity,string"`
	BuyingPower float64 `json:"buying_power,string"`
	Cash        float64 `json:"cash,string"`
	Currency    string  `json:"currency"`
}

type position struct {
	Symbol         string  `json:"symbol"`
	Qty            float64 `json:"qty,string"`
	AvgEntryPrice  float64 `json:"avg_entry_price,string"`
	CurrentPrice   float64 `json:"current_price,string"`
	UnrealizedPL   float64 `json:"unrealized_pl,string"`
	UnrealizedPLPC float64 `json:"unrealized_plpc,string"`
}

type orderRequest struct {
	Symbol      string `json:"symbol"`
	Qty         string `json:"qty"`
	Side        string `json:"side"`
	Type        string `json:"type"`
	TimeInForce string `json:"time_in_force"`
}

type order struct {
	ID          string    `json:"id"`
	Symbol      string    `json:"symbol"`
	Qty         string    `json:"qty"`
	Side        string    `json:"side"`
	Status      string    `json:"status"`
	SubmittedAt time.Time `json:"submitted_at"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// get issues a GET and decodes a 200 response into out.
func (c *Client) get(ctx context.Context, path string, query map[string]string, out any) error {
	resp, err := c.http.R().SetContext(ctx).SetQueryParams(query).Get(path)
	if err != nil {
		return fmt.Errorf("alpaca GET %s: %w", path, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return statusError(resp)
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("alpaca GET %s: decode: %w", path, err)
	}
	return nil
}

func statusError(resp *resty.Response) error {
	var e apiError
	if err := json.Unmarshal(resp.Body(), &e); err == nil && e.Message != "" {
		return fmt.Errorf("alpaca %d: %s", resp.StatusCode(), e.Message)
	}
	return fmt.Errorf("alpaca %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
}

func (c *Client) account(ctx context.Context) (account, error) {
	var a account
	err := c.get(ctx, "/v2/account", nil, &a)
	return a, err
}

// Snapshot combines the Alpaca account and positions with the local agent
// book. House positions carry the agent's stop loss and risk score where
// the agent holds the same symbol.
func (c *Client) Snapshot(ctx context.Context) (broker.Snapshot, error) {
	acct, err := c.account(ctx)
	if err != nil {
		return broker.Snapshot{}, err
	}
	var raw []position
	if err := c.get(ctx, "/v2/positions", nil, &raw); err != nil {
		return broker.Snapshot{}, err
	}
	local, err := c.local.Snapshot(ctx)
	if err != nil {
		return broker.Snapshot{}, fmt.Errorf("alpaca: local agent book: %w", err)
	}

	ps := make(broker.Positions, len(raw))
	for _, p := range raw {
		meta := local.Agent.Positions[p.Symbol]
		ps[p.Symbol] = broker.Position{
			Qty:            int64(math.Trunc(p.Qty)),
			AvgEntryPrice:  p.AvgEntryPrice,
			CurrentPrice:   p.CurrentPrice,
			UnrealizedPL:   p.UnrealizedPL,
			UnrealizedPLPC: p.UnrealizedPLPC,
			StopLoss:       meta.StopLoss,
			RiskScore:      meta.RiskScore,
		}
	}
	return broker.Snapshot{
		HouseAccount: broker.HouseAccount{
			Equity:      acct.Equity,
			BuyingPower: acct.BuyingPower,
			Cash:        acct.Cash,
			Currency:    acct.Currency,
			Positions:   ps,
		},
		Agent: local.Agent,
	}, nil
}

// ExecuteTrade submits a market GTC order. Alpaca does not report a fill
// price for market orders, so the oracle price is used for the journal and
// for the mirrored agent book.
func (c *Client) ExecuteTrade(ctx context.Context, o broker.Order) (broker.Fill, error) {
	o.Symbol = strings.ToUpper(strings.TrimSpace(o.Symbol))
	if o.Source == "" {
		o.Source = broker.SourceManual
	}
	if rej := o.Validate(); rej != nil {
		return c.rejected(o, rej), nil
	}

	price, err := c.prices.Price(ctx, o.Symbol)
	if err != nil || price <= 0 {
		if o.Source == broker.SourceAgent {
			return c.rejected(o, broker.Reject(broker.RejectPriceUnavailable,
				fmt.Sprintf("could not fetch price for %s: %v", o.Symbol, err))), nil
		}
		logger.Warn("alpaca: no reference price for %s: %v", o.Symbol, err)
		price = 0
	}

	if o.Source == broker.SourceAgent && o.Side == broker.SideBuy {
		rej, err := c.checkAgentFunds(ctx, o, price)
		if err != nil {
			return broker.Fill{}, err
		}
		if rej != nil {
			return c.rejected(o, rej), nil
		}
	}

	var placed order
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(orderRequest{
			Symbol:      o.Symbol,
			Qty:         fmt.Sprintf("%d", o.Qty),
			Side:        string(o.Side),
			Type:        "market",
			TimeInForce: "gtc",
		}).
		Post("/v2/orders")
	if err != nil {
		return c.rejected(o, broker.Reject(broker.RejectProviderFailure, fmt.Sprintf("submit order: %v", err))), nil
	}
	if resp.StatusCode() >= http.StatusMultipleChoices {
		return c.rejected(o, broker.Reject(broker.RejectProviderFailure, statusError(resp).Error())), nil
	}
	if err := json.Unmarshal(resp.Body(), &placed); err != nil {
		logger.Warn("alpaca: decode order response: %v", err)
	}
	logger.Info("alpaca: submitted %s %d %s (order %s)", o.Side, o.Qty, o.Symbol, placed.ID)

	at := c.now()
	fill := broker.Fill{
		Status:  broker.FillFilled,
		Mode:    c.Mode(),
		TradeID: id.At(at),
		Symbol:  o.Symbol,
		Side:    o.Side,
		Qty:     o.Qty,
		Price:   price,
		Source:  o.Source,
		Time:    at,
	}
	metrics.RecordTrade(string(fill.Mode), string(fill.Side), string(fill.Source), string(fill.Status))
	c.recordTrade(fill)

	if o.Source == broker.SourceAgent {
		if err := c.local.ApplyAgentFill(ctx, o, price); err != nil {
			logger.Error("alpaca: mirror agent fill for %s: %v", o.Symbol, err)
		}
	}
	if acct, err := c.account(ctx); err != nil {
		logger.Warn("alpaca: equity sample skipped: %v", err)
	} else {
		metrics.SetEquity(broker.BookHouse, acct.Equity)
		if _, err := c.journal.RecordEquity(journal.EquitySample{Timestamp: at, Equity: acct.Equity}); err != nil {
			logger.Warn("alpaca: record equity: %v", err)
		}
	}
	return fill, nil
}

// checkAgentFunds applies the agent book's cash limit before anything is
// sent to the broker.
func (c *Client) checkAgentFunds(ctx context.Context, o broker.Order, price float64) (*broker.Rejection, error) {
	snap, err := c.local.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("alpaca: local agent book: %w", err)
	}
	cash := decimal.NewFromFloat(snap.Agent.Cash)
	cost := decimal.NewFromFloat(price).Mul(decimal.NewFromInt(o.Qty))
	if cash.LessThan(cost) {
		return broker.Reject(broker.RejectInsufficientAgentFunds,
			fmt.Sprintf("insufficient agent funds: agent cash %s < cost %s (short %s)",
				cash.StringFixed(2), cost.StringFixed(2), cost.Sub(cash).StringFixed(2))), nil
	}
	return nil, nil
}

func (c *Client) SetAgentAllocation(ctx context.Context, amount float64) (broker.AgentAccount, error) {
	return c.local.SetAgentAllocation(ctx, amount)
}

// RefreshPrices re-marks the local agent book. Alpaca marks the house book
// itself.
func (c *Client) RefreshPrices(ctx context.Context) error {
	return c.local.RefreshPrices(ctx)
}

func (c *Client) MaybeRefreshPrices() bool {
	return c.local.MaybeRefreshPrices()
}

func (c *Client) OpenOrders(ctx context.Context) ([]broker.OpenOrder, error) {
	var raw []order
	if err := c.get(ctx, "/v2/orders", map[string]string{"status": "open"}, &raw); err != nil {
		return nil, err
	}
	out := make([]broker.OpenOrder, 0, len(raw))
	for _, o := range raw {
		out = append(out, broker.OpenOrder{
			ID:          o.ID,
			Symbol:      o.Symbol,
			Qty:         o.Qty,
			Side:        o.Side,
			Status:      o.Status,
			SubmittedAt: o.SubmittedAt,
		})
	}
	return out, nil
}

func (c *Client) rejected(o broker.Order, rej *broker.Rejection) broker.Fill {
	metrics.RecordTrade(string(c.Mode()), string(o.Side), string(o.Source), string(broker.FillRejected))
	metrics.RecordRejection(string(rej.Kind))
	logger.Info("alpaca: rejected %s %d %s (%s): %s", o.Side, o.Qty, o.Symbol, o.Source, rej.Reason)
	f := broker.Rejected(c.Mode(), o, rej)
	f.Time = c.now()
	return f
}

func (c *Client) recordTrade(f broker.Fill) {
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
	if err := c.journal.RecordTrade(rec); err != nil {
		logger.Warn("alpaca: record trade %s: %v", rec.ID, err)
	}
}

var _ broker.Broker = (*Client)(nil)

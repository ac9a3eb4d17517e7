package api

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shreyanshxt/FinSight/broker"
	"github.com/shreyanshxt/FinSight/config"
	"github.com/shreyanshxt/FinSight/journal"
	"github.com/shreyanshxt/FinSight/logger"
	"github.com/shreyanshxt/FinSight/market"
	"github.com/shreyanshxt/FinSight/signal"
	"github.com/shreyanshxt/FinSight/sim"
	"github.com/shreyanshxt/FinSight/strategy"
)

func fail(c *gin.Context, status int, err error) {
	_ = c.Error(err)
	c.JSON(status, gin.H{"error": err.Error()})
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "FinSight Agent"})
}

type positionView struct {
	Symbol string `json:"symbol"`
	broker.Position
}

func (s *Server) account(c *gin.Context) {
	ctx := c.Request.Context()
	s.d.Broker.MaybeRefreshPrices()

	snap, err := s.d.Broker.Snapshot(ctx)
	if err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}
	orders, err := s.d.Broker.OpenOrders(ctx)
	if err != nil {
		logger.Warn("api: open orders unavailable: %v", err)
		orders = []broker.OpenOrder{}
	}

	positions := make([]positionView, 0, len(snap.Positions))
	for sym, p := range snap.Positions {
		if meta, ok := snap.Agent.Positions[sym]; ok {
			if p.StopLoss == 0 {
				p.StopLoss = meta.StopLoss
			}
			if p.RiskScore == 0 {
				p.RiskScore = meta.RiskScore
			}
		}
		positions = append(positions, positionView{Symbol: sym, Position: p})
	}
	sort.Slice(positions, func(i, j int) bool { return positions[i].Symbol < positions[j].Symbol })

	c.JSON(http.StatusOK, gin.H{
		"status":          "active",
		"mode":            s.d.Broker.Mode(),
		"equity":          snap.Equity,
		"buying_power":    snap.BuyingPower,
		"cash":            snap.Cash,
		"currency":        snap.Currency,
		"agent_portfolio": snap.Agent,
		"positions":       positions,
		"pending_orders":  orders,
	})
}

type tradeRequest struct {
	Ticker   string `json:"ticker" binding:"required"`
	Qty      int64  `json:"qty" binding:"required,gt=0"`
	Side     string `json:"side" binding:"required"`
	Strategy string `json:"strategy"`
}

func (s *Server) trade(c *gin.Context) {
	var req tradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	side := broker.Side(strings.ToLower(strings.TrimSpace(req.Side)))
	if !side.Valid() {
		fail(c, http.StatusBadRequest, errors.New("side must be buy or sell"))
		return
	}
	gate, err := strategy.Parse(req.Strategy)
	if err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	ctx := c.Request.Context()
	symbol := strings.ToUpper(strings.TrimSpace(req.Ticker))
	logger.Info("api: executing %s %s for %d shares of %s", gate, side, req.Qty, symbol)

	if gate != strategy.Market {
		snap, err := s.d.Oracle.Snapshot(ctx, symbol)
		if err != nil {
			fail(c, http.StatusInternalServerError, err)
			return
		}
		in := strategy.Input{Side: side, Price: snap.Price, Indicators: snap.Indicators}
		if gate.NeedsSignal() {
			in.Signal = s.recommend(ctx, "", signal.Request{Symbol: symbol, Market: snap}).Signal
		}
		if d := strategy.Evaluate(gate, in); !d.Allowed {
			c.JSON(http.StatusOK, gin.H{"status": "rejected", "reason": d.Reason()})
			return
		}
	}

	fill, err := s.d.Broker.ExecuteTrade(ctx, broker.Order{
		Symbol: symbol,
		Qty:    req.Qty,
		Side:   side,
		Source: broker.SourceManual,
	})
	if err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}
	if !fill.Filled() {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"status": "rejected",
			"kind":   fill.Rejection.Kind,
			"reason": fill.Rejection.Reason,
			"fill":   fill,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "mode": fill.Mode, "fill": fill})
}

func (s *Server) trades(c *gin.Context) {
	recs, err := s.d.Journal.Trades()
	if err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}
	if recs == nil {
		recs = []journal.TradeRecord{}
	}
	c.JSON(http.StatusOK, recs)
}

func (s *Server) performance(c *gin.Context) {
	samples, err := s.d.Journal.Equity()
	if err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}
	if samples == nil {
		samples = []journal.EquitySample{}
	}
	c.JSON(http.StatusOK, samples)
}

func (s *Server) marketStatus(c *gin.Context) {
	symbol := strings.ToUpper(strings.TrimSpace(c.Param("ticker")))
	snap, err := s.d.Oracle.Snapshot(c.Request.Context(), symbol)
	if err != nil {
		fail(c, marketStatusCode(err), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ticker":     symbol,
		"price":      snap.Price,
		"change":     snap.ChangePercent,
		"indicators": snap.Indicators,
	})
}

func marketStatusCode(err error) int {
	if errors.Is(err, market.ErrNoData) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

type analyzeRequest struct {
	Ticker string `json:"ticker" binding:"required"`
	Model  string `json:"model"`
}

func (s *Server) analyze(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	ctx := c.Request.Context()
	symbol := strings.ToUpper(strings.TrimSpace(req.Ticker))

	snap, err := s.d.Oracle.Snapshot(ctx, symbol)
	if err != nil {
		fail(c, marketStatusCode(err), err)
		return
	}
	rec := s.recommend(ctx, req.Model, signal.Request{Symbol: symbol, Market: snap})

	c.JSON(http.StatusOK, gin.H{
		"ticker":    symbol,
		"signal":    rec.Signal,
		"reasoning": rec.Reasoning,
		"market_data_summary": gin.H{
			"price":      snap.Price,
			"change":     snap.ChangePercent,
			"change_abs": snap.ChangeAbsolute,
		},
		"raw_analysis": gin.H{
			"signal":        rec.Signal,
			"risk_score":    rec.RiskScore,
			"stop_loss":     rec.StopLoss,
			"reasoning":     rec.Reasoning,
			"decoder":       rec.Decoder,
			"model":         rec.Model,
			"indicators":    snap.Indicators,
			"price_history": snap.Closes(),
		},
	})
}

// recommend asks the named model, or the agent's configured one when model
// is empty. Failures come back as a HOLD recommendation.
func (s *Server) recommend(ctx context.Context, model string, req signal.Request) signal.Recommendation {
	if model == "" {
		model = s.d.AgentConfig.Load().Model
	}
	src, err := s.d.Signals.Get(ctx, model)
	if err != nil {
		return signal.Failed(err)
	}
	rec, err := src.Recommend(ctx, req)
	if err != nil {
		logger.Warn("api: analysis of %s with %s failed: %v", req.Symbol, model, err)
		return signal.Failed(err)
	}
	return rec
}

type allocationRequest struct {
	Amount *float64 `json:"amount" binding:"required"`
}

func (s *Server) setAllocation(c *gin.Context) {
	var req allocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	acct, err := s.d.Broker.SetAgentAllocation(c.Request.Context(), *req.Amount)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, sim.ErrInvalidAmount) {
			status = http.StatusBadRequest
		}
		fail(c, status, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "allocated": acct.Allocated, "agent_portfolio": acct})
}

func (s *Server) agentConfig(c *gin.Context) {
	c.JSON(http.StatusOK, s.d.AgentConfig.Load())
}

func (s *Server) updateAgentConfig(c *gin.Context) {
	var patch config.AgentPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	if err := patch.Validate(); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	cfg, err := s.d.AgentConfig.Update(patch)
	if err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "config": cfg})
}

func (s *Server) runAgent(c *gin.Context) {
	if s.d.Engine == nil {
		fail(c, http.StatusServiceUnavailable, errors.New("decision engine is not running"))
		return
	}
	symbol := strings.ToUpper(strings.TrimSpace(c.Param("ticker")))
	c.JSON(http.StatusOK, s.d.Engine.RunOnce(c.Request.Context(), symbol))
}

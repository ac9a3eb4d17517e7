// Package metrics exposes FinSight's prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	tradesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finsight_trades_total",
			Help: "Trades submitted to the ledger by outcome",
		},
		[]string{"mode", "side", "source", "status"},
	)

	rejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finsight_trade_rejections_total",
			Help: "Rejected trades by reason kind",
		},
		[]string{"kind"},
	)

	equity = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "finsight_equity",
			Help: "Latest equity per book",
		},
		[]string{"book"},
	)

	refreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finsight_price_refresh_total",
			Help: "Position price refresh attempts per symbol",
		},
		[]string{"result"},
	)

	decisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finsight_agent_decisions_total",
			Help: "Decision engine terminal states per ticker",
		},
		[]string{"symbol", "terminal"},
	)

	signalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finsight_signals_total",
			Help: "Signals produced by model and decoder path",
		},
		[]string{"model", "signal", "decoder"},
	)

	cycleSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "finsight_agent_cycle_seconds",
			Help:    "Duration of one full watchlist pass",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300},
		},
	)
)

func RecordTrade(mode, side, source, status string) {
	tradesTotal.WithLabelValues(mode, side, source, status).Inc()
}

func RecordRejection(kind string) {
	rejectionsTotal.WithLabelValues(kind).Inc()
}

func SetEquity(book string, v float64) {
	equity.WithLabelValues(book).Set(v)
}

func RecordRefresh(result string) {
	refreshTotal.WithLabelValues(result).Inc()
}

func RecordDecision(symbol, terminal string) {
	decisionsTotal.WithLabelValues(symbol, terminal).Inc()
}

func RecordSignal(model, signal, decoder string) {
	signalsTotal.WithLabelValues(model, signal, decoder).Inc()
}

func ObserveCycle(seconds float64) {
	cycleSeconds.Observe(seconds)
}

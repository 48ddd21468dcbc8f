// Package metrics carries the backtest engine's prometheus instrumentation,
// extended from the teacher's original order/equity counters with the
// fill, rejection, drawdown, and slippage series the event-driven loop
// now emits.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	OrdersSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backtestgo_orders_submitted_total",
			Help: "Total number of orders submitted, by symbol.",
		},
		[]string{"symbol"},
	)

	OrdersRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backtestgo_orders_rejected_total",
			Help: "Total number of orders rejected by the risk manager, by reason.",
		},
		[]string{"reason"},
	)

	FillsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backtestgo_fills_total",
			Help: "Total number of fills executed, by symbol and side.",
		},
		[]string{"symbol", "side"},
	)

	PositionsOpen = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "backtestgo_positions_open",
			Help: "Current number of open (non-flat) positions.",
		},
		[]string{"symbol"},
	)

	EquityGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "backtestgo_equity",
			Help: "Current mark-to-market equity of the portfolio.",
		},
	)

	DrawdownGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "backtestgo_drawdown",
			Help: "Current decline from the equity recorded at the trading day's first tick, as a fraction.",
		},
	)

	SlippageFraction = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "backtestgo_slippage_fraction",
			Help:    "Distribution of estimated slippage fraction applied to fills.",
			Buckets: prometheus.LinearBuckets(0, 0.0005, 20),
		},
	)
)

func init() {
	prometheus.MustRegister(
		OrdersSubmitted,
		OrdersRejected,
		FillsTotal,
		PositionsOpen,
		EquityGauge,
		DrawdownGauge,
		SlippageFraction,
	)
}

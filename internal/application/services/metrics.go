package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	suggestedActionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rebalancer_suggested_actions_total",
			Help: "Suggested rebalance actions by chain and type",
		},
		[]string{"chain", "type"},
	)

	stageDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rebalancer_stage_decisions_total",
			Help: "Stage decisions by applied rule",
		},
		[]string{"rule"},
	)

	alertsTriggeredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alerts_triggered_total",
			Help: "Alert rules fired by type",
		},
		[]string{"type"},
	)
)

// OracleMetrics holds Prometheus metrics for the price oracle
type OracleMetrics struct {
	Observations *prometheus.CounterVec
	Errors       prometheus.Counter
	LastPrice    *prometheus.GaugeVec
	PollLatency  prometheus.Histogram
}

// NewOracleMetrics registers oracle metrics with reg. Passing nil uses
// the default registerer.
func NewOracleMetrics(reg prometheus.Registerer) *OracleMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &OracleMetrics{
		Observations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "oracle_observations_total",
			Help: "Total number of price observations stored",
		}, []string{"asset"}),
		Errors: factory.NewCounter(prometheus.CounterOpts{
			Name: "oracle_errors_total",
			Help: "Total number of oracle poll errors",
		}),
		LastPrice: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "oracle_last_price_usd",
			Help: "Last observed USD price per asset",
		}, []string{"asset"}),
		PollLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "oracle_poll_latency_seconds",
			Help:    "Time taken to poll all price feeds",
			Buckets: []float64{.1, .5, 1, 2.5, 5, 10, 30, 60},
		}),
	}
}

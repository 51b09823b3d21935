package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// MatchesSettled counts successfully settled order pairs
var MatchesSettled = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "settled_matches_total",
		Help: "Total number of order pairs settled by the engine",
	},
)

// MatchesRejected counts rejected match submissions by failure reason
var MatchesRejected = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "settled_matches_rejected_total",
		Help: "Total number of rejected match submissions by reason",
	},
	[]string{"reason"},
)

// MatchLatency records latency distribution for settlement processing
var MatchLatency = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "settled_match_latency_seconds",
		Help:    "Latency in seconds to settle an order pair",
		Buckets: prometheus.DefBuckets,
	},
)

// Ledger movement metrics
var (
	Deposits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settled_deposits_total",
			Help: "Total number of ledger deposits by token",
		},
		[]string{"token"},
	)

	Withdrawals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settled_withdrawals_total",
			Help: "Total number of ledger withdrawals by token",
		},
		[]string{"token"},
	)
)

func init() {
	prometheus.MustRegister(MatchesSettled, MatchesRejected, MatchLatency)
	prometheus.MustRegister(Deposits, Withdrawals)
}

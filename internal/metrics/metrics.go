package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crabfarm_operations_total",
			Help: "Total number of engine operations",
		},
		[]string{"operation", "status"},
	)

	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crabfarm_operation_duration_seconds",
			Help:    "Duration of engine operations",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14), // 0.1ms to ~1.6s
		},
		[]string{"operation"},
	)

	RewardPaidTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crabfarm_reward_paid_total",
			Help: "Reward token paid out, in base units",
		},
		[]string{"pool"},
	)

	RewardMintedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crabfarm_reward_minted_total",
			Help: "Reward token minted to pools, in base units",
		},
		[]string{"pool"},
	)

	UnderfundedPayoutsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crabfarm_underfunded_payouts_total",
			Help: "Reward payouts capped by the engine's reward balance",
		},
		[]string{"pool"},
	)

	StrategyShortfallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crabfarm_strategy_shortfalls_total",
			Help: "Withdrawals clamped because the strategy returned less than entitled",
		},
		[]string{"pool", "strategy"},
	)

	TotalSharesSupply = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "crabfarm_pool_total_shares",
			Help: "Total shares supply per pool",
		},
		[]string{"pool"},
	)

	PoolsRegistered = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "crabfarm_pools_registered",
			Help: "Number of registered pools",
		},
	)

	SnapshotsRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crabfarm_snapshots_recorded_total",
			Help: "Pool snapshot runs",
		},
		[]string{"status"},
	)
)

var (
	FeesDistributedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crabfarm_fees_distributed_total",
			Help: "Reward token produced by fee distribution, in base units",
		},
		[]string{"asset"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crabfarm_http_requests_total",
			Help: "HTTP requests served",
		},
		[]string{"method", "route", "status"},
	)
)

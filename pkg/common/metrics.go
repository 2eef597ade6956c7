package common

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SimulationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "userop_simulator_simulations_total",
		Help: "Total number of simulation requests",
	}, []string{"operation", "status"})

	SimulationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "userop_simulator_simulation_duration_seconds",
		Help:    "Time taken to serve a simulation request",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 15),
	}, []string{"operation"})

	BulkItemsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "userop_simulator_bulk_items_total",
		Help: "Total number of items simulated through bulk requests",
	}, []string{"operation", "status"})

	GateFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "userop_simulator_gate_failures_total",
		Help: "Total number of operations rejected by the validation gate pre-checks",
	}, []string{"reason"})

	TrialsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "userop_simulator_trials_total",
		Help: "Total number of dry-run trials",
	}, []string{"status"})

	TrialGasUsed = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "userop_simulator_trial_gas_used",
		Help:    "Gas charged to the estimator per dry-run trial",
		Buckets: prometheus.ExponentialBuckets(1000, 2, 16),
	})

	ReplayItemsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "userop_simulator_replay_items_total",
		Help: "Total number of queued operations replayed before an estimation",
	}, []string{"stage", "status"})

	SearchIterations = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "userop_simulator_search_iterations",
		Help:    "Number of bisection trials per gas search",
		Buckets: prometheus.LinearBuckets(0, 4, 12),
	}, []string{"operation"})

	SearchExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "userop_simulator_search_exhausted_total",
		Help: "Total number of gas searches aborted because the estimator ran out of gas",
	}, []string{"operation"})

	EstimatedGas = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "userop_simulator_estimated_gas",
		Help:    "Gas limits returned by the binary search",
		Buckets: prometheus.ExponentialBuckets(1000, 2, 16),
	}, []string{"operation"})
)

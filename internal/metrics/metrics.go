package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AttemptsTotal tracks evaluation attempts per credential and result class
	AttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ragtrial_attempts_total",
			Help: "Total number of evaluation attempts",
		},
		[]string{"credential", "result"},
	)

	// RotationsTotal tracks credential rotations caused by rate limiting
	RotationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ragtrial_credential_rotations_total",
			Help: "Total number of credential rotations",
		},
	)

	// BackoffSeconds tracks time spent waiting between attempts
	BackoffSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ragtrial_backoff_seconds",
			Help:    "Backoff wait between attempts in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		},
	)

	// TrialsTotal tracks finished trials per outcome
	TrialsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ragtrial_trials_total",
			Help: "Total number of finished trials",
		},
		[]string{"outcome", "evaluator"},
	)

	// TrialDuration tracks trial wall time including backoff
	TrialDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ragtrial_trial_duration_seconds",
			Help:    "Trial duration in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 14),
		},
		[]string{"evaluator"},
	)

	// ActiveCredentialIndex tracks the pool position of the active credential
	ActiveCredentialIndex = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ragtrial_active_credential_index",
			Help: "Index of the active credential in the pool",
		},
	)

	// LedgerErrorsTotal tracks failures writing trial records
	LedgerErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ragtrial_ledger_errors_total",
			Help: "Total number of trial ledger write errors",
		},
		[]string{"backend"},
	)

	// LedgerPoolUsage tracks postgres connection pool usage percentage
	LedgerPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ragtrial_ledger_pool_usage_percent",
			Help: "Trial ledger database connection pool usage",
		},
	)
)

package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Cluster-wide gauges, refreshed once per monitor iteration.

	NodesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "recoverd_nodes_total",
			Help: "Number of nodes known to the local node map, by flag state",
		},
		[]string{"state"},
	)

	IsRecoveryMaster = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "recoverd_is_recovery_master",
			Help: "Whether this node currently believes it is the recovery master (1) or not (0)",
		},
	)

	CurrentGeneration = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "recoverd_generation",
			Help: "Generation id of the current VNN map",
		},
	)

	VNNMapSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "recoverd_vnnmap_size",
			Help: "Number of entries in the current VNN map",
		},
	)

	// Election metrics.

	ElectionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "recoverd_elections_total",
			Help: "Total number of elections this node has broadcast",
		},
	)

	ElectionsWonTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "recoverd_elections_won_total",
			Help: "Total number of elections this node has won",
		},
	)

	ElectionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "recoverd_election_duration_seconds",
			Help:    "Time from broadcasting an election to the election timer settling",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Recovery metrics.

	RecoveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recoverd_recoveries_total",
			Help: "Total number of recovery runs, by outcome",
		},
		[]string{"outcome"}, // "committed", "aborted"
	)

	RecoveryDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "recoverd_recovery_duration_seconds",
			Help:    "Wall-clock duration of a full recovery run (phases 0-11)",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
	)

	RecoveryPhaseDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recoverd_recovery_phase_duration_seconds",
			Help:    "Duration of an individual recovery phase",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"phase"},
	)

	DatabasesRecovered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "recoverd_databases_recovered_total",
			Help: "Total number of per-database recoveries (pull/wipe/push) performed",
		},
	)

	// Takeover metrics.

	TakeoverRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recoverd_takeover_runs_total",
			Help: "Total number of takeover runs, by outcome",
		},
		[]string{"outcome"}, // "success", "failure"
	)

	TakeoverRunDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "recoverd_takeover_run_duration_seconds",
			Help:    "Duration of a takeover run",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Ban metrics.

	BansTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "recoverd_bans_total",
			Help: "Total number of bans issued by this node as master",
		},
	)

	SelfBansTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "recoverd_self_bans_total",
			Help: "Total number of times this node has banned itself",
		},
	)

	BanCredits = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "recoverd_ban_credits",
			Help: "Current culprit credits held against a peer, by pnn",
		},
		[]string{"pnn"},
	)

	// Control RPC metrics.

	RPCFanOutDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recoverd_rpc_fanout_duration_seconds",
			Help:    "Duration of a Control RPC fan-out call, by operation",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	RPCFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recoverd_rpc_failures_total",
			Help: "Total number of per-target Control RPC failures, by operation",
		},
		[]string{"op"},
	)

	// Gate metrics.

	GateDisabledTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recoverd_gate_disabled_total",
			Help: "Total number of times an operation gate was disabled, by gate name",
		},
		[]string{"gate"},
	)

	// Monitor loop metrics.

	MonitorIterationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "recoverd_monitor_iterations_total",
			Help: "Total number of completed monitor-loop iterations",
		},
	)

	MonitorIterationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "recoverd_monitor_iteration_duration_seconds",
			Help:    "Duration of a single monitor-loop iteration",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(
		NodesTotal,
		IsRecoveryMaster,
		CurrentGeneration,
		VNNMapSize,
		ElectionsTotal,
		ElectionsWonTotal,
		ElectionDuration,
		RecoveriesTotal,
		RecoveryDuration,
		RecoveryPhaseDuration,
		DatabasesRecovered,
		TakeoverRunsTotal,
		TakeoverRunDuration,
		BansTotal,
		SelfBansTotal,
		BanCredits,
		RPCFanOutDuration,
		RPCFailuresTotal,
		GateDisabledTotal,
		MonitorIterationsTotal,
		MonitorIterationDuration,
	)
}

// Handler returns the Prometheus HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

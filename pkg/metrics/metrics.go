package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Token registry metrics
	TokensTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ingestcp_tokens_total",
			Help: "Total number of ingestion tokens by status",
		},
		[]string{"status"},
	)

	TeamsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ingestcp_teams_total",
			Help: "Total number of teams",
		},
	)

	ShardsOccupied = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ingestcp_shards_occupied",
			Help: "Number of shards with at least one active token assigned",
		},
	)

	ShardsExhaustedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ingestcp_shards_exhausted_total",
			Help: "Total number of allocation attempts that found no free shard",
		},
	)

	// Raft metrics
	RaftLeader = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ingestcp_raft_is_leader",
			Help: "Whether this replica is the Raft leader (1 = leader, 0 = follower)",
		},
	)

	RaftAppliedIndex = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ingestcp_raft_applied_index",
			Help: "Last applied Raft log index",
		},
	)

	RaftApplyDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ingestcp_raft_apply_duration_seconds",
			Help:    "Time taken to apply a Raft log entry in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingestcp_api_requests_total",
			Help: "Total number of control-plane API requests by route and status",
		},
		[]string{"route", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ingestcp_api_request_duration_seconds",
			Help:    "Control-plane API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	// Provisioning metrics
	ProvisioningDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ingestcp_provisioning_duration_seconds",
			Help:    "Time taken to provision a tenant's storage in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	ProvisioningFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ingestcp_provisioning_failures_total",
			Help: "Total number of tenant storage provisioning failures",
		},
	)

	// OpAMP metrics
	AgentsConnected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ingestcp_opamp_agents_connected",
			Help: "Number of collector instances with a heartbeat inside the inactivity TTL",
		},
	)

	OpAMPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingestcp_opamp_requests_total",
			Help: "Total number of OpAMP requests by outcome",
		},
		[]string{"outcome"},
	)

	OpAMPRequestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ingestcp_opamp_request_duration_seconds",
			Help:    "OpAMP request handling duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	ConfigSynthesisTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingestcp_config_synthesis_total",
			Help: "Total number of collector configs synthesized, by kind",
		},
		[]string{"kind"}, // "nop" or "tenant"
	)
)

func init() {
	prometheus.MustRegister(
		TokensTotal,
		TeamsTotal,
		ShardsOccupied,
		ShardsExhaustedTotal,
		RaftLeader,
		RaftAppliedIndex,
		RaftApplyDuration,
		APIRequestsTotal,
		APIRequestDuration,
		ProvisioningDuration,
		ProvisioningFailuresTotal,
		AgentsConnected,
		OpAMPRequestsTotal,
		OpAMPRequestDuration,
		ConfigSynthesisTotal,
	)
}

// Handler returns the Prometheus HTTP handler.
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
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

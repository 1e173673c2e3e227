/*
Package metrics defines and registers the control plane's Prometheus
metrics and exposes the /metrics scrape endpoint via promhttp.

Metrics are grouped by the component that owns them: token registry
(TokensTotal, TeamsTotal, ShardsOccupied, ShardsExhaustedTotal), Raft
(RaftLeader, RaftAppliedIndex, RaftApplyDuration), the tenant API
(APIRequestsTotal, APIRequestDuration), provisioning
(ProvisioningDuration, ProvisioningFailuresTotal), and OpAMP
(AgentsConnected, OpAMPRequestsTotal, OpAMPRequestDuration,
ConfigSynthesisTotal). All are registered once, in init(), against the
default Prometheus registry.

Timer is a small helper for the common "start a clock, observe the
elapsed duration into a histogram" pattern:

	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.OpAMPRequestDuration)

ObserveDurationVec does the same against a labeled histogram, for call
sites that need a per-route or per-outcome breakdown.

See pkg/metrics/health.go for the separate liveness/readiness surface
(not Prometheus metrics, but consulted by the same operators).
*/
package metrics

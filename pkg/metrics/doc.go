/*
Package metrics defines and registers the Prometheus metrics exposed by
recoverd: node counts, election and recovery outcomes, ban credits, gate
state, and Control RPC fan-out latency. All metrics are registered at
package init against the default Prometheus registry and served over
HTTP via Handler(), which callers mount at /metrics.

Metric families line up with the recovery coordinator's components: one
gauge/counter/histogram group per component in the monitor loop, so a
dashboard built from these names reads like the state machine in the
design document.
*/
package metrics

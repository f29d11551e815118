/*
Package monitor implements the coordinator's main loop: the 26-step
iteration that probes the local data daemon, refreshes cluster state,
runs elections, triggers recovery and takeover, and enforces the
invariants validate_master and verify_recmaster check on every pass.

Coordinator owns the long-lived subsystems (the node registry, the
election engine, the ban bookkeeper, the recovery and takeover gates,
the message dispatcher) and reaches every piece of network or
local-daemon state through an injected Callbacks struct, the same
decoupling idiom used by pkg/recovery and pkg/takeover.
*/
package monitor

/*
Package takeover coordinates public-IP takeover runs: a gated,
strictly serialized operation that hands the external Takeover Runner
the current node map and the set of nodes pending a forced rebalance,
disables takeover runs on every peer for the duration of the run, and
re-enables them afterward regardless of outcome.

Coordinator guarantees the gate is released on every return path —
including a panic recovered inside the run — since a stuck gate would
permanently block every future takeover on this node.
*/
package takeover

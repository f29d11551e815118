/*
Package recovery implements the database recovery engine: the
twelve-phase sequence the master runs to bring every node's databases,
generation, and VNN map back into agreement after an election, a
detected divergence, or an outright failure.

Engine orchestrates the phases and owns their ordering and abort
semantics; the network operations each phase needs (freeze, transaction
control, pull/push, and so on) are supplied as Callbacks so this
package stays free of any Control RPC or transport dependency. Merge
and PreparePush are the two pure functions at the heart of phase 5 —
the per-database pull/push round trip — and carry their own, more
thorough test coverage since they encode the data-loss-sensitive part
of the engine.
*/
package recovery

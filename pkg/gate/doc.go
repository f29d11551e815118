/*
Package gate implements the operation gate: a reusable disable-with-
timeout / in-progress latch used as the sole admission control for
coarse, mutually exclusive operations (database recovery, a takeover
run). No code path anywhere in recoverd may start one of these
operations while its gate is disabled or already in progress.
*/
package gate

/*
Package client is the CLI-facing admin client for a running recoverd
process: `recoverd status`, `recoverd ban`, `recoverd recover`, and
`recoverd events` all go through it.

It is a thin typed wrapper over pkg/rpc's Control RPC transport, talking
to the admin operations (STATUS, ADMIN_BAN, FORCE_ELECTION, EVENTS)
pkg/dispatch registers on the same gRPC server the cluster's peers use
for their own inter-node calls — the CLI is simply another caller of
the same Dispatch method, with its own small set of ops.
*/
package client

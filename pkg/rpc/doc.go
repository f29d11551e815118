/*
Package rpc implements the Control RPC client used to reach every other
node in the cluster: a single fan_out operation that dispatches a
payload to a set of targets concurrently, invokes a success or failure
callback exactly once per target, and waits for every target to finish
or time out before returning an aggregate result.

There is no generated service stub: targets are addressed by a bare
method name carried inside a JSON envelope, dispatched through a
hand-built grpc.ServiceDesc whose single method decodes the envelope
and routes it to a registered Go func(context.Context, []byte)
handler. This keeps the wire format stable while the set of dispatched
operations grows, without a .proto toolchain step. The client has no
knowledge of recovery, election, or takeover semantics — it only moves
bytes and reports per-target success or failure.
*/
package rpc

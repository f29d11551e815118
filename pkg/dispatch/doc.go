/*
Package dispatch routes inbound Control RPC operations to the
coordinator's domain packages. Every handler is non-blocking: it either
updates cached state for the next monitor iteration to act on, or
issues a single reply, and never calls into recovery or takeover
synchronously from within a handler.
*/
package dispatch

/*
Package events provides an in-memory pub/sub broker used to surface
coordinator state transitions (elections, recoveries, bans, takeover
runs) to anything watching the process — the CLI's `recoverd events`
command, an operator's log shipper, or a test asserting on behavior
without reaching into coordinator internals.

Publish never blocks the publisher; a full subscriber buffer drops the
event for that subscriber rather than stalling the monitor loop.
*/
package events

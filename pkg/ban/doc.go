/*
Package ban implements the ban bookkeeper: per-node culprit credit
accounting, grace-period decay, and the ban threshold that converts
accumulated credits into a timed ban. A node's own credits are tracked
the same way as any peer's, so that the monitor loop can detect and act
on a self-ban.
*/
package ban

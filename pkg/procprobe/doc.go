// Package procprobe checks whether the local data daemon is still alive
// by sending it signal 0, the first step of every monitor-loop iteration.
// A missing or exited process is reported as not-alive rather than as
// an error, since that is the expected shape of the daemon having gone
// away.
package procprobe

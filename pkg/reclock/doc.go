/*
Package reclock defines the Recovery Lock interface used to arbitrate
master identity across the cluster: try-acquire, release, and an
is-held probe used to detect a master that has silently lost its lock.

FileLock implements it over a single lock file shared by every node via
the cluster's shared storage, using an exclusive, non-blocking flock(2).
A lock held by the master's process is automatically released if that
process dies, which is exactly the failure signal the recovery lock
arbiter needs.
*/
package reclock

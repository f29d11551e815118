package reclock

// Lock is the external Recovery Lock interface: a cluster-wide
// exclusive lock used to arbitrate which node believes it is master.
type Lock interface {
	// TryAcquire attempts a non-blocking exclusive acquire. It returns
	// false, not an error, on contention — only unexpected I/O failures
	// are reported as errors.
	TryAcquire() (acquired bool, err error)

	// Release releases a lock previously acquired by this instance. It
	// is safe to call even if the lock was never acquired.
	Release() error

	// IsHeld re-probes the external lock and reports whether this
	// instance's acquisition is still valid. It is independent of the
	// caller's own belief, so the caller can detect having silently
	// lost the lock even though it never called Release.
	IsHeld() bool
}

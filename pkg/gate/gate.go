package gate

import (
	"sync"
	"time"
)

// Gate is a disable-with-timeout / in-progress latch. The zero value is
// a ready-to-use, enabled, not-in-progress gate.
//
// Invariant: inProgress implies disabled is not set — a gate
// cannot be disabled while an operation is in progress.
type Gate struct {
	mu         sync.Mutex
	inProgress bool
	timer      *time.Timer
	disabled   bool
}

// New returns a new, enabled, not-in-progress gate.
func New() *Gate {
	return &Gate{}
}

// Begin attempts to start the gated operation. It fails if the gate is
// currently disabled or already in progress, and succeeds otherwise,
// marking the gate in-progress. Callers must pair every successful
// Begin with exactly one End, ideally via a deferred call acquired at
// the same call site so that End runs on every return path.
func (g *Gate) Begin() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.disabled || g.inProgress {
		return false
	}
	g.inProgress = true
	return true
}

// End clears the in-progress flag. It is safe to call even if Begin was
// never called or already returned false.
func (g *Gate) End() {
	g.mu.Lock()
	g.inProgress = false
	g.mu.Unlock()
}

// IsInProgress reports whether the gated operation is currently running.
func (g *Gate) IsInProgress() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inProgress
}

// IsDisabled reports whether a live disable timer exists.
func (g *Gate) IsDisabled() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.disabled
}

// Disable prevents Begin from succeeding for timeoutSeconds seconds. A
// timeout of 0 is equivalent to Enable. Disable fails with false if the
// operation is currently in progress. Calling Disable again before the
// previous timer fires cancels and replaces it.
func (g *Gate) Disable(timeoutSeconds float64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if timeoutSeconds <= 0 {
		g.cancelTimerLocked()
		g.disabled = false
		return true
	}

	if g.inProgress {
		return false
	}

	g.cancelTimerLocked()
	g.disabled = true
	g.timer = time.AfterFunc(time.Duration(timeoutSeconds*float64(time.Second)), func() {
		g.mu.Lock()
		g.disabled = false
		g.timer = nil
		g.mu.Unlock()
	})
	return true
}

// Enable clears any disable timer immediately.
func (g *Gate) Enable() {
	g.mu.Lock()
	g.cancelTimerLocked()
	g.disabled = false
	g.mu.Unlock()
}

func (g *Gate) cancelTimerLocked() {
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
}

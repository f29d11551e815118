package election

import (
	"context"
	"sync"
	"time"

	"github.com/cuemby/recoverd/pkg/types"
)

// DefaultDebounce is the delay the engine waits, after hearing a losing
// election message, before rebroadcasting its own — long enough to
// coalesce several near-simultaneous challengers into a single reply.
const DefaultDebounce = 500 * time.Millisecond

// MessageFunc returns the caller's current election message: its
// connection count, priority time, flags, and RECMASTER capability as
// they stand right now, not a stale snapshot from when the election
// started.
type MessageFunc func() types.ElectionMessage

// Callbacks are invoked by the engine as an election proceeds. None of
// them are called while the engine's internal lock is held, so they
// may safely call back into the engine (for example Receive from a
// dispatcher goroutine).
type Callbacks struct {
	// Broadcast sends msg to every connected node. Required.
	Broadcast func(ctx context.Context, msg types.ElectionMessage)

	// Concede is called when a received message beats the local key.
	// winner is the sender's PNN. Typically releases the recovery lock
	// and clears any held IP-assignment state.
	Concede func(ctx context.Context, winner types.PNN, msg types.ElectionMessage)

	// Settled is called when the election-timeout timer fires with no
	// further messages received. believedMaster is whichever PNN this
	// node currently records as master — itself, if it won.
	Settled func(ctx context.Context, believedMaster types.PNN)
}

// Engine runs one node's side of the election protocol. The zero value
// is not usable; construct with New.
type Engine struct {
	localPNN PNN
	msgFn    MessageFunc
	cb       Callbacks

	electionTimeout time.Duration
	fastStart       time.Duration
	debounce        time.Duration

	mu             sync.Mutex
	believedMaster types.PNN
	electionTimer  *time.Timer
	debounceTimer  *time.Timer
}

// PNN is a local alias kept solely so this file reads naturally; it is
// exactly types.PNN.
type PNN = types.PNN

// New returns an Engine for localPNN. electionTimeout is the normal
// settle delay; fastStart is the shorter delay used immediately after
// process startup, before the cluster has had a chance to stabilize.
func New(localPNN PNN, electionTimeout, fastStart time.Duration, msgFn MessageFunc, cb Callbacks) *Engine {
	return &Engine{
		localPNN:        localPNN,
		msgFn:           msgFn,
		cb:              cb,
		electionTimeout: electionTimeout,
		fastStart:       fastStart,
		debounce:        DefaultDebounce,
		believedMaster:  types.UnknownPNN,
	}
}

// BelievedMaster returns the PNN this engine currently records as
// master, or types.UnknownPNN if no election has completed yet.
func (e *Engine) BelievedMaster() PNN {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.believedMaster
}

// InProgress reports whether the election-timeout timer is currently
// armed — an election is underway and has not yet settled.
func (e *Engine) InProgress() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.electionTimer != nil
}

// Start broadcasts the local node's own election message, optimistically
// records the local node as master, and arms the settle timer. Call on
// startup or whenever validate_master demands a fresh election; fast
// selects the shorter fast-start timeout.
func (e *Engine) Start(ctx context.Context, fast bool) {
	msg := e.msgFn()

	e.mu.Lock()
	e.believedMaster = e.localPNN
	e.cancelDebounceLocked()
	e.armElectionTimerLocked(ctx, fast)
	e.mu.Unlock()

	if e.cb.Broadcast != nil {
		e.cb.Broadcast(ctx, msg)
	}
}

// Receive processes an election message from another node. It always
// re-arms the settle timer; if the message does not beat the local
// key it debounces a rebroadcast of the local message, otherwise it
// concedes immediately.
func (e *Engine) Receive(ctx context.Context, sender types.ElectionMessage) {
	local := e.msgFn()
	wins := sender.Wins(local)

	e.mu.Lock()
	e.armElectionTimerLocked(ctx, false)

	if wins {
		e.believedMaster = sender.PNN
		e.cancelDebounceLocked()
		e.mu.Unlock()

		if e.cb.Concede != nil {
			e.cb.Concede(ctx, sender.PNN, sender)
		}
		return
	}

	e.believedMaster = e.localPNN
	e.armDebounceLocked(ctx)
	e.mu.Unlock()
}

// Stop cancels any pending timers, abandoning the current election
// round without invoking Settled or Concede. Used on shutdown.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cancelElectionTimerLocked()
	e.cancelDebounceLocked()
}

func (e *Engine) armElectionTimerLocked(ctx context.Context, fast bool) {
	e.cancelElectionTimerLocked()
	timeout := e.electionTimeout
	if fast {
		timeout = e.fastStart
	}
	e.electionTimer = time.AfterFunc(timeout, func() { e.onSettle(ctx) })
}

func (e *Engine) cancelElectionTimerLocked() {
	if e.electionTimer != nil {
		e.electionTimer.Stop()
		e.electionTimer = nil
	}
}

func (e *Engine) armDebounceLocked(ctx context.Context) {
	e.cancelDebounceLocked()
	e.debounceTimer = time.AfterFunc(e.debounce, func() { e.onDebounceFire(ctx) })
}

func (e *Engine) cancelDebounceLocked() {
	if e.debounceTimer != nil {
		e.debounceTimer.Stop()
		e.debounceTimer = nil
	}
}

func (e *Engine) onDebounceFire(ctx context.Context) {
	msg := e.msgFn()

	e.mu.Lock()
	e.debounceTimer = nil
	e.believedMaster = e.localPNN
	e.mu.Unlock()

	if e.cb.Broadcast != nil {
		e.cb.Broadcast(ctx, msg)
	}
}

func (e *Engine) onSettle(ctx context.Context) {
	e.mu.Lock()
	e.electionTimer = nil
	master := e.believedMaster
	e.mu.Unlock()

	if e.cb.Settled != nil {
		e.cb.Settled(ctx, master)
	}
}

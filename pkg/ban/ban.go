package ban

import (
	"sync"
	"time"

	"github.com/cuemby/recoverd/pkg/types"
)

// Ban is one decision produced by a Sweep: the named node accumulated
// enough credits to be banned for Period.
type Ban struct {
	PNN    types.PNN
	Period time.Duration
}

// Bookkeeper tracks per-node culprit credits and converts them into
// bans once a node crosses the threshold.
type Bookkeeper struct {
	mu          sync.Mutex
	state       map[types.PNN]types.BanState
	localPNN    types.PNN
	gracePeriod time.Duration
	banPeriod   time.Duration
}

// New returns an empty bookkeeper for the node identified by localPNN.
func New(localPNN types.PNN, gracePeriod, banPeriod time.Duration) *Bookkeeper {
	return &Bookkeeper{
		state:       make(map[types.PNN]types.BanState),
		localPNN:    localPNN,
		gracePeriod: gracePeriod,
		banPeriod:   banPeriod,
	}
}

// AssignCredits adds n culprit credits against pnn. It is a no-op when
// localInactive is true: a banned node must not ban peers. Credits
// decay to zero first if the grace period has elapsed since the last
// report.
func (b *Bookkeeper) AssignCredits(pnn types.PNN, n uint32, localInactive bool) {
	if localInactive {
		return
	}

	now := time.Now()

	b.mu.Lock()
	defer b.mu.Unlock()

	st := b.state[pnn]
	if !st.LastReport.IsZero() && now.Sub(st.LastReport) > b.gracePeriod {
		st.Credits = 0
	}
	st.Credits += n
	st.LastReport = now
	b.state[pnn] = st
}

// Credits returns the current credit count for pnn.
func (b *Bookkeeper) Credits(pnn types.PNN) uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state[pnn].Credits
}

// Sweep checks every tracked node against the ban threshold
// (2 x nodeCount) and returns the set of nodes to ban this iteration,
// resetting their credits. selfBanned reports whether the local node
// itself was among them, signaling the monitor loop to abort the
// current iteration rather than banning itself and continuing regardless.
func (b *Bookkeeper) Sweep(nodeCount int) (bans []Ban, selfBanned bool) {
	threshold := uint32(2 * nodeCount)
	if threshold == 0 {
		return nil, false
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for pnn, st := range b.state {
		if st.Credits < threshold {
			continue
		}
		bans = append(bans, Ban{PNN: pnn, Period: b.banPeriod})
		st.Credits = 0
		b.state[pnn] = st
		if pnn == b.localPNN {
			selfBanned = true
		}
	}
	return bans, selfBanned
}

// Forgive resets every tracked node's credits to zero, as done at the
// end of a successful recovery.
func (b *Bookkeeper) Forgive() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for pnn, st := range b.state {
		st.Credits = 0
		b.state[pnn] = st
	}
}

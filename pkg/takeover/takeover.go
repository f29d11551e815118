package takeover

import (
	"context"
	"sync"
	"time"

	"github.com/cuemby/recoverd/pkg/gate"
	"github.com/cuemby/recoverd/pkg/types"
)

// disablePeersTimeout is how long a takeover run asks every peer to
// hold off running its own takeover while this run is in flight.
const disablePeersTimeout = 60 * time.Second

// Runner performs the actual IP takeover/release work against the
// cluster's public-address assignments. It is opaque to Coordinator:
// Coordinator only knows it returns a per-node failure set.
type Runner interface {
	// Run assigns public IPs according to nodes, giving priority to the
	// PNNs in forceRebalance. It returns one error per node that failed
	// to apply its assignment; a nil map means every node succeeded.
	Run(ctx context.Context, nodes types.NodeMap, forceRebalance map[types.PNN]struct{}) (failures map[types.PNN]error, err error)
}

// Callbacks let Coordinator reach the rest of the node without
// depending on pkg/rpc or pkg/ban directly.
type Callbacks struct {
	// DisableTakeoverRunsOnPeers fire-and-forget broadcasts a request
	// that every peer disable its own takeover runs for timeout.
	DisableTakeoverRunsOnPeers func(ctx context.Context, timeout time.Duration)

	// EnableTakeoverRunsOnPeers fire-and-forget broadcasts a request
	// that every peer re-enable its own takeover runs immediately.
	EnableTakeoverRunsOnPeers func(ctx context.Context)

	// AssignCredits assigns n ban credits against pnn, used when
	// ban_on_fail is set and a node failed its takeover.
	AssignCredits func(pnn types.PNN, n uint32)
}

// Coordinator runs do_takeover_run: a gated, strictly serialized
// invocation of a Runner. The zero value is not usable; construct with
// New.
type Coordinator struct {
	gate   *gate.Gate
	runner Runner
	cb     Callbacks

	mu                sync.Mutex
	forceRebalance    map[types.PNN]struct{}
	needTakeoverRun   bool
	forceRebalanceGen uint64
}

// New returns a Coordinator driving runner through g.
func New(g *gate.Gate, runner Runner, cb Callbacks) *Coordinator {
	return &Coordinator{
		gate:           g,
		runner:         runner,
		cb:             cb,
		forceRebalance: make(map[types.PNN]struct{}),
	}
}

// RequestRebalance marks pnn for forced rebalance on the next takeover
// run. Safe to call concurrently with Run.
func (c *Coordinator) RequestRebalance(pnn types.PNN) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.forceRebalance[pnn] = struct{}{}
	c.forceRebalanceGen++
}

// NeedTakeoverRun reports whether the previous run failed and a retry
// is owed on the next monitor iteration.
func (c *Coordinator) NeedTakeoverRun() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.needTakeoverRun
}

// Run executes do_takeover_run against nodes. It refuses immediately,
// returning false, if the gate is already in progress or disabled.
// banOnFail, when true, assigns ban credits to every node the Runner
// reports as having failed.
//
// The gate is guaranteed to be released by the time Run returns or
// panics: End is deferred immediately after a successful Begin, inside
// a recover that re-panics after releasing, so a panicking Runner can
// never leave the gate stuck in-progress.
func (c *Coordinator) Run(ctx context.Context, nodes types.NodeMap, banOnFail bool) (ok bool) {
	if !c.gate.Begin() {
		return false
	}

	defer func() {
		c.gate.End()
		if r := recover(); r != nil {
			c.mu.Lock()
			c.needTakeoverRun = true
			c.mu.Unlock()
			panic(r)
		}
	}()

	if c.cb.DisableTakeoverRunsOnPeers != nil {
		c.cb.DisableTakeoverRunsOnPeers(ctx, disablePeersTimeout)
	}

	c.mu.Lock()
	forceRebalance := make(map[types.PNN]struct{}, len(c.forceRebalance))
	for pnn := range c.forceRebalance {
		forceRebalance[pnn] = struct{}{}
	}
	genBefore := c.forceRebalanceGen
	c.mu.Unlock()

	failures, err := c.runner.Run(ctx, nodes, forceRebalance)
	success := err == nil && len(failures) == 0

	if banOnFail && c.cb.AssignCredits != nil {
		for pnn := range failures {
			c.cb.AssignCredits(pnn, 1)
		}
	}

	if c.cb.EnableTakeoverRunsOnPeers != nil {
		c.cb.EnableTakeoverRunsOnPeers(ctx)
	}

	c.mu.Lock()
	if success && c.forceRebalanceGen == genBefore {
		c.forceRebalance = make(map[types.PNN]struct{})
	}
	c.needTakeoverRun = !success
	c.mu.Unlock()

	return success
}

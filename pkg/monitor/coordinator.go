package monitor

import (
	"context"
	"time"

	"github.com/cuemby/recoverd/pkg/ban"
	"github.com/cuemby/recoverd/pkg/dispatch"
	"github.com/cuemby/recoverd/pkg/election"
	"github.com/cuemby/recoverd/pkg/gate"
	"github.com/cuemby/recoverd/pkg/reclock"
	"github.com/cuemby/recoverd/pkg/registry"
	"github.com/cuemby/recoverd/pkg/takeover"
	"github.com/cuemby/recoverd/pkg/types"
)

// Callbacks supply every external effect a monitor iteration needs
// beyond what the registry, election engine, ban bookkeeper, gates,
// takeover coordinator, and dispatcher already own: the local data
// daemon, Control RPC fan-outs, and the nodes file.
type Callbacks struct {
	// Step 1-2: local daemon liveness and keepalive.
	ProbeLocalDaemon func() bool
	PingDaemon       func(ctx context.Context) error

	// Step 4-5: tunables and recovery-lock configuration refresh.
	RefreshTunables            func(ctx context.Context) error
	RecoveryLockConfigured     func() bool

	// Step 6: node map fetch.
	FetchNodeMap func(ctx context.Context) (types.NodeMap, error)

	// Step 8: freeze/recmode for a stopped or banned local node.
	SetRecoveryModeActiveLocally func(ctx context.Context) error
	FreezeLocally                func(ctx context.Context) error

	// Step 9: capability refresh.
	RefreshCapabilities func(ctx context.Context, nodes types.NodeMap) (types.NodeMap, error)

	// Step 10/11 support: validate_master's remote pull.
	PullRemoteNodeMap func(ctx context.Context, pnn types.PNN) (types.NodeMap, error)

	// Step 11: local IP consistency and reallocate request.
	CheckLocalIPConsistency func(ctx context.Context) bool
	RequestIPReallocate     func(ctx context.Context, masterPNN types.PNN) error

	// Step 13: update_local_flags against remote node maps.
	UpdateLocalFlags func(ctx context.Context, nodes types.NodeMap) (electionNeeded bool)

	// Step 14: nodes-file reload on count mismatch.
	ReloadNodesFile func(ctx context.Context) error

	// Step 15 support: verify_recmaster's peer query.
	QueryPeerMaster func(ctx context.Context, pnn types.PNN) (types.PNN, error)

	// Step 16/25: VNN map fetch/pull.
	FetchVNNMap      func(ctx context.Context) (types.VNNMap, error)
	PullRemoteVNNMap func(ctx context.Context, pnn types.PNN) (types.VNNMap, error)

	// Step 18: remote recovery-mode check.
	RemoteRecoveryModeActive func(ctx context.Context, pnn types.PNN) (bool, error)

	// Step 22: authoritative flag broadcast on mismatch.
	BroadcastModifyFlags func(ctx context.Context, pnn types.PNN, flags types.NodeFlag)

	// Step 17/18/19/22/23/25: drive an actual recovery attempt.
	// When hasCulprit is true, the coordinator assigns culprit (any
	// PNN, including 0) one ban credit before calling this, matching
	// "trigger recovery with X as culprit".
	RunRecovery func(ctx context.Context, culprit types.PNN, hasCulprit bool) error

	// Fatal: local data daemon is gone. The default behavior a real
	// process wires here is os.Exit; tests substitute a flag.
	FatalExit func(reason string)
}

// Coordinator runs the monitor loop's iterations against its owned
// subsystems. The zero value is not usable; construct with New.
type Coordinator struct {
	localPNN types.PNN
	registry *registry.Registry
	election *election.Engine
	ban      *ban.Bookkeeper
	recGate  *gate.Gate
	takeover *takeover.Coordinator
	dispatch *dispatch.Handlers
	reclock  reclock.Lock

	cb              Callbacks
	recoverInterval time.Duration
	ipFailover      bool

	frozenOnInactive bool
	needRecovery     bool
}

// New returns a Coordinator for localPNN driving the given subsystems.
// reclockLock may be nil if no recovery-lock file is configured.
func New(localPNN types.PNN, reg *registry.Registry, elec *election.Engine, bk *ban.Bookkeeper, recGate *gate.Gate, tko *takeover.Coordinator, disp *dispatch.Handlers, reclockLock reclock.Lock, recoverInterval time.Duration, ipFailover bool, cb Callbacks) *Coordinator {
	return &Coordinator{
		localPNN:        localPNN,
		registry:        reg,
		election:        elec,
		ban:             bk,
		recGate:         recGate,
		takeover:        tko,
		dispatch:        disp,
		reclock:         reclockLock,
		cb:              cb,
		recoverInterval: recoverInterval,
		ipFailover:      ipFailover,
	}
}

// RequestRecovery marks need_recovery, for callers (dispatch handlers,
// verify_recmaster disagreement, a detected inconsistency) that
// discover a recovery is owed before the next iteration reaches the
// step that would otherwise have found it.
func (c *Coordinator) RequestRecovery() {
	c.needRecovery = true
}

// Run loops RunIteration forever, sleeping the remainder of
// recoverInterval after any iteration that returns early, until ctx is
// canceled.
func (c *Coordinator) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		start := time.Now()
		c.RunIteration(ctx)
		if elapsed := time.Since(start); elapsed < c.recoverInterval {
			select {
			case <-ctx.Done():
				return
			case <-time.After(c.recoverInterval - elapsed):
			}
		}
	}
}

// RunIteration runs exactly one pass of the monitor loop, steps 1
// through 26. It returns as soon as any step's "return" condition is
// met, matching the iteration-rate invariant: a short iteration still
// costs one full recoverInterval, enforced by Run's caller-side sleep.
func (c *Coordinator) RunIteration(ctx context.Context) {
	// Step 1: local daemon liveness.
	if c.cb.ProbeLocalDaemon != nil && !c.cb.ProbeLocalDaemon() {
		if c.cb.FatalExit != nil {
			c.cb.FatalExit("local data daemon is not alive")
		}
		return
	}

	// Step 2: keepalive.
	if c.cb.PingDaemon != nil {
		_ = c.cb.PingDaemon(ctx)
	}

	// Step 3: election in progress short-circuits everything else.
	if c.election.InProgress() {
		return
	}

	// Step 4: tunables/debug/runstate refresh.
	if c.cb.RefreshTunables != nil {
		_ = c.cb.RefreshTunables(ctx)
	}

	// Step 5: recovery-lock setting refresh; release if disabled.
	if c.cb.RecoveryLockConfigured != nil && !c.cb.RecoveryLockConfigured() && c.reclock != nil {
		_ = c.reclock.Release()
	}

	// Step 6: node map fetch.
	if c.cb.FetchNodeMap == nil {
		return
	}
	nodes, err := c.cb.FetchNodeMap(ctx)
	if err != nil {
		return
	}
	c.registry.Replace(nodes)
	localNode, _ := c.registry.LocalNode()

	// Step 7: ban sweep.
	bans, selfBanned := c.ban.Sweep(c.registry.Count())
	for _, b := range bans {
		if c.cb.BroadcastModifyFlags != nil {
			c.cb.BroadcastModifyFlags(ctx, b.PNN, types.FlagBanned)
		}
	}
	if selfBanned {
		return
	}

	// Step 8: a stopped or banned local node freezes once and returns.
	if localNode.Flags.Any(types.FlagStopped | types.FlagBanned) {
		if !c.frozenOnInactive {
			if c.cb.SetRecoveryModeActiveLocally != nil {
				_ = c.cb.SetRecoveryModeActiveLocally(ctx)
			}
			if c.cb.FreezeLocally != nil {
				_ = c.cb.FreezeLocally(ctx)
			}
			c.frozenOnInactive = true
		}
		return
	}
	c.frozenOnInactive = false

	// Step 9: capability refresh.
	if c.cb.RefreshCapabilities != nil {
		if refreshed, err := c.cb.RefreshCapabilities(ctx, c.registry.Snapshot()); err == nil {
			c.registry.Replace(refreshed)
		}
	}

	// Step 10: validate_master.
	switch c.validateMaster(ctx) {
	case StatusElectionNeeded:
		c.election.Start(ctx, false)
		return
	case StatusFailed:
		return
	}

	// Step 11: IP failover consistency check.
	if c.ipFailover && !c.recGate.IsDisabled() {
		if c.cb.CheckLocalIPConsistency != nil && c.cb.CheckLocalIPConsistency(ctx) {
			if c.cb.RequestIPReallocate != nil {
				_ = c.cb.RequestIPReallocate(ctx, c.election.BelievedMaster())
			}
		}
	}

	// Step 12: non-master stops here.
	if c.election.BelievedMaster() != c.localPNN {
		return
	}

	// Step 13: update local flags from remote maps.
	if c.cb.UpdateLocalFlags != nil && c.cb.UpdateLocalFlags(ctx, c.registry.Snapshot()) {
		c.election.Start(ctx, false)
		return
	}

	// Step 14: node count consistency. The authoritative count lives in
	// the node map just replaced in step 6; a count that differs from a
	// peer's surfaces in step 22's SameShape check, which triggers a
	// recovery, so this step's reload path only fires when
	// the active set came back empty, a sign the node map fetch itself
	// is stale.
	active := c.registry.Active()
	if len(active) == 0 && c.cb.ReloadNodesFile != nil {
		_ = c.cb.ReloadNodesFile(ctx)
		return
	}

	// Step 15: verify_recmaster.
	switch c.verifyRecmaster(ctx, active) {
	case StatusElectionNeeded:
		c.election.Start(ctx, false)
		return
	case StatusFailed:
		return
	}

	// Step 16: VNN map fetch.
	var vnn types.VNNMap
	if c.cb.FetchVNNMap != nil {
		vnn, err = c.cb.FetchVNNMap(ctx)
		if err != nil {
			return
		}
	}

	// Step 17: explicit need_recovery.
	if c.needRecovery {
		c.runRecovery(ctx, 0, false)
		return
	}

	// Step 18: every active node must be in recovery mode NORMAL.
	if c.cb.RemoteRecoveryModeActive != nil {
		for _, n := range active {
			recActive, err := c.cb.RemoteRecoveryModeActive(ctx, n.PNN)
			if err == nil && recActive {
				c.runRecovery(ctx, 0, false)
				return
			}
		}
	}

	// Step 19: we must still hold the recovery lock, if configured.
	if c.reclock != nil && !c.reclock.IsHeld() {
		c.runRecovery(ctx, c.localPNN, true)
		return
	}

	// Step 20: drain pending reallocate requests.
	if !c.recGate.IsInProgress() && c.takeover != nil {
		if reqs := c.dispatch.DrainReallocateRequests(); len(reqs) > 0 {
			c.takeover.Run(ctx, c.registry.Snapshot(), false)
		}
	}

	// Step 21: recovery gate disabled stops checks 22+.
	if c.recGate.IsDisabled() {
		return
	}

	// Step 22: pull every active node's node map and verify shape/flags.
	for _, n := range active {
		if n.PNN == c.localPNN || c.cb.PullRemoteNodeMap == nil {
			continue
		}
		remote, err := c.cb.PullRemoteNodeMap(ctx, n.PNN)
		if err != nil {
			continue
		}
		if !remote.SameShape(c.registry.Snapshot()) {
			c.runRecovery(ctx, n.PNN, true)
			return
		}
		for _, rn := range remote.Nodes {
			local, ok := c.registry.Node(rn.PNN)
			if ok && local.Flags != rn.Flags {
				if c.cb.BroadcastModifyFlags != nil {
					c.cb.BroadcastModifyFlags(ctx, rn.PNN, local.Flags)
				}
				c.runRecovery(ctx, n.PNN, true)
				return
			}
		}
	}

	// Step 23: active LMASTER-capable count must match VNN map size.
	lmasterCount := 0
	for _, n := range active {
		if n.Capabilities.Has(types.CapLmaster) {
			lmasterCount++
		}
	}
	if lmasterCount != vnn.Size() {
		c.runRecovery(ctx, c.localPNN, true)
		return
	}

	// Step 24: every active non-master node's PNN appears in the VNN map.
	for _, n := range active {
		if n.PNN == c.localPNN {
			continue
		}
		if !vnn.Contains(n.PNN) {
			c.runRecovery(ctx, n.PNN, true)
			return
		}
	}

	// Step 25: every active node's VNN map matches generation/size/entries.
	if c.cb.PullRemoteVNNMap != nil {
		for _, n := range active {
			if n.PNN == c.localPNN {
				continue
			}
			remoteVNN, err := c.cb.PullRemoteVNNMap(ctx, n.PNN)
			if err != nil {
				continue
			}
			if !remoteVNN.Equal(vnn) {
				c.runRecovery(ctx, n.PNN, true)
				return
			}
		}
	}

	// Step 26: drain a pending need_takeover_run.
	if c.takeover.NeedTakeoverRun() {
		c.takeover.Run(ctx, c.registry.Snapshot(), true)
	}
}

func (c *Coordinator) runRecovery(ctx context.Context, culprit types.PNN, hasCulprit bool) {
	if hasCulprit {
		c.ban.AssignCredits(culprit, 1, c.registry.LocalInactive())
	}
	c.needRecovery = true
	if c.cb.RunRecovery != nil {
		if err := c.cb.RunRecovery(ctx, culprit, hasCulprit); err == nil {
			c.needRecovery = false
		}
	}
}

// Status is the three-way outcome of validate_master and
// verify_recmaster.
type Status int

const (
	StatusOK Status = iota
	StatusElectionNeeded
	StatusFailed
)

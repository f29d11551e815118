package main

import (
	"context"
	"time"

	"github.com/cuemby/recoverd/pkg/dispatch"
	"github.com/cuemby/recoverd/pkg/types"
)

func (a *app) disableTakeoverRunsOnPeers(ctx context.Context, timeout time.Duration) {
	targets := a.targetsFor(a.registry.Active())
	a.fanOut(ctx, targets, dispatch.OpDisableTakeoverRuns, dispatch.DisableTimeoutPayload{TimeoutSeconds: timeout.Seconds()})
}

func (a *app) enableTakeoverRunsOnPeers(ctx context.Context) {
	targets := a.targetsFor(a.registry.Active())
	a.fanOut(ctx, targets, dispatch.OpDisableTakeoverRuns, dispatch.DisableTimeoutPayload{TimeoutSeconds: 0})
}

// broadcastFlags re-announces pnn's new flags to every active node via
// SET_NODE_FLAGS, the same op a master uses to push an authoritative
// flag value during the monitor loop's own consistency checks.
func (a *app) broadcastFlags(ctx context.Context, pnn types.PNN, flags types.NodeFlag) {
	targets := a.targetsFor(a.registry.Active())
	a.fanOut(ctx, targets, dispatch.OpSetNodeFlags, dispatch.SetNodeFlagsPayload{PNN: pnn, Flags: flags})
}

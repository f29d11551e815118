package main

import (
	"context"
	"os"

	"github.com/cuemby/recoverd/pkg/dispatch"
	"github.com/cuemby/recoverd/pkg/log"
	"github.com/cuemby/recoverd/pkg/monitor"
	"github.com/cuemby/recoverd/pkg/procprobe"
	"github.com/cuemby/recoverd/pkg/types"
)

// monitorCallbacks wires every monitor.Coordinator external effect.
// recoverd is a sidecar to a separately-running local data daemon
// (step 1), identified by PIDFile; step 4 (tunable refresh) has no
// hot-reload source wired, so it is a trivial no-op success.
func (a *app) monitorCallbacks() monitor.Callbacks {
	prober := procprobe.NewPIDFileProber(a.cfg.PIDFile)
	return monitor.Callbacks{
		ProbeLocalDaemon: func() bool { return prober.Check().Alive },
		PingDaemon:       func(ctx context.Context) error { return nil },

		// Tunables are loaded once at startup; no hot-reload source is
		// wired, so a refresh is always a no-op success.
		RefreshTunables:        func(ctx context.Context) error { return nil },
		RecoveryLockConfigured: func() bool { return a.cfg.RecoveryLockFile != "" },

		FetchNodeMap: func(ctx context.Context) (types.NodeMap, error) {
			return loadNodesFile(a.cfg.NodesFile)
		},

		SetRecoveryModeActiveLocally: func(ctx context.Context) error {
			_, err := a.call(ctx, a.localPNN, dispatch.OpSetRecMode, dispatch.RecModePayload{Active: true})
			return err
		},
		FreezeLocally: func(ctx context.Context) error {
			_, err := a.call(ctx, a.localPNN, dispatch.OpFreezeDatabase, nil)
			return err
		},

		// Capabilities are fixed at nodes-file load time; this
		// coordinator has no separate capability-probe RPC, so a
		// refresh always returns the map unchanged.
		RefreshCapabilities: func(ctx context.Context, nodes types.NodeMap) (types.NodeMap, error) {
			return nodes, nil
		},

		PullRemoteNodeMap: func(ctx context.Context, pnn types.PNN) (types.NodeMap, error) {
			reply, err := callDecode[dispatch.NodeMapReply](ctx, a, pnn, dispatch.OpGetNodeMap, nil)
			return reply.NodeMap, err
		},

		// Public-IP consistency has no backing Runner beyond
		// takeover.NoopRunner/LoggingRunner in this deployment, so there
		// is nothing to detect as inconsistent.
		CheckLocalIPConsistency: func(ctx context.Context) bool { return false },
		RequestIPReallocate: func(ctx context.Context, masterPNN types.PNN) error {
			_, err := a.call(ctx, masterPNN, dispatch.OpTakeoverRun, dispatch.TakeoverRunPayload{SrvID: a.nextSrvID()})
			return err
		},

		// Flag divergence against a remote authoritative view is
		// already surfaced by step 22's node-map pull later in the same
		// iteration; this step only exists upstream of that check, so
		// it never independently forces an election.
		UpdateLocalFlags: func(ctx context.Context, nodes types.NodeMap) bool { return false },

		ReloadNodesFile: a.reloadNodesFile,

		QueryPeerMaster: func(ctx context.Context, pnn types.PNN) (types.PNN, error) {
			reply, err := callDecode[dispatch.MasterReply](ctx, a, pnn, dispatch.OpGetMaster, nil)
			return reply.PNN, err
		},

		FetchVNNMap: func(ctx context.Context) (types.VNNMap, error) {
			reply, err := callDecode[dispatch.VNNMapReply](ctx, a, a.localPNN, dispatch.OpGetVNNMap, nil)
			return reply.VNNMap, err
		},
		PullRemoteVNNMap: func(ctx context.Context, pnn types.PNN) (types.VNNMap, error) {
			reply, err := callDecode[dispatch.VNNMapReply](ctx, a, pnn, dispatch.OpGetVNNMap, nil)
			return reply.VNNMap, err
		},

		RemoteRecoveryModeActive: func(ctx context.Context, pnn types.PNN) (bool, error) {
			reply, err := callDecode[dispatch.RecModePayload](ctx, a, pnn, dispatch.OpGetRecMode, nil)
			return reply.Active, err
		},

		BroadcastModifyFlags: func(ctx context.Context, pnn types.PNN, flags types.NodeFlag) {
			_, _ = a.call(ctx, pnn, dispatch.OpSetNodeFlags, dispatch.SetNodeFlagsPayload{PNN: pnn, Flags: flags})
		},

		RunRecovery: func(ctx context.Context, culprit types.PNN, hasCulprit bool) error {
			return a.recoveryEngine.Run(ctx)
		},

		FatalExit: func(reason string) {
			log.WithComponent("monitor").Error().Str("reason", reason).Msg("fatal: local data daemon unavailable")
			os.Exit(1)
		},
	}
}

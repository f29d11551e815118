package main

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cuemby/recoverd/pkg/dispatch"
	"github.com/cuemby/recoverd/pkg/events"
	"github.com/cuemby/recoverd/pkg/helper"
	"github.com/cuemby/recoverd/pkg/recovery"
	"github.com/cuemby/recoverd/pkg/types"
)

// recoveryCallbacks wires every recovery.Engine effect to a Control
// RPC call against the relevant peer (or, for the local-only fields,
// against this node's own address — Control RPC runs over the same
// loopback-capable listener for every target, local node included).
func (a *app) recoveryCallbacks() recovery.Callbacks {
	var lastPushGeneration atomic.Uint32

	return recovery.Callbacks{
		IsMaster:           func() bool { return a.election.BelievedMaster() == a.localPNN },
		ElectionInProgress: func() bool { return a.election.InProgress() },
		SelfInactive:       func() bool { return a.registry.LocalInactive() },
		AcquireRecoveryLock: func() (bool, error) {
			if a.reclockLock == nil {
				return true, nil
			}
			return a.reclockLock.TryAcquire()
		},
		SelfBan: func(period time.Duration) {
			_ = a.forceBan(a.localPNN, period)
			a.events.Publish(&events.Event{Type: events.EventSelfBanned, Message: "self-banned after recovery lock failure"})
		},

		LocalDatabases: func() []types.Database {
			dbs, _ := a.getDatabases(context.Background(), a.localPNN)
			return dbs
		},
		RemoteDatabases: a.getDatabases,
		CreateDatabaseLocal: func(db types.Database) error {
			return a.createDatabase(context.Background(), a.localPNN, db)
		},
		CreateDatabaseRemote: a.createDatabase,
		// PushDBPriority has no dedicated wire op: database attach order
		// is not modeled separately from attachment itself, so
		// re-asserting CREATE_DATABASE (idempotent) is the closest
		// equivalent effect available.
		PushDBPriority: a.createDatabase,

		SetRecoveryModeActive: func(ctx context.Context) error {
			targets := a.targetsFor(a.registry.Active())
			if !a.fanOut(ctx, targets, dispatch.OpSetRecMode, dispatch.RecModePayload{Active: true}) {
				return fmt.Errorf("recoverd: set recovery mode active failed on at least one node")
			}
			return nil
		},
		Freeze: func(ctx context.Context) error {
			targets := a.targetsFor(a.registry.Active())
			a.fanOut(ctx, targets, dispatch.OpFreezeDatabase, nil)
			return nil
		},

		NewGeneration:     a.nextGeneration,
		InstallGeneration: func(generation uint32) { a.generation.Store(generation) },
		TransactionStart: func(ctx context.Context, generation uint32) error {
			targets := a.targetsFor(a.registry.Active())
			if !a.fanOut(ctx, targets, dispatch.OpTransactionStart, dispatch.TransactionPayload{Generation: generation}) {
				return fmt.Errorf("recoverd: transaction start failed on at least one node")
			}
			return nil
		},

		ActiveNodes:     func() []types.Node { return a.registry.Active() },
		RecoverBySeqnum: func() bool { return true },
		SeqNum: func(ctx context.Context, pnn types.PNN, db types.Database) (uint64, error) {
			reply, err := callDecode[dispatch.SeqnumReply](ctx, a, pnn, dispatch.OpSeqnum, dispatch.SeqnumPayload{DBID: db.ID})
			return reply.Seqnum, err
		},
		PullDatabase: func(ctx context.Context, pnn types.PNN, db types.Database) ([]types.Record, error) {
			reply, err := callDecode[dispatch.PullRecordsReply](ctx, a, pnn, dispatch.OpPullRecords, dispatch.PullRecordsPayload{DBID: db.ID})
			return reply.Records, err
		},
		// WipeDatabase itself has no wire effect: PUSH_RECORDS wipes
		// before installing the merged set, so the only thing worth
		// capturing here is the generation PushDatabase will need.
		WipeDatabase: func(_ context.Context, _ types.Database, generation uint32) error {
			lastPushGeneration.Store(generation)
			return nil
		},
		PushDatabase: func(ctx context.Context, db types.Database, records []types.Record) error {
			targets := a.targetsFor(a.registry.Active())
			payload := dispatch.PushRecordsPayload{DBID: db.ID, Generation: lastPushGeneration.Load(), Records: records}
			if !a.fanOut(ctx, targets, dispatch.OpPushRecords, payload) {
				return fmt.Errorf("recoverd: push records failed on at least one node for database %s", db.Name)
			}
			return nil
		},

		TransactionCommit: func(ctx context.Context, generation uint32) error {
			targets := a.targetsFor(a.registry.Active())
			if !a.fanOut(ctx, targets, dispatch.OpTransactionCommit, dispatch.TransactionPayload{Generation: generation}) {
				return fmt.Errorf("recoverd: transaction commit failed on at least one node")
			}
			return nil
		},

		BuildVNNMap: buildVNNMap,
		PushVNNMap: func(ctx context.Context, vnn types.VNNMap) error {
			targets := a.targetsFor(a.registry.Active())
			if !a.fanOut(ctx, targets, dispatch.OpPushVNNMap, dispatch.VNNMapReply{VNNMap: vnn}) {
				return fmt.Errorf("recoverd: push vnn map failed on at least one node")
			}
			return nil
		},

		Thaw: func(ctx context.Context) error {
			targets := a.targetsFor(a.registry.Active())
			a.fanOut(ctx, targets, dispatch.OpThawDatabase, nil)
			return nil
		},

		BroadcastRecovered: func(ctx context.Context) error {
			targets := a.targetsFor(a.registry.Active())
			a.fanOut(ctx, targets, dispatch.OpRecovered, nil)
			a.events.Publish(&events.Event{Type: events.EventRecoveryCommitted, Message: "recovery committed"})
			return nil
		},

		TakeoverRun: func(ctx context.Context) bool {
			// Phase 10 never bans on failure: a takeover hiccup right
			// after a completed recovery is not evidence of a bad node,
			// just retried on the next monitor iteration.
			return a.takeover.Run(ctx, a.registry.Snapshot(), false)
		},

		BroadcastReconfigure: func(ctx context.Context) error {
			targets := a.targetsFor(a.registry.Active())
			a.fanOut(ctx, targets, dispatch.OpReconfigure, nil)
			return nil
		},
		ForgiveCredits: a.bookkeeper.Forgive,
		// ClearNeedRecovery is a no-op here: the monitor loop's own
		// RunIteration already clears its need_recovery flag when
		// Engine.Run returns nil, so there is no second flag left for
		// the engine itself to clear.
		ClearNeedRecovery: func() {},

		AllSupportParallelRecovery: func(active []types.Node) bool {
			if !a.cfg.ParallelRecoveryEnabled {
				return false
			}
			for _, n := range active {
				if !n.Capabilities.Has(types.CapParallelRecovery) {
					return false
				}
			}
			return true
		},
		RunHelper: func(ctx context.Context, generation uint32) (int, error) {
			return helper.SpawnAndWait(ctx, a.cfg.RecoveryHelperPath, a.cfg.ListenAddress, generation, a.cfg.DBStateDir)
		},

		LocalPNN: a.localPNN,
	}
}

func (a *app) getDatabases(ctx context.Context, pnn types.PNN) ([]types.Database, error) {
	reply, err := callDecode[dispatch.DatabasesReply](ctx, a, pnn, dispatch.OpGetDatabases, nil)
	return reply.Databases, err
}

func (a *app) createDatabase(ctx context.Context, pnn types.PNN, db types.Database) error {
	_, err := a.call(ctx, pnn, dispatch.OpCreateDatabase, dispatch.CreateDatabasePayload{Database: db})
	return err
}

// buildVNNMap assigns one slot per LMASTER-capable active node, in
// node-map order, stamped with generation.
func buildVNNMap(active []types.Node, generation uint32) types.VNNMap {
	var slots []types.PNN
	for _, n := range active {
		if n.Capabilities.Has(types.CapLmaster) {
			slots = append(slots, n.PNN)
		}
	}
	return types.VNNMap{Generation: generation, Map: slots}
}

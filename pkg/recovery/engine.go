package recovery

import (
	"context"
	"fmt"
	"time"

	"github.com/cuemby/recoverd/pkg/gate"
	"github.com/cuemby/recoverd/pkg/types"
)

// Callbacks supply every network and side-effecting operation a
// recovery phase needs. Engine never talks to pkg/rpc, pkg/ban, or
// pkg/kvstore directly — the monitor loop wires each field to the
// corresponding fan-out/bookkeeper call, including whatever ban-credit
// weight a given failure deserves.
type Callbacks struct {
	// Phase 0 preconditions.
	IsMaster           func() bool
	ElectionInProgress func() bool
	SelfInactive       func() bool
	AcquireRecoveryLock func() (acquired bool, err error)
	SelfBan             func(period time.Duration)

	// Phase 1 schema reconciliation.
	LocalDatabases       func() []types.Database
	RemoteDatabases      func(ctx context.Context, pnn types.PNN) ([]types.Database, error)
	CreateDatabaseLocal  func(db types.Database) error
	CreateDatabaseRemote func(ctx context.Context, pnn types.PNN, db types.Database) error
	PushDBPriority       func(ctx context.Context, pnn types.PNN, db types.Database) error

	// Phase 2 freeze.
	SetRecoveryModeActive func(ctx context.Context) error
	Freeze                func(ctx context.Context) error

	// Phase 3/4 generation and transaction start.
	NewGeneration    func() uint32
	InstallGeneration func(generation uint32)
	TransactionStart func(ctx context.Context, generation uint32) error

	// Phase 5 per-database recovery.
	ActiveNodes        func() []types.Node
	RecoverBySeqnum    func() bool
	SeqNum             func(ctx context.Context, pnn types.PNN, db types.Database) (uint64, error)
	PullDatabase       func(ctx context.Context, pnn types.PNN, db types.Database) ([]types.Record, error)
	WipeDatabase       func(ctx context.Context, db types.Database, generation uint32) error
	PushDatabase       func(ctx context.Context, db types.Database, records []types.Record) error

	// Phase 6 commit.
	TransactionCommit func(ctx context.Context, generation uint32) error

	// Phase 7 VNN map.
	BuildVNNMap func(active []types.Node, generation uint32) types.VNNMap
	PushVNNMap  func(ctx context.Context, vnn types.VNNMap) error

	// Phase 8 thaw.
	Thaw func(ctx context.Context) error

	// Phase 9 recovered event.
	BroadcastRecovered func(ctx context.Context) error

	// Phase 10 takeover.
	TakeoverRun func(ctx context.Context) bool

	// Phase 11 settle.
	BroadcastReconfigure func(ctx context.Context) error
	ForgiveCredits       func()
	ClearNeedRecovery    func()

	// Parallel-recovery helper (phases 2-9 delegated).
	AllSupportParallelRecovery func(active []types.Node) bool
	RunHelper                  func(ctx context.Context, generation uint32) (exitCode int, err error)

	LocalPNN types.PNN
}

// rerecoveryTimeoutSeconds is passed to gate.Disable on a successful
// recovery. It is a fixed value; the engine does not read
// pkg/config's rerecovery_timeout_seconds.
const rerecoveryTimeoutSeconds = 10.0

// Engine runs the recovery phase sequence once per invocation of Run.
type Engine struct {
	gate *gate.Gate
	cb   Callbacks
}

// New returns an Engine gated by g.
func New(g *gate.Gate, cb Callbacks) *Engine {
	return &Engine{gate: g, cb: cb}
}

// Run executes one full recovery attempt. It returns nil on success
// and a descriptive error identifying the phase that aborted
// otherwise. Every abort path is safe: the cluster is left in a state
// the next monitor iteration will detect and retry from phase 0.
func (e *Engine) Run(ctx context.Context) (err error) {
	if !e.gate.Begin() {
		return fmt.Errorf("recovery: gate refused (in progress or disabled)")
	}
	defer e.gate.End()

	if err := e.phase0Preconditions(); err != nil {
		return err
	}

	databases, err := e.phase1SchemaReconciliation(ctx)
	if err != nil {
		return err
	}

	active := e.cb.ActiveNodes()
	if e.cb.AllSupportParallelRecovery != nil && e.cb.AllSupportParallelRecovery(active) {
		// Phases 2-9 are delegated wholesale to a short-lived recovery
		// helper child process driven by a single generation id: this
		// engine must not freeze, install a generation, or start a
		// transaction itself on this path, or it would duplicate (and
		// race with) whatever the helper does.
		generation := e.newGeneration()
		if err := e.runParallelHelper(ctx, generation); err != nil {
			return err
		}
	} else {
		if err := e.cb.SetRecoveryModeActive(ctx); err != nil {
			return fmt.Errorf("recovery: phase 2 set recovery mode: %w", err)
		}
		if err := e.cb.Freeze(ctx); err != nil {
			return fmt.Errorf("recovery: phase 2 freeze: %w", err)
		}

		g1 := e.newGeneration()
		e.cb.InstallGeneration(g1)

		g2 := e.newGeneration()
		if err := e.cb.TransactionStart(ctx, g2); err != nil {
			return fmt.Errorf("recovery: phase 4 transaction start: %w", err)
		}

		for _, db := range databases {
			if err := e.phase5Database(ctx, db, active, g2); err != nil {
				return err
			}
		}

		if err := e.cb.TransactionCommit(ctx, g2); err != nil {
			return fmt.Errorf("recovery: phase 6 commit: %w", err)
		}

		vnn := e.cb.BuildVNNMap(active, g1)
		if err := e.cb.PushVNNMap(ctx, vnn); err != nil {
			return fmt.Errorf("recovery: phase 7 push vnn map: %w", err)
		}

		if err := e.cb.Thaw(ctx); err != nil {
			return fmt.Errorf("recovery: phase 8 thaw: %w", err)
		}

		if err := e.cb.BroadcastRecovered(ctx); err != nil {
			// A failure here is discarded and assigns no credits; it
			// never undoes an already-consistent recovery.
			_ = err
		}
	}

	e.cb.TakeoverRun(ctx)

	if err := e.cb.BroadcastReconfigure(ctx); err != nil {
		_ = err
	}
	e.cb.ClearNeedRecovery()
	e.cb.ForgiveCredits()
	e.gate.Disable(rerecoveryTimeoutSeconds)

	return nil
}

func (e *Engine) phase0Preconditions() error {
	if !e.cb.IsMaster() {
		return fmt.Errorf("recovery: phase 0 aborted, no longer master")
	}
	if e.cb.ElectionInProgress() {
		return fmt.Errorf("recovery: phase 0 aborted, election in progress")
	}
	if e.cb.SelfInactive() {
		return fmt.Errorf("recovery: phase 0 aborted, self inactive")
	}
	if e.cb.AcquireRecoveryLock != nil {
		acquired, err := e.cb.AcquireRecoveryLock()
		if err != nil || !acquired {
			e.cb.SelfBan(banPeriodOnLockFailure)
			return fmt.Errorf("recovery: phase 0 aborted, recovery lock unavailable: %w", err)
		}
	}
	return nil
}

// banPeriodOnLockFailure is the self-ban duration applied when the
// recovery lock cannot be taken. Not yet sourced from pkg/config.
const banPeriodOnLockFailure = 30 * time.Second

func (e *Engine) phase1SchemaReconciliation(ctx context.Context) ([]types.Database, error) {
	local := e.cb.LocalDatabases()
	byName := make(map[string]types.Database, len(local))
	for _, db := range local {
		byName[db.Name] = db
	}

	for _, node := range e.cb.ActiveNodes() {
		remote, err := e.cb.RemoteDatabases(ctx, node.PNN)
		if err != nil {
			continue // per-node schema pull failure is not fatal; caught up next iteration.
		}
		remoteByName := make(map[string]bool, len(remote))
		for _, db := range remote {
			remoteByName[db.Name] = true
			if _, ok := byName[db.Name]; !ok {
				if err := e.cb.CreateDatabaseLocal(db); err == nil {
					byName[db.Name] = db
					local = append(local, db)
				}
			}
		}
		for _, db := range local {
			if !remoteByName[db.Name] {
				_ = e.cb.CreateDatabaseRemote(ctx, node.PNN, db)
			}
			_ = e.cb.PushDBPriority(ctx, node.PNN, db) // best-effort, never fatal.
		}
	}

	return local, nil
}

func (e *Engine) phase5Database(ctx context.Context, db types.Database, active []types.Node, generation uint32) error {
	working := make(map[string]types.Record)

	if db.Persistent() && e.cb.RecoverBySeqnum != nil && e.cb.RecoverBySeqnum() {
		var bestPNN types.PNN
		var bestSeqnum uint64
		first := true
		for _, node := range active {
			seq, err := e.cb.SeqNum(ctx, node.PNN, db)
			if err != nil {
				continue
			}
			if first || seq > bestSeqnum {
				bestSeqnum, bestPNN, first = seq, node.PNN, false
			}
		}
		if !first {
			records, err := e.cb.PullDatabase(ctx, bestPNN, db)
			if err == nil {
				working = Merge(working, records, e.cb.LocalPNN)
			}
		}
	} else {
		for _, node := range active {
			records, err := e.cb.PullDatabase(ctx, node.PNN, db)
			if err != nil {
				continue
			}
			working = Merge(working, records, e.cb.LocalPNN)
		}
	}

	if err := e.cb.WipeDatabase(ctx, db, generation); err != nil {
		return fmt.Errorf("recovery: phase 5 wipe %s: %w", db.Name, err)
	}

	pushed := PreparePush(db, working, e.cb.LocalPNN)
	if err := e.cb.PushDatabase(ctx, db, pushed); err != nil {
		return fmt.Errorf("recovery: phase 5 push %s: %w", db.Name, err)
	}

	return nil
}

func (e *Engine) runParallelHelper(ctx context.Context, generation uint32) error {
	exitCode, err := e.cb.RunHelper(ctx, generation)
	if err != nil || exitCode != 0 {
		return fmt.Errorf("recovery: parallel recovery helper failed (exit=%d): %w", exitCode, err)
	}
	return nil
}

func (e *Engine) newGeneration() uint32 {
	for {
		g := e.cb.NewGeneration()
		if g != types.InvalidGeneration {
			return g
		}
	}
}

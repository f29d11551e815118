package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/cuemby/recoverd/pkg/ban"
	"github.com/cuemby/recoverd/pkg/election"
	"github.com/cuemby/recoverd/pkg/events"
	"github.com/cuemby/recoverd/pkg/gate"
	"github.com/cuemby/recoverd/pkg/kvstore"
	"github.com/cuemby/recoverd/pkg/registry"
	"github.com/cuemby/recoverd/pkg/rpc"
	"github.com/cuemby/recoverd/pkg/takeover"
	"github.com/cuemby/recoverd/pkg/types"
)

// Callbacks cover the handful of effects that have no home of their
// own among the domain packages: the database registry, the nodes
// file, and the master's IP-assignment index.
type Callbacks struct {
	// BroadcastFlags re-announces a flag change to every connected
	// node. Required for PUSH_NODE_FLAGS to do anything.
	BroadcastFlags func(ctx context.Context, pnn types.PNN, flags types.NodeFlag)

	// DetachDatabase removes dbID from the local database registry.
	DetachDatabase func(dbID uint32) error

	// ReloadNodes re-reads the nodes file from disk.
	ReloadNodes func(ctx context.Context) error

	// ArmDeferredTakeoverRun schedules a takeover run some configured
	// delay after a REBALANCE_NODE request, if configured. May be nil.
	ArmDeferredTakeoverRun func()

	// MemStats returns a snapshot of internal allocator/bookkeeping
	// counters for MEM_DUMP.
	MemStats func() map[string]uint64

	// UpdateIPAssignment records that ip now resolves to pnn in the
	// master's IP-assignment index.
	UpdateIPAssignment func(ctx context.Context, ip string, pnn types.PNN)

	// ElectionInProgress and RecoveryInProgress report monitor-loop
	// state that dispatch has no direct view of, for the STATUS admin
	// op. Either may be nil, in which case the reply reports false.
	ElectionInProgress func() bool
	RecoveryInProgress func() bool

	// ForceBan bans pnn for the given duration immediately, bypassing
	// the normal credit-accumulation path, for the CLI's `recoverd ban`.
	ForceBan func(pnn types.PNN, d time.Duration) error

	// ForceElection starts a fresh election, for the CLI's
	// `recoverd recover`/`--force-election`-style operator override.
	ForceElection func(ctx context.Context)

	// RecentEvents returns up to limit of the most recently published
	// events, newest last, for the CLI's `recoverd events`.
	RecentEvents func(limit int) []events.Event
}

// Handlers wires the message dispatcher to the coordinator's domain
// state: the node registry, the election engine, the takeover
// coordinator, the ban bookkeeper, the recovery gate, and the local
// KV store. RegisterAll installs every handler named in the message
// table on an rpc.Dispatcher.
type Handlers struct {
	registry  *registry.Registry
	election  *election.Engine
	takeover  *takeover.Coordinator
	ban       *ban.Bookkeeper
	recovery  *gate.Gate
	store     kvstore.Store
	cb        Callbacks

	mu            sync.Mutex
	reallocate    []types.ReallocateRequest
	databases     []types.Database
	recModeActive bool
	vnnMap        types.VNNMap
}

// New returns a Handlers bound to the given domain components.
// recoveryGate is the recovery gate (DISABLE_RECOVERIES); the takeover
// gate is not held here: RegisterAll receives it and binds it to the
// DISABLE_IP_CHECK and DISABLE_TAKEOVER_RUNS handlers.
func New(reg *registry.Registry, elec *election.Engine, tko *takeover.Coordinator, bk *ban.Bookkeeper, recoveryGate *gate.Gate, store kvstore.Store, cb Callbacks) *Handlers {
	return &Handlers{
		registry: reg,
		election: elec,
		takeover: tko,
		ban:      bk,
		recovery: recoveryGate,
		store:    store,
		cb:       cb,
	}
}

// DrainReallocateRequests returns and clears every TAKEOVER_RUN
// request queued since the last drain, for the monitor loop to service
// in its next iteration.
func (h *Handlers) DrainReallocateRequests() []types.ReallocateRequest {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := h.reallocate
	h.reallocate = nil
	return out
}

// RegisterAll installs every recognized operation's handler on d.
func (h *Handlers) RegisterAll(d *rpc.Dispatcher, takeoverGate *gate.Gate) {
	d.Register(OpElection, h.handleElection)
	d.Register(OpSetNodeFlags, h.handleSetNodeFlags)
	d.Register(OpPushNodeFlags, h.handlePushNodeFlags)
	d.Register(OpReconfigure, h.handleReconfigure)
	d.Register(OpVacuumFetch, h.handleVacuumFetch)
	d.Register(OpDetachDatabase, h.handleDetachDatabase)
	d.Register(OpReloadNodes, h.handleReloadNodes)
	d.Register(OpTakeoverRun, h.handleTakeoverRun)
	d.Register(OpDisableIPCheck, h.disableGateHandler(takeoverGate))
	d.Register(OpDisableTakeoverRuns, h.disableGateHandler(takeoverGate))
	d.Register(OpDisableRecoveries, h.handleDisableRecoveries)
	d.Register(OpMemDump, h.handleMemDump)
	d.Register(OpBanning, h.handleBanning)
	d.Register(OpRebalanceNode, h.handleRebalanceNode)
	d.Register(OpRecdUpdateIP, h.handleRecdUpdateIP)

	d.Register(OpAdminStatus, h.handleAdminStatus)
	d.Register(OpAdminBan, h.handleAdminBan)
	d.Register(OpAdminForceElection, h.handleAdminForceElection)
	d.Register(OpAdminEvents, h.handleAdminEvents)

	h.registerDBOps(d)
}

func decode[T any](payload json.RawMessage) (T, error) {
	var v T
	if len(payload) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(payload, &v); err != nil {
		return v, fmt.Errorf("dispatch: decode payload: %w", err)
	}
	return v, nil
}

func encode(v any) (json.RawMessage, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("dispatch: encode reply: %w", err)
	}
	return b, nil
}

func (h *Handlers) isMaster() bool {
	return h.election.BelievedMaster() == h.registry.LocalPNN()
}

func (h *Handlers) handleElection(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	p, err := decode[ElectionPayload](payload)
	if err != nil {
		return nil, err
	}
	h.election.Receive(ctx, p.Message)
	return nil, nil
}

func (h *Handlers) handleSetNodeFlags(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	p, err := decode[SetNodeFlagsPayload](payload)
	if err != nil {
		return nil, err
	}
	prev, ok := h.registry.SetFlags(p.PNN, p.Flags)
	if ok && h.isMaster() {
		diff := prev ^ p.Flags
		if diff == types.FlagDisabled {
			h.takeover.RequestRebalance(p.PNN)
		}
	}
	return nil, nil
}

func (h *Handlers) handlePushNodeFlags(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	if !h.isMaster() {
		return nil, nil
	}
	p, err := decode[PushNodeFlagsPayload](payload)
	if err != nil {
		return nil, err
	}
	if h.cb.BroadcastFlags != nil {
		h.cb.BroadcastFlags(ctx, p.PNN, p.Flags)
	}
	return nil, nil
}

func (h *Handlers) handleReconfigure(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	// Consumed by clients, not by the coordinator: a pure pass-through.
	return nil, nil
}

func (h *Handlers) handleVacuumFetch(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	p, err := decode[VacuumFetchPayload](payload)
	if err != nil {
		return nil, err
	}
	var migrated [][]byte
	for _, rec := range p.Records {
		unlock, ok := h.store.TryLockChain(p.DBID, rec.Key)
		if !ok {
			continue
		}
		err := h.store.Put(p.DBID, rec)
		unlock()
		if err == nil {
			migrated = append(migrated, rec.Key)
		}
	}
	return encode(VacuumFetchReply{MigratedKeys: migrated})
}

func (h *Handlers) handleDetachDatabase(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	p, err := decode[DetachDatabasePayload](payload)
	if err != nil {
		return nil, err
	}
	if h.cb.DetachDatabase != nil {
		if err := h.cb.DetachDatabase(p.DBID); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

func (h *Handlers) handleReloadNodes(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	if h.cb.ReloadNodes != nil {
		if err := h.cb.ReloadNodes(ctx); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

func (h *Handlers) handleTakeoverRun(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	p, err := decode[TakeoverRunPayload](payload)
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	h.reallocate = append(h.reallocate, types.ReallocateRequest{PNN: h.registry.LocalPNN(), SrvID: p.SrvID})
	h.mu.Unlock()
	// This handler only enqueues and replies with an empty payload. The
	// monitor loop later drains the queue and runs one takeover for
	// every drained request; no reply is sent to the requester after
	// that run.
	return nil, nil
}

func (h *Handlers) disableGateHandler(g *gate.Gate) rpc.Handler {
	return func(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
		p, err := decode[DisableTimeoutPayload](payload)
		if err != nil {
			return nil, err
		}
		if !g.Disable(p.TimeoutSeconds) {
			return nil, fmt.Errorf("dispatch: gate disable refused, operation in progress")
		}
		return nil, nil
	}
}

func (h *Handlers) handleDisableRecoveries(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	p, err := decode[DisableTimeoutPayload](payload)
	if err != nil {
		return nil, err
	}
	if !h.recovery.Disable(p.TimeoutSeconds) {
		return nil, fmt.Errorf("dispatch: recovery gate disable refused, operation in progress")
	}
	return encode(DisableRecoveriesReply{PNN: h.registry.LocalPNN()})
}

func (h *Handlers) handleMemDump(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	var stats map[string]uint64
	if h.cb.MemStats != nil {
		stats = h.cb.MemStats()
	}
	return encode(MemDumpReply{Stats: stats})
}

func (h *Handlers) handleBanning(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	if !h.isMaster() {
		return nil, nil
	}
	p, err := decode[BanningPayload](payload)
	if err != nil {
		return nil, err
	}
	h.ban.AssignCredits(p.PNN, p.Credits, h.registry.LocalInactive())
	return nil, nil
}

func (h *Handlers) handleRebalanceNode(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	p, err := decode[RebalanceNodePayload](payload)
	if err != nil {
		return nil, err
	}
	h.takeover.RequestRebalance(p.PNN)
	if h.cb.ArmDeferredTakeoverRun != nil {
		h.cb.ArmDeferredTakeoverRun()
	}
	return nil, nil
}

func (h *Handlers) handleRecdUpdateIP(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	if !h.isMaster() {
		return nil, nil
	}
	p, err := decode[RecdUpdateIPPayload](payload)
	if err != nil {
		return nil, err
	}
	if h.cb.UpdateIPAssignment != nil {
		h.cb.UpdateIPAssignment(ctx, p.IP, p.PNN)
	}
	return nil, nil
}

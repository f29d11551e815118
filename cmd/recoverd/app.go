package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cuemby/recoverd/pkg/ban"
	"github.com/cuemby/recoverd/pkg/config"
	"github.com/cuemby/recoverd/pkg/dispatch"
	"github.com/cuemby/recoverd/pkg/election"
	"github.com/cuemby/recoverd/pkg/events"
	"github.com/cuemby/recoverd/pkg/gate"
	"github.com/cuemby/recoverd/pkg/kvstore"
	"github.com/cuemby/recoverd/pkg/log"
	"github.com/cuemby/recoverd/pkg/metrics"
	"github.com/cuemby/recoverd/pkg/monitor"
	"github.com/cuemby/recoverd/pkg/reclock"
	"github.com/cuemby/recoverd/pkg/registry"
	"github.com/cuemby/recoverd/pkg/recovery"
	"github.com/cuemby/recoverd/pkg/rpc"
	"github.com/cuemby/recoverd/pkg/takeover"
	"github.com/cuemby/recoverd/pkg/types"
)

// app owns every subsystem the coordinator wires together: one
// process, one instance. The zero value is not usable; construct with
// newApp.
type app struct {
	cfg      config.Config
	localPNN types.PNN

	registry    *registry.Registry
	recoveryGate *gate.Gate
	takeoverGate *gate.Gate
	bookkeeper  *ban.Bookkeeper
	store       kvstore.Store
	reclockLock reclock.Lock

	dispatcher *rpc.Dispatcher
	pool       *rpc.Pool
	server     *rpc.Server

	election *election.Engine
	takeover *takeover.Coordinator
	handlers *dispatch.Handlers
	recoveryEngine *recovery.Engine
	monitor  *monitor.Coordinator
	events   *events.Broker

	startTime  time.Time
	generation atomic.Uint32
	srvIDSeq   atomic.Uint64

	mu            sync.Mutex
	ipAssignments map[string]types.PNN
}

// newApp constructs every subsystem and wires each one's Callbacks
// against the rest, following the same lazy-indirection pattern for
// self-referential closures (a callback that needs the very Handlers
// it is passed into) that the rest of this coordinator uses for
// circular construction: a pointer field is captured by the closure
// before the object it points to exists, and assigned right after.
func newApp(cfg config.Config, localPNN types.PNN) (*app, error) {
	store, err := kvstore.NewBoltStore(cfg.StateDir, fmt.Sprintf("%d", localPNN))
	if err != nil {
		return nil, fmt.Errorf("recoverd: open local store: %w", err)
	}

	var reclockLock reclock.Lock
	if cfg.RecoveryLockFile != "" {
		reclockLock = reclock.NewFileLock(cfg.RecoveryLockFile)
	}

	a := &app{
		cfg:           cfg,
		localPNN:      localPNN,
		registry:      registry.New(localPNN),
		recoveryGate:  gate.New(),
		takeoverGate:  gate.New(),
		bookkeeper:    ban.New(localPNN, cfg.GracePeriod(), cfg.BanPeriod()),
		store:         store,
		reclockLock:   reclockLock,
		dispatcher:    rpc.NewDispatcher(),
		pool:          rpc.NewPool(),
		events:        events.NewBroker(),
		startTime:     processStartTime(),
		ipAssignments: make(map[string]types.PNN),
	}
	a.server = rpc.NewServer(a.dispatcher)

	nodes, err := loadNodesFile(cfg.NodesFile)
	if err != nil {
		return nil, fmt.Errorf("recoverd: load nodes file: %w", err)
	}
	a.registry.Replace(nodes)

	a.election = election.New(localPNN, cfg.ElectionTimeout(), cfg.FastStartTimeout(), a.electionMessage, election.Callbacks{
		Broadcast: a.electionBroadcast,
		Concede:   a.electionConcede,
		Settled:   a.electionSettled,
	})

	var runner takeover.Runner = takeover.NoopRunner{}
	if cfg.IPFailoverEnabled {
		runner = takeover.LoggingRunner{Next: takeover.NoopRunner{}}
	}
	a.takeover = takeover.New(a.takeoverGate, runner, takeover.Callbacks{
		DisableTakeoverRunsOnPeers: a.disableTakeoverRunsOnPeers,
		EnableTakeoverRunsOnPeers:  a.enableTakeoverRunsOnPeers,
		AssignCredits: func(pnn types.PNN, n uint32) {
			a.bookkeeper.AssignCredits(pnn, n, a.registry.LocalInactive())
		},
	})

	var handlersRef *dispatch.Handlers
	dispatchCB := dispatch.Callbacks{
		BroadcastFlags: a.broadcastFlags,
		DetachDatabase: func(dbID uint32) error { return handlersRef.DetachLocal(dbID) },
		ReloadNodes:    a.reloadNodesFile,
		ArmDeferredTakeoverRun: func() {
			if cfg.DeferredRebalance() <= 0 {
				return
			}
			time.AfterFunc(cfg.DeferredRebalance(), func() {
				a.takeover.Run(context.Background(), a.registry.Snapshot(), false)
			})
		},
		MemStats:           a.memStats,
		UpdateIPAssignment: a.updateIPAssignment,
		ElectionInProgress: func() bool { return a.election.InProgress() },
		RecoveryInProgress: func() bool { return a.recoveryGate.IsInProgress() },
		ForceBan:           a.forceBan,
		ForceElection:      func(ctx context.Context) { a.election.Start(ctx, false) },
		RecentEvents:       a.events.Recent,
	}
	a.handlers = dispatch.New(a.registry, a.election, a.takeover, a.bookkeeper, a.recoveryGate, a.store, dispatchCB)
	handlersRef = a.handlers
	a.handlers.RegisterAll(a.dispatcher, a.takeoverGate)

	a.recoveryEngine = recovery.New(a.recoveryGate, a.recoveryCallbacks())
	a.monitor = monitor.New(localPNN, a.registry, a.election, a.bookkeeper, a.recoveryGate, a.takeover, a.handlers, reclockLock, cfg.RecoverInterval(), cfg.IPFailoverEnabled, a.monitorCallbacks())

	return a, nil
}

// processStartTime anchors election priority time: the first node to
// start wins ties against a later-starting challenger with an
// otherwise identical message, matching the teacher's own
// earliest-wins election tiebreak idiom.
func processStartTime() time.Time { return time.Now() }

// run starts the Control RPC server, the metrics endpoint, and the
// monitor loop, blocking until ctx is canceled.
func (a *app) run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(a.cfg.ListenAddress); err != nil {
			errCh <- fmt.Errorf("recoverd: control RPC server: %w", err)
		}
	}()

	a.events.Start()
	go a.serveMetrics()

	a.election.Start(ctx, true)
	go a.monitor.Run(ctx)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	a.server.Stop()
	a.election.Stop()
	a.events.Stop()
	if a.reclockLock != nil {
		_ = a.reclockLock.Release()
	}
	return a.pool.Close()
}

func (a *app) serveMetrics() {
	if a.cfg.MetricsAddress == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	logger := log.WithComponent("metrics")
	logger.Info().Str("addr", a.cfg.MetricsAddress).Msg("metrics listening")
	if err := http.ListenAndServe(a.cfg.MetricsAddress, mux); err != nil {
		logger.Error().Err(err).Msg("metrics server stopped")
	}
}

func (a *app) memStats() map[string]uint64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return map[string]uint64{
		"heap_alloc_bytes": m.HeapAlloc,
		"goroutines":       uint64(runtime.NumGoroutine()),
	}
}

func (a *app) updateIPAssignment(_ context.Context, ip string, pnn types.PNN) {
	a.mu.Lock()
	a.ipAssignments[ip] = pnn
	a.mu.Unlock()
}

func (a *app) nextGeneration() uint32 {
	for {
		g := a.generation.Add(1)
		if g != types.InvalidGeneration {
			return g
		}
	}
}

func (a *app) nextSrvID() uint64 { return a.srvIDSeq.Add(1) }

// forceBan ORs FlagBanned into pnn's current flags immediately and
// schedules the flag to clear after d, matching the CLI's
// bypass-credit-accumulation ban contract.
func (a *app) forceBan(pnn types.PNN, d time.Duration) error {
	node, ok := a.registry.Node(pnn)
	if !ok {
		return fmt.Errorf("recoverd: no such node %d", pnn)
	}
	if _, ok := a.registry.SetFlags(pnn, node.Flags|types.FlagBanned); !ok {
		return fmt.Errorf("recoverd: node %d vanished from the node map", pnn)
	}
	if pnn == a.localPNN {
		a.registry.SetLocalFlags(node.Flags | types.FlagBanned)
	}
	if d > 0 {
		time.AfterFunc(d, func() {
			if current, ok := a.registry.Node(pnn); ok {
				a.registry.SetFlags(pnn, current.Flags&^types.FlagBanned)
			}
		})
	}
	return nil
}

func (a *app) reloadNodesFile(ctx context.Context) error {
	nodes, err := loadNodesFile(a.cfg.NodesFile)
	if err != nil {
		return err
	}
	a.registry.Replace(nodes)
	return nil
}

func (a *app) targetsFor(nodes []types.Node) []rpc.Target {
	out := make([]rpc.Target, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, rpc.Target{PNN: n.PNN, Address: n.Address})
	}
	return out
}

func (a *app) fanOut(ctx context.Context, targets []rpc.Target, op string, req any) bool {
	var payload json.RawMessage
	if req != nil {
		b, err := json.Marshal(req)
		if err != nil {
			log.WithComponent("rpc").Error().Err(err).Str("op", op).Msg("encode fan-out payload")
			return false
		}
		payload = b
	}
	logger := log.WithComponent("rpc")
	return rpc.FanOut(ctx, targets, op, payload, rpcPerNodeTimeout, a.pool.Call, nil, func(pnn types.PNN, err error) {
		logger.Debug().Uint32("pnn", uint32(pnn)).Str("op", op).Err(err).Msg("fan-out call failed")
	})
}

// rpcPerNodeTimeout bounds every Control RPC fan-out call; a peer that
// cannot answer within this window is treated as failed for that
// round, not retried inline.
const rpcPerNodeTimeout = 10 * time.Second

func (a *app) addr(pnn types.PNN) (string, error) {
	n, ok := a.registry.Node(pnn)
	if !ok {
		return "", fmt.Errorf("recoverd: no known address for pnn %d", pnn)
	}
	return n.Address, nil
}

func (a *app) call(ctx context.Context, pnn types.PNN, op string, req any) (json.RawMessage, error) {
	addr, err := a.addr(pnn)
	if err != nil {
		return nil, err
	}
	var payload json.RawMessage
	if req != nil {
		b, err := json.Marshal(req)
		if err != nil {
			return nil, fmt.Errorf("recoverd: encode %s payload: %w", op, err)
		}
		payload = b
	}
	return a.pool.Call(ctx, addr, op, payload)
}

func callDecode[T any](ctx context.Context, a *app, pnn types.PNN, op string, req any) (T, error) {
	var zero T
	raw, err := a.call(ctx, pnn, op, req)
	if err != nil {
		return zero, err
	}
	var out T
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return zero, fmt.Errorf("recoverd: decode %s reply: %w", op, err)
	}
	return out, nil
}

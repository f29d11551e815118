package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/recoverd/pkg/ban"
	"github.com/cuemby/recoverd/pkg/election"
	"github.com/cuemby/recoverd/pkg/gate"
	"github.com/cuemby/recoverd/pkg/registry"
	"github.com/cuemby/recoverd/pkg/takeover"
	"github.com/cuemby/recoverd/pkg/types"
)

// fakeStore is a minimal in-memory kvstore.Store for exercising
// VACUUM_FETCH without a real database engine.
type fakeStore struct {
	mu      sync.Mutex
	records map[uint32]map[string]types.Record
	locked  map[string]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		records: make(map[uint32]map[string]types.Record),
		locked:  make(map[string]bool),
	}
}

func (s *fakeStore) Open(dbID uint32, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.records[dbID] == nil {
		s.records[dbID] = make(map[string]types.Record)
	}
	return nil
}

func (s *fakeStore) Fetch(dbID uint32, key []byte) (types.Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[dbID][string(key)]
	return rec, ok, nil
}

func (s *fakeStore) Put(dbID uint32, rec types.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.records[dbID] == nil {
		s.records[dbID] = make(map[string]types.Record)
	}
	s.records[dbID][string(rec.Key)] = rec
	return nil
}

func (s *fakeStore) Traverse(dbID uint32, fn func(types.Record) error) error {
	s.mu.Lock()
	recs := make([]types.Record, 0, len(s.records[dbID]))
	for _, r := range s.records[dbID] {
		recs = append(recs, r)
	}
	s.mu.Unlock()
	for _, r := range recs {
		if err := fn(r); err != nil {
			return err
		}
	}
	return nil
}

func (s *fakeStore) Wipe(dbID uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[dbID] = make(map[string]types.Record)
	return nil
}

func (s *fakeStore) Detach(dbID uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, dbID)
	return nil
}

func (s *fakeStore) TryLockChain(dbID uint32, key []byte) (func(), bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lockKey := fmt.Sprintf("%d:%s", dbID, key)
	if s.locked[lockKey] {
		return nil, false
	}
	s.locked[lockKey] = true
	return func() {
		s.mu.Lock()
		delete(s.locked, lockKey)
		s.mu.Unlock()
	}, true
}

func (s *fakeStore) Close() error { return nil }

func newTestHandlers(t *testing.T, localPNN types.PNN, believedMaster types.PNN) (*Handlers, *fakeStore) {
	t.Helper()

	reg := registry.New(localPNN)
	reg.Replace(types.NodeMap{Nodes: []types.Node{
		{PNN: 1}, {PNN: 2}, {PNN: 3},
	}})

	elec := election.New(localPNN, time.Second, time.Second, func() types.ElectionMessage {
		return types.ElectionMessage{PNN: localPNN}
	}, election.Callbacks{})
	if believedMaster != localPNN {
		// Force the engine to concede to believedMaster by feeding it a
		// message that always wins.
		elec.Receive(context.Background(), types.ElectionMessage{PNN: believedMaster, HasRecmaster: true})
	} else {
		elec.Start(context.Background(), true)
	}
	t.Cleanup(elec.Stop)

	bk := ban.New(localPNN, time.Hour, time.Minute)
	tko := takeover.New(gate.New(), fakeRunner{}, takeover.Callbacks{})
	store := newFakeStore()

	h := New(reg, elec, tko, bk, gate.New(), store, Callbacks{})
	return h, store
}

type fakeRunner struct{}

func (fakeRunner) Run(ctx context.Context, nodes types.NodeMap, forceRebalance map[types.PNN]struct{}) (map[types.PNN]error, error) {
	return nil, nil
}

func mustJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func TestHandlers_Election_UpdatesBelievedMaster(t *testing.T) {
	h, _ := newTestHandlers(t, 1, 1)

	_, err := h.handleElection(context.Background(), mustJSON(t, ElectionPayload{
		Message: types.ElectionMessage{PNN: 2, HasRecmaster: true},
	}))
	require.NoError(t, err)
	assert.Equal(t, types.PNN(2), h.election.BelievedMaster())
}

func TestHandlers_SetNodeFlags_MasterQueuesRebalanceOnDisableChange(t *testing.T) {
	h, _ := newTestHandlers(t, 1, 1)

	_, err := h.handleSetNodeFlags(context.Background(), mustJSON(t, SetNodeFlagsPayload{
		PNN: 2, Flags: types.FlagDisabled,
	}))
	require.NoError(t, err)

	// RequestRebalance is the observable effect; the takeover
	// coordinator tracks it internally, so assert indirectly by
	// draining a takeover run and checking the force-rebalance set was
	// non-empty via a Runner spy.
	var sawRebalance map[types.PNN]struct{}
	h.takeover = takeover.New(gate.New(), fakeRunnerFunc(func(ctx context.Context, nodes types.NodeMap, fr map[types.PNN]struct{}) (map[types.PNN]error, error) {
		sawRebalance = fr
		return nil, nil
	}), takeover.Callbacks{})
	_, err = h.handleSetNodeFlags(context.Background(), mustJSON(t, SetNodeFlagsPayload{
		PNN: 3, Flags: types.FlagDisabled,
	}))
	require.NoError(t, err)
	ok := h.takeover.Run(context.Background(), types.NodeMap{}, false)
	assert.True(t, ok)
	assert.Contains(t, sawRebalance, types.PNN(3))
}

type fakeRunnerFunc func(ctx context.Context, nodes types.NodeMap, forceRebalance map[types.PNN]struct{}) (map[types.PNN]error, error)

func (f fakeRunnerFunc) Run(ctx context.Context, nodes types.NodeMap, forceRebalance map[types.PNN]struct{}) (map[types.PNN]error, error) {
	return f(ctx, nodes, forceRebalance)
}

func TestHandlers_PushNodeFlags_NonMasterIgnores(t *testing.T) {
	h, _ := newTestHandlers(t, 1, 2)

	var called bool
	h.cb.BroadcastFlags = func(ctx context.Context, pnn types.PNN, flags types.NodeFlag) { called = true }

	_, err := h.handlePushNodeFlags(context.Background(), mustJSON(t, PushNodeFlagsPayload{PNN: 3, Flags: types.FlagDisabled}))
	require.NoError(t, err)
	assert.False(t, called)
}

func TestHandlers_PushNodeFlags_MasterBroadcasts(t *testing.T) {
	h, _ := newTestHandlers(t, 1, 1)

	var gotPNN types.PNN
	h.cb.BroadcastFlags = func(ctx context.Context, pnn types.PNN, flags types.NodeFlag) { gotPNN = pnn }

	_, err := h.handlePushNodeFlags(context.Background(), mustJSON(t, PushNodeFlagsPayload{PNN: 3, Flags: types.FlagDisabled}))
	require.NoError(t, err)
	assert.Equal(t, types.PNN(3), gotPNN)
}

func TestHandlers_VacuumFetch_MigratesUnlockedKeysAndSkipsLocked(t *testing.T) {
	h, store := newTestHandlers(t, 1, 1)
	store.Open(7, "db")

	unlock, ok := store.TryLockChain(7, []byte("busy"))
	require.True(t, ok)
	defer unlock()

	reply, err := h.handleVacuumFetch(context.Background(), mustJSON(t, VacuumFetchPayload{
		DBID: 7,
		Records: []types.Record{
			{Key: []byte("free"), Value: []byte("v1")},
			{Key: []byte("busy"), Value: []byte("v2")},
		},
	}))
	require.NoError(t, err)

	var r VacuumFetchReply
	require.NoError(t, json.Unmarshal(reply, &r))
	require.Len(t, r.MigratedKeys, 1)
	assert.Equal(t, []byte("free"), r.MigratedKeys[0])

	rec, ok, _ := store.Fetch(7, []byte("free"))
	require.True(t, ok)
	assert.Equal(t, []byte("v1"), rec.Value)

	_, ok, _ = store.Fetch(7, []byte("busy"))
	assert.False(t, ok)
}

func TestHandlers_DetachDatabase_CallsCallback(t *testing.T) {
	h, _ := newTestHandlers(t, 1, 1)
	var gotID uint32
	h.cb.DetachDatabase = func(dbID uint32) error { gotID = dbID; return nil }

	_, err := h.handleDetachDatabase(context.Background(), mustJSON(t, DetachDatabasePayload{DBID: 9}))
	require.NoError(t, err)
	assert.Equal(t, uint32(9), gotID)
}

func TestHandlers_TakeoverRun_Enqueues(t *testing.T) {
	h, _ := newTestHandlers(t, 1, 1)

	_, err := h.handleTakeoverRun(context.Background(), mustJSON(t, TakeoverRunPayload{SrvID: 42}))
	require.NoError(t, err)

	reqs := h.DrainReallocateRequests()
	require.Len(t, reqs, 1)
	assert.Equal(t, uint64(42), reqs[0].SrvID)

	assert.Empty(t, h.DrainReallocateRequests())
}

func TestHandlers_DisableRecoveries_RepliesWithOwnPNN(t *testing.T) {
	h, _ := newTestHandlers(t, 5, 5)

	reply, err := h.handleDisableRecoveries(context.Background(), mustJSON(t, DisableTimeoutPayload{TimeoutSeconds: 1}))
	require.NoError(t, err)

	var r DisableRecoveriesReply
	require.NoError(t, json.Unmarshal(reply, &r))
	assert.Equal(t, types.PNN(5), r.PNN)
}

func TestHandlers_DisableRecoveries_RefusedWhileInProgress(t *testing.T) {
	h, _ := newTestHandlers(t, 1, 1)
	require.True(t, h.recovery.Begin())
	defer h.recovery.End()

	_, err := h.handleDisableRecoveries(context.Background(), mustJSON(t, DisableTimeoutPayload{TimeoutSeconds: 1}))
	require.Error(t, err)
}

func TestHandlers_Banning_OnlyAppliedWhenMaster(t *testing.T) {
	h, _ := newTestHandlers(t, 1, 2) // not master

	_, err := h.handleBanning(context.Background(), mustJSON(t, BanningPayload{PNN: 9, Credits: 100}))
	require.NoError(t, err)
	assert.Equal(t, uint32(0), h.ban.Credits(9))

	h2, _ := newTestHandlers(t, 1, 1) // master
	_, err = h2.handleBanning(context.Background(), mustJSON(t, BanningPayload{PNN: 9, Credits: 100}))
	require.NoError(t, err)
	assert.Equal(t, uint32(100), h2.ban.Credits(9))
}

func TestHandlers_RebalanceNode_ArmsDeferredTimerCallback(t *testing.T) {
	h, _ := newTestHandlers(t, 1, 1)
	var armed bool
	h.cb.ArmDeferredTakeoverRun = func() { armed = true }

	_, err := h.handleRebalanceNode(context.Background(), mustJSON(t, RebalanceNodePayload{PNN: 4}))
	require.NoError(t, err)
	assert.True(t, armed)
}

func TestHandlers_RecdUpdateIP_MasterOnly(t *testing.T) {
	h, _ := newTestHandlers(t, 1, 2) // not master
	var called bool
	h.cb.UpdateIPAssignment = func(ctx context.Context, ip string, pnn types.PNN) { called = true }
	_, err := h.handleRecdUpdateIP(context.Background(), mustJSON(t, RecdUpdateIPPayload{IP: "10.0.0.1", PNN: 2}))
	require.NoError(t, err)
	assert.False(t, called)

	h2, _ := newTestHandlers(t, 1, 1) // master
	h2.cb.UpdateIPAssignment = func(ctx context.Context, ip string, pnn types.PNN) { called = true }
	_, err = h2.handleRecdUpdateIP(context.Background(), mustJSON(t, RecdUpdateIPPayload{IP: "10.0.0.1", PNN: 2}))
	require.NoError(t, err)
	assert.True(t, called)
}

func TestHandlers_MemDump_ReturnsStatsFromCallback(t *testing.T) {
	h, _ := newTestHandlers(t, 1, 1)
	h.cb.MemStats = func() map[string]uint64 { return map[string]uint64{"records": 3} }

	reply, err := h.handleMemDump(context.Background(), nil)
	require.NoError(t, err)

	var r MemDumpReply
	require.NoError(t, json.Unmarshal(reply, &r))
	assert.Equal(t, uint64(3), r.Stats["records"])
}

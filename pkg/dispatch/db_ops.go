package dispatch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cuemby/recoverd/pkg/rpc"
	"github.com/cuemby/recoverd/pkg/types"
)

// registerDBOps installs the recovery-engine's point-to-point
// operations: every one of these acts purely on the receiving node's
// own local state, never on a peer's.
func (h *Handlers) registerDBOps(d *rpc.Dispatcher) {
	d.Register(OpGetDatabases, h.handleGetDatabases)
	d.Register(OpCreateDatabase, h.handleCreateDatabase)
	d.Register(OpGetRecMode, h.handleGetRecMode)
	d.Register(OpSetRecMode, h.handleSetRecMode)
	d.Register(OpFreezeDatabase, h.handleFreezeDatabase)
	d.Register(OpThawDatabase, h.handleThawDatabase)
	d.Register(OpTransactionStart, h.handleTransactionStart)
	d.Register(OpTransactionCommit, h.handleTransactionCommit)
	d.Register(OpSeqnum, h.handleSeqnum)
	d.Register(OpPullRecords, h.handlePullRecords)
	d.Register(OpPushRecords, h.handlePushRecords)
	d.Register(OpGetVNNMap, h.handleGetVNNMap)
	d.Register(OpPushVNNMap, h.handlePushVNNMap)
	d.Register(OpGetNodeMap, h.handleGetNodeMap)
	d.Register(OpGetMaster, h.handleGetMaster)
	d.Register(OpRecovered, h.handleRecovered)
}

// SeedDatabases installs dbs as the locally attached database set at
// startup, before the first recovery has had a chance to reconcile
// schemas across the cluster.
func (h *Handlers) SeedDatabases(dbs []types.Database) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.databases = append([]types.Database(nil), dbs...)
}

// DetachLocal removes dbID from both the local database registry and
// its backing store. Wire dispatch Callbacks.DetachDatabase to it to
// make DETACH_DATABASE actually drop the database rather than only
// notifying whatever external bookkeeping the caller supplies.
func (h *Handlers) DetachLocal(dbID uint32) error {
	if err := h.store.Detach(dbID); err != nil {
		return fmt.Errorf("dispatch: detach database %d: %w", dbID, err)
	}
	h.mu.Lock()
	for i, db := range h.databases {
		if db.ID == dbID {
			h.databases = append(h.databases[:i], h.databases[i+1:]...)
			break
		}
	}
	h.mu.Unlock()
	return nil
}

func (h *Handlers) handleGetDatabases(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	h.mu.Lock()
	dbs := append([]types.Database(nil), h.databases...)
	h.mu.Unlock()
	return encode(DatabasesReply{Databases: dbs})
}

func (h *Handlers) handleCreateDatabase(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	p, err := decode[CreateDatabasePayload](payload)
	if err != nil {
		return nil, err
	}
	if err := h.store.Open(p.Database.ID, p.Database.Name); err != nil {
		return nil, fmt.Errorf("dispatch: open database %d: %w", p.Database.ID, err)
	}
	h.mu.Lock()
	found := false
	for _, db := range h.databases {
		if db.ID == p.Database.ID {
			found = true
			break
		}
	}
	if !found {
		h.databases = append(h.databases, p.Database)
	}
	h.mu.Unlock()
	return nil, nil
}

func (h *Handlers) handleGetRecMode(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	h.mu.Lock()
	active := h.recModeActive
	h.mu.Unlock()
	return encode(RecModePayload{Active: active})
}

func (h *Handlers) handleSetRecMode(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	p, err := decode[RecModePayload](payload)
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	h.recModeActive = p.Active
	h.mu.Unlock()
	return nil, nil
}

// handleFreezeDatabase and handleThawDatabase are no-ops against
// BoltStore: bbolt serializes its own writers internally, so "frozen"
// here means only what handleSetRecMode already tracks. A store
// backend that needs an explicit quiesce point would hook it here.
func (h *Handlers) handleFreezeDatabase(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	return nil, nil
}

func (h *Handlers) handleThawDatabase(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	return nil, nil
}

func (h *Handlers) handleTransactionStart(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	return nil, nil
}

func (h *Handlers) handleTransactionCommit(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	return nil, nil
}

func (h *Handlers) handleSeqnum(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	p, err := decode[SeqnumPayload](payload)
	if err != nil {
		return nil, err
	}
	var seqnum uint64
	err = h.store.Traverse(p.DBID, func(rec types.Record) error {
		if rec.Header.RSN > seqnum {
			seqnum = rec.Header.RSN
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("dispatch: seqnum for database %d: %w", p.DBID, err)
	}
	return encode(SeqnumReply{Seqnum: seqnum})
}

func (h *Handlers) handlePullRecords(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	p, err := decode[PullRecordsPayload](payload)
	if err != nil {
		return nil, err
	}
	var records []types.Record
	err = h.store.Traverse(p.DBID, func(rec types.Record) error {
		records = append(records, rec)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("dispatch: pull records for database %d: %w", p.DBID, err)
	}
	return encode(PullRecordsReply{Records: records})
}

func (h *Handlers) handlePushRecords(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	p, err := decode[PushRecordsPayload](payload)
	if err != nil {
		return nil, err
	}
	if err := h.store.Wipe(p.DBID); err != nil {
		return nil, fmt.Errorf("dispatch: wipe database %d: %w", p.DBID, err)
	}
	for _, rec := range p.Records {
		if err := h.store.Put(p.DBID, rec); err != nil {
			return nil, fmt.Errorf("dispatch: push record into database %d: %w", p.DBID, err)
		}
	}
	return nil, nil
}

func (h *Handlers) handleGetVNNMap(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	h.mu.Lock()
	vnn := h.vnnMap
	h.mu.Unlock()
	return encode(VNNMapReply{VNNMap: vnn})
}

func (h *Handlers) handlePushVNNMap(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	p, err := decode[VNNMapReply](payload)
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	h.vnnMap = p.VNNMap
	h.mu.Unlock()
	return nil, nil
}

func (h *Handlers) handleGetNodeMap(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	return encode(NodeMapReply{NodeMap: h.registry.Snapshot()})
}

func (h *Handlers) handleGetMaster(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	return encode(MasterReply{PNN: h.election.BelievedMaster()})
}

// handleRecovered is consumed by clients watching for a freshly
// completed recovery; the coordinator itself has no further state to
// update on receipt.
func (h *Handlers) handleRecovered(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	return nil, nil
}

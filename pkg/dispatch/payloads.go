package dispatch

import (
	"github.com/cuemby/recoverd/pkg/events"
	"github.com/cuemby/recoverd/pkg/types"
)

// Operation names every Dispatch handler is registered under. The
// cluster-internal ops (ELECTION .. RECD_UPDATE_IP) are exchanged
// between coordinator peers; the admin ops (STATUS .. EVENTS) are
// exchanged between the CLI's pkg/client and the local coordinator
// only.
const (
	OpElection            = "ELECTION"
	OpSetNodeFlags        = "SET_NODE_FLAGS"
	OpPushNodeFlags       = "PUSH_NODE_FLAGS"
	OpReconfigure         = "RECONFIGURE"
	OpVacuumFetch         = "VACUUM_FETCH"
	OpDetachDatabase      = "DETACH_DATABASE"
	OpReloadNodes         = "RELOAD_NODES"
	OpTakeoverRun         = "TAKEOVER_RUN"
	OpDisableIPCheck      = "DISABLE_IP_CHECK"
	OpDisableTakeoverRuns = "DISABLE_TAKEOVER_RUNS"
	OpDisableRecoveries   = "DISABLE_RECOVERIES"
	OpMemDump             = "MEM_DUMP"
	OpBanning             = "BANNING"
	OpRebalanceNode       = "REBALANCE_NODE"
	OpRecdUpdateIP        = "RECD_UPDATE_IP"

	OpAdminStatus        = "STATUS"
	OpAdminBan           = "ADMIN_BAN"
	OpAdminForceElection = "FORCE_ELECTION"
	OpAdminEvents        = "EVENTS"

	// Recovery-engine point-to-point ops (spec.md §4.6 phases 1/2/3/4/5/6/7/8),
	// each handled against the receiving node's own local state: a
	// recovery master never reaches into a peer's memory, it only ever
	// calls these ops against the peer's own Handlers instance.
	OpGetDatabases      = "GET_DATABASES"
	OpCreateDatabase    = "CREATE_DATABASE"
	OpGetRecMode        = "GET_RECMODE"
	OpSetRecMode        = "SET_RECMODE"
	OpFreezeDatabase    = "FREEZE_DATABASE"
	OpThawDatabase      = "THAW_DATABASE"
	OpTransactionStart  = "TRANSACTION_START"
	OpTransactionCommit = "TRANSACTION_COMMIT"
	OpSeqnum            = "SEQNUM"
	OpPullRecords       = "PULL_RECORDS"
	OpPushRecords       = "PUSH_RECORDS"
	OpGetVNNMap         = "GET_VNNMAP"
	OpPushVNNMap        = "PUSH_VNNMAP"
	OpGetNodeMap        = "GET_NODEMAP"
	OpGetMaster         = "GET_MASTER"
	OpRecovered         = "RECOVERED"
)

// ElectionPayload carries one node's election broadcast.
type ElectionPayload struct {
	Message types.ElectionMessage `json:"message"`
}

// SetNodeFlagsPayload names the node whose flags changed and its new
// flag bitset.
type SetNodeFlagsPayload struct {
	PNN   types.PNN      `json:"pnn"`
	Flags types.NodeFlag `json:"flags"`
}

// PushNodeFlagsPayload is identical in shape to SetNodeFlagsPayload but
// carries a master's re-broadcast of a flag change to the rest of the
// cluster.
type PushNodeFlagsPayload = SetNodeFlagsPayload

// VacuumFetchPayload lists the records a peer is offering to migrate
// into the local copy of dbID.
type VacuumFetchPayload struct {
	DBID    uint32         `json:"db_id"`
	Records []types.Record `json:"records"`
}

// VacuumFetchReply reports which offered keys were actually migrated;
// keys skipped due to chain-lock contention are simply absent.
type VacuumFetchReply struct {
	MigratedKeys [][]byte `json:"migrated_keys,omitempty"`
}

// DetachDatabasePayload names the database to remove from the local
// registry.
type DetachDatabasePayload struct {
	DBID uint32 `json:"db_id"`
}

// TakeoverRunPayload carries the requester's SrvID, which is stored
// with the queued reallocate request.
type TakeoverRunPayload struct {
	SrvID uint64 `json:"srv_id"`
}

// TakeoverRunReply is the reply shape for a served takeover run: the
// PNN that served it, or -1 on failure. Neither the TAKEOVER_RUN
// handler nor the monitor loop sends it.
type TakeoverRunReply struct {
	PNN int64 `json:"pnn"`
}

// DisableTimeoutPayload carries a disable-for-t-seconds request shared
// by DISABLE_IP_CHECK, DISABLE_TAKEOVER_RUNS, and DISABLE_RECOVERIES.
type DisableTimeoutPayload struct {
	TimeoutSeconds float64 `json:"timeout_seconds"`
}

// DisableRecoveriesReply carries the replying node's own PNN on
// success.
type DisableRecoveriesReply struct {
	PNN types.PNN `json:"pnn"`
}

// MemDumpReply serializes internal allocator/bookkeeping counters for
// diagnostics.
type MemDumpReply struct {
	Stats map[string]uint64 `json:"stats"`
}

// BanningPayload assigns n ban credits against PNN.
type BanningPayload struct {
	PNN     types.PNN `json:"pnn"`
	Credits uint32    `json:"credits"`
}

// RebalanceNodePayload names a node to force into the next takeover
// run's rebalance set.
type RebalanceNodePayload struct {
	PNN types.PNN `json:"pnn"`
}

// RecdUpdateIPPayload reports that ip is now assigned to PNN, for the
// master's IP-assignment index.
type RecdUpdateIPPayload struct {
	IP  string    `json:"ip"`
	PNN types.PNN `json:"pnn"`
}

// AdminNodeStatus is one node's status line in an AdminStatusReply.
type AdminNodeStatus struct {
	PNN          types.PNN        `json:"pnn"`
	Address      string           `json:"address"`
	Flags        types.NodeFlag   `json:"flags"`
	Capabilities types.Capability `json:"capabilities"`
}

// AdminStatusReply answers the CLI's `recoverd status` command.
type AdminStatusReply struct {
	LocalPNN           types.PNN         `json:"local_pnn"`
	BelievedMaster     types.PNN         `json:"believed_master"`
	ElectionInProgress bool              `json:"election_in_progress"`
	RecoveryInProgress bool              `json:"recovery_in_progress"`
	RecoveryDisabled   bool              `json:"recovery_disabled"`
	Nodes              []AdminNodeStatus `json:"nodes"`
}

// AdminBanPayload requests that the local coordinator ban pnn for the
// given duration, bypassing the normal credit-accumulation path.
type AdminBanPayload struct {
	PNN             types.PNN `json:"pnn"`
	DurationSeconds float64   `json:"duration_seconds"`
}

// AdminEventsPayload bounds how many recent events to return.
type AdminEventsPayload struct {
	Limit int `json:"limit"`
}

// AdminEventsReply carries the most recent events, newest last.
type AdminEventsReply struct {
	Events []events.Event `json:"events"`
}

// DatabasesReply lists the responding node's locally attached databases.
type DatabasesReply struct {
	Databases []types.Database `json:"databases"`
}

// CreateDatabasePayload asks the responding node to attach db locally,
// creating its backing storage if it does not already exist.
type CreateDatabasePayload struct {
	Database types.Database `json:"database"`
}

// RecModePayload carries a recovery-mode (frozen-for-recovery) flag.
type RecModePayload struct {
	Active bool `json:"active"`
}

// TransactionPayload scopes a transaction start/commit to a generation.
type TransactionPayload struct {
	Generation uint32 `json:"generation"`
}

// SeqnumPayload names the database whose local sequence number is
// being queried.
type SeqnumPayload struct {
	DBID uint32 `json:"db_id"`
}

// SeqnumReply carries the queried database's local sequence number.
type SeqnumReply struct {
	Seqnum uint64 `json:"seqnum"`
}

// PullRecordsPayload names the database whose full contents are being
// pulled for recovery merge.
type PullRecordsPayload struct {
	DBID uint32 `json:"db_id"`
}

// PullRecordsReply carries every record currently stored in the
// requested database.
type PullRecordsReply struct {
	Records []types.Record `json:"records"`
}

// PushRecordsPayload installs the merged record set for dbID as of
// generation, replacing whatever the responding node held before.
type PushRecordsPayload struct {
	DBID       uint32         `json:"db_id"`
	Generation uint32         `json:"generation"`
	Records    []types.Record `json:"records"`
}

// VNNMapReply carries the responding node's currently installed VNN map.
type VNNMapReply struct {
	VNNMap types.VNNMap `json:"vnn_map"`
}

// NodeMapReply carries the responding node's currently installed node map.
type NodeMapReply struct {
	NodeMap types.NodeMap `json:"node_map"`
}

// MasterReply carries the PNN the responding node currently believes
// is recovery master.
type MasterReply struct {
	PNN types.PNN `json:"pnn"`
}

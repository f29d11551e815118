package dispatch

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cuemby/recoverd/pkg/events"
)

// handleAdminStatus answers STATUS with a snapshot of the local node's
// view of the cluster: the registry's cached node map plus whatever the
// election engine and recovery gate currently believe.
func (h *Handlers) handleAdminStatus(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	snapshot := h.registry.Snapshot()
	nodes := make([]AdminNodeStatus, len(snapshot.Nodes))
	for i, n := range snapshot.Nodes {
		nodes[i] = AdminNodeStatus{
			PNN:          n.PNN,
			Address:      n.Address,
			Flags:        n.Flags,
			Capabilities: n.Capabilities,
		}
	}

	reply := AdminStatusReply{
		LocalPNN:         h.registry.LocalPNN(),
		BelievedMaster:   h.election.BelievedMaster(),
		RecoveryDisabled: h.recovery.IsDisabled(),
		Nodes:            nodes,
	}
	if h.cb.ElectionInProgress != nil {
		reply.ElectionInProgress = h.cb.ElectionInProgress()
	}
	if h.cb.RecoveryInProgress != nil {
		reply.RecoveryInProgress = h.cb.RecoveryInProgress()
	}
	return encode(reply)
}

// handleAdminBan bans a node immediately on operator request, bypassing
// the usual culprit-credit accumulation.
func (h *Handlers) handleAdminBan(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	p, err := decode[AdminBanPayload](payload)
	if err != nil {
		return nil, err
	}
	if h.cb.ForceBan == nil {
		return nil, nil
	}
	d := time.Duration(p.DurationSeconds * float64(time.Second))
	return nil, h.cb.ForceBan(p.PNN, d)
}

// handleAdminForceElection forces a fresh election on operator request.
func (h *Handlers) handleAdminForceElection(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	if h.cb.ForceElection != nil {
		h.cb.ForceElection(ctx)
	}
	return nil, nil
}

// handleAdminEvents answers EVENTS with up to p.Limit of the most
// recently published coordinator events.
func (h *Handlers) handleAdminEvents(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	p, err := decode[AdminEventsPayload](payload)
	if err != nil {
		return nil, err
	}
	var recent []events.Event
	if h.cb.RecentEvents != nil {
		recent = h.cb.RecentEvents(p.Limit)
	}
	return encode(AdminEventsReply{Events: recent})
}

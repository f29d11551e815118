package main

import (
	"context"

	"github.com/cuemby/recoverd/pkg/dispatch"
	"github.com/cuemby/recoverd/pkg/events"
	"github.com/cuemby/recoverd/pkg/metrics"
	"github.com/cuemby/recoverd/pkg/types"
)

// electionMessage builds this node's live election key: connection
// count and flags as they stand right now, never a snapshot cached
// from process startup.
func (a *app) electionMessage() types.ElectionMessage {
	local, _ := a.registry.LocalNode()
	return types.ElectionMessage{
		NumConnected: len(a.registry.Active()),
		PriorityTime: a.startTime,
		PNN:          a.localPNN,
		NodeFlags:    local.Flags,
		HasRecmaster: local.Capabilities.Has(types.CapRecmaster),
	}
}

func (a *app) electionBroadcast(ctx context.Context, msg types.ElectionMessage) {
	targets := a.targetsFor(a.registry.Snapshot().Nodes)
	a.fanOut(ctx, targets, dispatch.OpElection, dispatch.ElectionPayload{Message: msg})
	metrics.ElectionsTotal.Inc()
}

func (a *app) electionConcede(_ context.Context, winner types.PNN, _ types.ElectionMessage) {
	if a.reclockLock != nil {
		_ = a.reclockLock.Release()
	}
	a.events.Publish(&events.Event{
		Type:    events.EventElectionConceded,
		Message: "conceded election",
		Metadata: map[string]string{
			"winner": pnnString(winner),
		},
	})
}

func (a *app) electionSettled(_ context.Context, believedMaster types.PNN) {
	isMaster := believedMaster == a.localPNN
	metrics.IsRecoveryMaster.Set(boolToFloat(isMaster))
	if isMaster {
		metrics.ElectionsWonTotal.Inc()
		a.events.Publish(&events.Event{Type: events.EventElectionWon, Message: "elected recovery master"})
	} else {
		a.events.Publish(&events.Event{
			Type:    events.EventElectionStarted,
			Message: "election settled",
			Metadata: map[string]string{
				"believed_master": pnnString(believedMaster),
			},
		})
	}
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

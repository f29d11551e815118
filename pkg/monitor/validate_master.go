package monitor

import (
	"context"

	"github.com/cuemby/recoverd/pkg/types"
)

// validateMaster checks the believed master against everything the
// local node map knows, pulling the master's own node map when a
// self-reported inactive master needs absorbing into the local view.
func (c *Coordinator) validateMaster(ctx context.Context) Status {
	believed := c.election.BelievedMaster()
	if believed == types.UnknownPNN {
		return StatusElectionNeeded
	}

	masterNode, ok := c.registry.Node(believed)
	if !ok {
		return StatusElectionNeeded
	}
	if masterNode.Flags.Any(types.FlagDisconnected | types.FlagDeleted) {
		return StatusElectionNeeded
	}

	localNode, _ := c.registry.LocalNode()
	if !masterNode.Capabilities.Has(types.CapRecmaster) && localNode.Capabilities.Has(types.CapRecmaster) && !localNode.Inactive() {
		return StatusElectionNeeded
	}

	if c.cb.PullRemoteNodeMap == nil {
		return StatusOK
	}
	remoteMap, err := c.cb.PullRemoteNodeMap(ctx, believed)
	if err != nil {
		return StatusFailed
	}
	remoteSelf, ok := remoteMap.ByPNN(believed)
	if ok && remoteSelf.Inactive() && !localNode.Inactive() {
		c.registry.SetFlags(believed, remoteSelf.Flags)
		return StatusElectionNeeded
	}

	return StatusOK
}

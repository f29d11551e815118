package monitor

import (
	"context"
	"sync"

	"github.com/cuemby/recoverd/pkg/types"
)

// verifyRecmaster queries every active peer for its own believed
// master, fanning the queries out concurrently with their own
// per-node timeouts baked into QueryPeerMaster. Any disagreement
// assigns the dissenting peer a ban credit and demands a fresh
// election; any transport error defers to the next iteration.
func (c *Coordinator) verifyRecmaster(ctx context.Context, active []types.Node) Status {
	if c.cb.QueryPeerMaster == nil {
		return StatusOK
	}

	type result struct {
		pnn    types.PNN
		master types.PNN
		err    error
	}

	results := make(chan result, len(active))
	var wg sync.WaitGroup
	for _, n := range active {
		if n.PNN == c.localPNN {
			continue
		}
		wg.Add(1)
		go func(pnn types.PNN) {
			defer wg.Done()
			master, err := c.cb.QueryPeerMaster(ctx, pnn)
			results <- result{pnn: pnn, master: master, err: err}
		}(n.PNN)
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	failed := false
	electionNeeded := false
	for r := range results {
		if r.err != nil {
			failed = true
			continue
		}
		if r.master != c.localPNN {
			c.ban.AssignCredits(r.pnn, 1, c.registry.LocalInactive())
			electionNeeded = true
		}
	}

	if electionNeeded {
		return StatusElectionNeeded
	}
	if failed {
		return StatusFailed
	}
	return StatusOK
}

package takeover

import (
	"context"

	"github.com/cuemby/recoverd/pkg/log"
	"github.com/cuemby/recoverd/pkg/types"
)

// NoopRunner is a Runner that assigns nothing and never fails. It is
// useful for deployments with IP failover disabled (spec.md §9's
// "ip_failover_enabled") where a takeover run still needs to happen
// for its side effects (disabling peers, clearing forced-rebalance
// state) but there is no actual IP plumbing underneath.
type NoopRunner struct{}

// Run implements Runner.
func (NoopRunner) Run(ctx context.Context, nodes types.NodeMap, forceRebalance map[types.PNN]struct{}) (map[types.PNN]error, error) {
	return nil, nil
}

// LoggingRunner wraps another Runner and logs each run's shape before
// delegating, for deployments that want an audit trail of every
// takeover attempt independent of whatever the underlying Runner does.
type LoggingRunner struct {
	Next Runner
}

// Run implements Runner.
func (r LoggingRunner) Run(ctx context.Context, nodes types.NodeMap, forceRebalance map[types.PNN]struct{}) (map[types.PNN]error, error) {
	logger := log.WithComponent("takeover")
	logger.Info().
		Int("nodes", len(nodes.Nodes)).
		Int("force_rebalance", len(forceRebalance)).
		Msg("starting takeover run")

	failures, err := r.Next.Run(ctx, nodes, forceRebalance)

	event := logger.Info()
	if err != nil {
		event = logger.Error().Err(err)
	}
	event.Int("failures", len(failures)).Msg("takeover run finished")

	return failures, err
}

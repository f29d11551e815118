package client

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cuemby/recoverd/pkg/dispatch"
	"github.com/cuemby/recoverd/pkg/events"
	"github.com/cuemby/recoverd/pkg/rpc"
	"github.com/cuemby/recoverd/pkg/types"
)

// Client talks to one coordinator process's admin operations.
type Client struct {
	pool *rpc.Pool
	addr string
}

// New returns a Client that calls addr, the coordinator's own Control
// RPC listen address.
func New(addr string) *Client {
	return &Client{pool: rpc.NewPool(), addr: addr}
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	return c.pool.Close()
}

func (c *Client) call(ctx context.Context, op string, req any) (json.RawMessage, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("client: encode %s request: %w", op, err)
	}
	reply, err := c.pool.Call(ctx, c.addr, op, payload)
	if err != nil {
		return nil, fmt.Errorf("client: %s: %w", op, err)
	}
	return reply, nil
}

// Status reports the coordinator's current view of the cluster.
func (c *Client) Status(ctx context.Context) (dispatch.AdminStatusReply, error) {
	raw, err := c.call(ctx, dispatch.OpAdminStatus, struct{}{})
	if err != nil {
		return dispatch.AdminStatusReply{}, err
	}
	var reply dispatch.AdminStatusReply
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &reply); err != nil {
			return dispatch.AdminStatusReply{}, fmt.Errorf("client: decode status reply: %w", err)
		}
	}
	return reply, nil
}

// Ban immediately bans pnn for duration, bypassing the usual culprit
// credit accumulation.
func (c *Client) Ban(ctx context.Context, pnn types.PNN, duration time.Duration) error {
	_, err := c.call(ctx, dispatch.OpAdminBan, dispatch.AdminBanPayload{
		PNN:             pnn,
		DurationSeconds: duration.Seconds(),
	})
	return err
}

// ForceElection starts a fresh election on the target coordinator.
func (c *Client) ForceElection(ctx context.Context) error {
	_, err := c.call(ctx, dispatch.OpAdminForceElection, struct{}{})
	return err
}

// Events returns up to limit of the most recently published events.
// limit <= 0 returns every retained event.
func (c *Client) Events(ctx context.Context, limit int) ([]events.Event, error) {
	raw, err := c.call(ctx, dispatch.OpAdminEvents, dispatch.AdminEventsPayload{Limit: limit})
	if err != nil {
		return nil, err
	}
	var reply dispatch.AdminEventsReply
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &reply); err != nil {
			return nil, fmt.Errorf("client: decode events reply: %w", err)
		}
	}
	return reply.Events, nil
}

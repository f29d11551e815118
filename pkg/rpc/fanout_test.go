package rpc

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/recoverd/pkg/types"
)

func TestFanOut_AllSucceed(t *testing.T) {
	targets := []Target{
		{PNN: 0, Address: "node-0"},
		{PNN: 1, Address: "node-1"},
		{PNN: 2, Address: "node-2"},
	}

	call := func(ctx context.Context, addr, op string, payload json.RawMessage) (json.RawMessage, error) {
		return json.RawMessage(`"ok:` + addr + `"`), nil
	}

	var mu sync.Mutex
	successes := make(map[types.PNN]json.RawMessage)

	ok := FanOut(context.Background(), targets, "ping", nil, time.Second, call,
		func(pnn types.PNN, reply json.RawMessage) {
			mu.Lock()
			defer mu.Unlock()
			successes[pnn] = reply
		},
		func(pnn types.PNN, err error) {
			t.Fatalf("unexpected failure for pnn %d: %v", pnn, err)
		},
	)

	assert.True(t, ok)
	assert.Len(t, successes, 3)
}

func TestFanOut_AnyFailureMakesAggregateFalse(t *testing.T) {
	targets := []Target{
		{PNN: 0, Address: "good"},
		{PNN: 1, Address: "bad"},
	}

	call := func(ctx context.Context, addr, op string, payload json.RawMessage) (json.RawMessage, error) {
		if addr == "bad" {
			return nil, assertError{"unreachable"}
		}
		return json.RawMessage(`"ok"`), nil
	}

	var mu sync.Mutex
	var failed []types.PNN

	ok := FanOut(context.Background(), targets, "ping", nil, time.Second, call,
		func(pnn types.PNN, reply json.RawMessage) {},
		func(pnn types.PNN, err error) {
			mu.Lock()
			defer mu.Unlock()
			failed = append(failed, pnn)
		},
	)

	assert.False(t, ok)
	require.Len(t, failed, 1)
	assert.Equal(t, types.PNN(1), failed[0])
}

func TestFanOut_PerNodeTimeoutFailsSlowTarget(t *testing.T) {
	targets := []Target{{PNN: 0, Address: "slow"}}

	call := func(ctx context.Context, addr, op string, payload json.RawMessage) (json.RawMessage, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Second):
			return json.RawMessage(`"too slow"`), nil
		}
	}

	var failErr error
	ok := FanOut(context.Background(), targets, "ping", nil, 20*time.Millisecond, call,
		func(pnn types.PNN, reply json.RawMessage) {
			t.Fatal("expected failure, got success")
		},
		func(pnn types.PNN, err error) {
			failErr = err
		},
	)

	assert.False(t, ok)
	require.Error(t, failErr)
}

func TestFanOut_EachTargetCallbackExactlyOnce(t *testing.T) {
	targets := []Target{
		{PNN: 0, Address: "a"},
		{PNN: 1, Address: "b"},
	}

	call := func(ctx context.Context, addr, op string, payload json.RawMessage) (json.RawMessage, error) {
		return nil, nil
	}

	var mu sync.Mutex
	calls := make(map[types.PNN]int)

	FanOut(context.Background(), targets, "ping", nil, time.Second, call,
		func(pnn types.PNN, reply json.RawMessage) {
			mu.Lock()
			defer mu.Unlock()
			calls[pnn]++
		},
		func(pnn types.PNN, err error) {
			mu.Lock()
			defer mu.Unlock()
			calls[pnn]++
		},
	)

	for _, pnn := range []types.PNN{0, 1} {
		assert.Equal(t, 1, calls[pnn])
	}
}

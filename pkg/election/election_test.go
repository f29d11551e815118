package election

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/recoverd/pkg/types"
)

const testTimeout = 40 * time.Millisecond
const testDebounce = 10 * time.Millisecond

func newTestEngine(t *testing.T, localPNN types.PNN, msg types.ElectionMessage, cb Callbacks) *Engine {
	t.Helper()
	e := New(localPNN, testTimeout, testTimeout, func() types.ElectionMessage { return msg }, cb)
	e.debounce = testDebounce
	t.Cleanup(e.Stop)
	return e
}

func TestEngine_StartBroadcastsAndRecordsSelf(t *testing.T) {
	var broadcasts int32
	msg := types.ElectionMessage{PNN: 1, HasRecmaster: true}
	e := newTestEngine(t, 1, msg, Callbacks{
		Broadcast: func(ctx context.Context, m types.ElectionMessage) {
			atomic.AddInt32(&broadcasts, 1)
			assert.Equal(t, msg, m)
		},
	})

	e.Start(context.Background(), false)

	assert.Equal(t, types.PNN(1), e.BelievedMaster())
	assert.Equal(t, int32(1), atomic.LoadInt32(&broadcasts))
}

func TestEngine_ReceiveLosingMessageDebouncesRebroadcast(t *testing.T) {
	local := types.ElectionMessage{PNN: 1, HasRecmaster: true, NumConnected: 5}
	weaker := types.ElectionMessage{PNN: 2, HasRecmaster: false, NumConnected: 1}

	var rebroadcasts int32
	done := make(chan struct{})
	e := newTestEngine(t, 1, local, Callbacks{
		Broadcast: func(ctx context.Context, m types.ElectionMessage) {
			if atomic.AddInt32(&rebroadcasts, 1) == 1 {
				close(done)
			}
		},
	})

	e.Receive(context.Background(), weaker)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expected debounced rebroadcast")
	}
	assert.Equal(t, types.PNN(1), e.BelievedMaster())
}

func TestEngine_ReceiveWinningMessageConcedesImmediately(t *testing.T) {
	local := types.ElectionMessage{PNN: 1, HasRecmaster: false, NumConnected: 1}
	stronger := types.ElectionMessage{PNN: 2, HasRecmaster: true, NumConnected: 5}

	var conceded struct {
		sync.Mutex
		winner types.PNN
		called bool
	}
	e := newTestEngine(t, 1, local, Callbacks{
		Concede: func(ctx context.Context, winner types.PNN, m types.ElectionMessage) {
			conceded.Lock()
			defer conceded.Unlock()
			conceded.winner = winner
			conceded.called = true
		},
	})

	e.Receive(context.Background(), stronger)

	conceded.Lock()
	defer conceded.Unlock()
	require.True(t, conceded.called)
	assert.Equal(t, types.PNN(2), conceded.winner)
	assert.Equal(t, types.PNN(2), e.BelievedMaster())
}

func TestEngine_SettlesAfterTimeoutWithNoFurtherMessages(t *testing.T) {
	msg := types.ElectionMessage{PNN: 1, HasRecmaster: true}
	settled := make(chan types.PNN, 1)
	e := newTestEngine(t, 1, msg, Callbacks{
		Broadcast: func(ctx context.Context, m types.ElectionMessage) {},
		Settled: func(ctx context.Context, master types.PNN) {
			settled <- master
		},
	})

	e.Start(context.Background(), true)

	select {
	case master := <-settled:
		assert.Equal(t, types.PNN(1), master)
	case <-time.After(time.Second):
		t.Fatal("expected election to settle")
	}
}

func TestEngine_StopPreventsSettle(t *testing.T) {
	msg := types.ElectionMessage{PNN: 1, HasRecmaster: true}
	settled := make(chan types.PNN, 1)
	e := newTestEngine(t, 1, msg, Callbacks{
		Broadcast: func(ctx context.Context, m types.ElectionMessage) {},
		Settled: func(ctx context.Context, master types.PNN) {
			settled <- master
		},
	})

	e.Start(context.Background(), true)
	e.Stop()

	select {
	case <-settled:
		t.Fatal("Settled should not fire after Stop")
	case <-time.After(testTimeout * 3):
	}
}

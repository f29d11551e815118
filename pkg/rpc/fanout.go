package rpc

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/cuemby/recoverd/pkg/types"
)

// Target is one fan-out destination: a PNN and the address its
// Control RPC listener is reachable at.
type Target struct {
	PNN     types.PNN
	Address string
}

// FanOut dispatches op/payload to every target concurrently over call,
// waiting for each to either reply or exceed perNodeTimeout. onSuccess
// or onFailure is invoked exactly once per target. It returns false —
// a failed aggregate — if any target failed, matching the client's
// only contract: the caller has no idea what op means, only whether
// every target answered within its budget.
func FanOut(
	ctx context.Context,
	targets []Target,
	op string,
	payload json.RawMessage,
	perNodeTimeout time.Duration,
	call CallFunc,
	onSuccess func(pnn types.PNN, reply json.RawMessage),
	onFailure func(pnn types.PNN, err error),
) (aggregateOK bool) {
	var wg sync.WaitGroup
	var mu sync.Mutex
	aggregateOK = true

	for _, target := range targets {
		wg.Add(1)
		go func(target Target) {
			defer wg.Done()

			callCtx := ctx
			var cancel context.CancelFunc
			if perNodeTimeout > 0 {
				callCtx, cancel = context.WithTimeout(ctx, perNodeTimeout)
				defer cancel()
			}

			reply, err := call(callCtx, target.Address, op, payload)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				aggregateOK = false
				if onFailure != nil {
					onFailure(target.PNN, err)
				}
				return
			}
			if onSuccess != nil {
				onSuccess(target.PNN, reply)
			}
		}(target)
	}

	wg.Wait()
	return aggregateOK
}

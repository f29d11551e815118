package rpc

import (
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
)

// startTestServer boots a real gRPC server on an ephemeral loopback
// port and returns its address and a cleanup func.
func startTestServer(t *testing.T, d *Dispatcher) string {
	t.Helper()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	grpcServer := grpc.NewServer()
	RegisterDispatcher(grpcServer, d)

	go func() {
		_ = grpcServer.Serve(lis)
	}()
	t.Cleanup(grpcServer.Stop)

	return lis.Addr().String()
}

func TestDispatcher_RoutesRegisteredOp(t *testing.T) {
	d := NewDispatcher()
	d.Register("echo", func(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
		return payload, nil
	})
	addr := startTestServer(t, d)

	pool := NewPool()
	t.Cleanup(func() { _ = pool.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	reply, err := pool.Call(ctx, addr, "echo", json.RawMessage(`{"hello":"world"}`))
	require.NoError(t, err)
	require.JSONEq(t, `{"hello":"world"}`, string(reply))
}

func TestDispatcher_UnknownOpReturnsError(t *testing.T) {
	d := NewDispatcher()
	addr := startTestServer(t, d)

	pool := NewPool()
	t.Cleanup(func() { _ = pool.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := pool.Call(ctx, addr, "does-not-exist", nil)
	require.Error(t, err)
}

func TestDispatcher_HandlerErrorPropagates(t *testing.T) {
	d := NewDispatcher()
	d.Register("fail", func(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
		return nil, assertError{"boom"}
	})
	addr := startTestServer(t, d)

	pool := NewPool()
	t.Cleanup(func() { _ = pool.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := pool.Call(ctx, addr, "fail", nil)
	require.ErrorContains(t, err, "boom")
}

func TestDispatcher_RegisterPanicsOnDuplicate(t *testing.T) {
	d := NewDispatcher()
	d.Register("op", func(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
		return nil, nil
	})
	require.Panics(t, func() {
		d.Register("op", func(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
			return nil, nil
		})
	})
}

type assertError struct{ msg string }

func (e assertError) Error() string { return e.msg }

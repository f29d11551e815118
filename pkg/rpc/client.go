package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// CallFunc places a single Control RPC call against addr and returns
// the raw reply payload. It is the seam FanOut dispatches through, so
// tests can substitute a fake transport without a real network.
type CallFunc func(ctx context.Context, addr string, op string, payload json.RawMessage) (json.RawMessage, error)

// Pool is a CallFunc backed by a small set of long-lived *grpc.ClientConn,
// one per dial address, reused across calls the way a gRPC client is
// meant to be reused rather than redialed per RPC.
type Pool struct {
	dialOpts []grpc.DialOption

	mu    sync.Mutex
	conns map[string]*grpc.ClientConn
}

// NewPool returns a Pool. Control RPC runs over the cluster's own
// private interconnect, so the default transport is plaintext; callers
// that need TLS can pass grpc.WithTransportCredentials explicitly,
// which overrides this default.
func NewPool(extraOpts ...grpc.DialOption) *Pool {
	opts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName)),
	}, extraOpts...)
	return &Pool{dialOpts: opts, conns: make(map[string]*grpc.ClientConn)}
}

func (p *Pool) conn(addr string) (*grpc.ClientConn, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if conn, ok := p.conns[addr]; ok {
		return conn, nil
	}
	conn, err := grpc.NewClient(addr, p.dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("rpc: dial %s: %w", addr, err)
	}
	p.conns[addr] = conn
	return conn, nil
}

// Call implements CallFunc.
func (p *Pool) Call(ctx context.Context, addr string, op string, payload json.RawMessage) (json.RawMessage, error) {
	conn, err := p.conn(addr)
	if err != nil {
		return nil, err
	}

	req := &Envelope{Op: op, Payload: payload}
	reply := new(Reply)
	if err := conn.Invoke(ctx, fullMethodName, req, reply); err != nil {
		return nil, fmt.Errorf("rpc: call %s at %s: %w", op, addr, err)
	}
	if reply.Error != "" {
		return nil, errors.New(reply.Error)
	}
	return reply.Payload, nil
}

// Close closes every pooled connection. Safe to call once, at shutdown.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var firstErr error
	for addr, conn := range p.conns {
		if err := conn.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("rpc: close %s: %w", addr, err)
		}
	}
	p.conns = make(map[string]*grpc.ClientConn)
	return firstErr
}

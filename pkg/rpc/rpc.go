package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"google.golang.org/grpc"
)

const (
	serviceName    = "recoverd.Control"
	methodName     = "Dispatch"
	fullMethodName = "/" + serviceName + "/" + methodName
)

// Envelope is the single message type carried over Control RPC. Op
// names an operation registered with a Dispatcher; Payload is that
// operation's request, opaque to the transport.
type Envelope struct {
	Op      string          `json:"op"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Reply is the single response type. Error is set, and Payload left
// empty, when the handler returned an error.
type Reply struct {
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Handler processes one operation's payload and returns its reply
// payload, or an error to report back to the caller.
type Handler func(ctx context.Context, payload json.RawMessage) (json.RawMessage, error)

// Dispatcher routes an inbound Envelope to a Handler registered by Op
// name. It implements controlServer directly, so it is registered as
// the single service implementation on the gRPC server.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewDispatcher returns an empty Dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[string]Handler)}
}

// Register installs handler under op. It panics if op is already
// registered, matching grpc.ServiceRegistrar's own registration
// contract: handlers are wired once at startup, not at dispatch time.
func (d *Dispatcher) Register(op string, handler Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.handlers[op]; ok {
		panic(fmt.Sprintf("rpc: handler already registered for op %q", op))
	}
	d.handlers[op] = handler
}

// Dispatch implements controlServer.
func (d *Dispatcher) Dispatch(ctx context.Context, in *Envelope) (*Reply, error) {
	d.mu.RLock()
	handler, ok := d.handlers[in.Op]
	d.mu.RUnlock()
	if !ok {
		return &Reply{Error: fmt.Sprintf("rpc: no handler registered for op %q", in.Op)}, nil
	}

	out, err := handler(ctx, in.Payload)
	if err != nil {
		return &Reply{Error: err.Error()}, nil
	}
	return &Reply{Payload: out}, nil
}

// controlServer is the hand-written stand-in for a protoc-generated
// server interface: a single RPC that moves an Envelope in and a Reply
// out, with the real routing happening inside Dispatch.
type controlServer interface {
	Dispatch(ctx context.Context, in *Envelope) (*Reply, error)
}

var controlServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*controlServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: methodName,
			Handler:    dispatchHandler,
		},
	},
	Metadata: "pkg/rpc/rpc.go",
}

func dispatchHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(Envelope)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(controlServer).Dispatch(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: fullMethodName,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(controlServer).Dispatch(ctx, req.(*Envelope))
	}
	return interceptor(ctx, in, info, handler)
}

// RegisterDispatcher registers d as the Control service implementation
// on s. s is typically a *grpc.Server.
func RegisterDispatcher(s grpc.ServiceRegistrar, d *Dispatcher) {
	s.RegisterService(&controlServiceDesc, d)
}

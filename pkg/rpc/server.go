package rpc

import (
	"fmt"
	"net"

	"google.golang.org/grpc"

	"github.com/cuemby/recoverd/pkg/log"
)

// Server wraps a *grpc.Server bound to a single Dispatcher. A node
// runs exactly one Server: every inbound Control RPC, regardless of
// op, arrives through the same listener and is routed by Dispatcher.
type Server struct {
	grpcServer *grpc.Server
	dispatcher *Dispatcher
}

// NewServer returns a Server that dispatches inbound calls through d.
func NewServer(d *Dispatcher, opts ...grpc.ServerOption) *Server {
	return &Server{
		grpcServer: grpc.NewServer(opts...),
		dispatcher: d,
	}
}

// Start listens on addr and serves until Stop is called or Serve
// itself fails. It blocks, so callers typically run it in its own
// goroutine.
func (s *Server) Start(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("rpc: listen on %s: %w", addr, err)
	}

	RegisterDispatcher(s.grpcServer, s.dispatcher)

	log.WithComponent("rpc").Info().Str("addr", addr).Msg("control RPC listening")
	return s.grpcServer.Serve(lis)
}

// Stop gracefully stops the server, waiting for in-flight calls to
// finish.
func (s *Server) Stop() {
	if s.grpcServer != nil {
		s.grpcServer.GracefulStop()
	}
}

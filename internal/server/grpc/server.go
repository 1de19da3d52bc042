// Package grpc serves the catalog's gRPC surface: the standard health
// service, fed by periodic probes of the database and the default bucket.
package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/objcatalog/internal/logging"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type GRPCServer struct {
	address  string
	health   *health.Server
	resolver PrincipalResolver
	logger   logging.Logger
}

// NewGRPCServer returns a server bound to a. resolver may be nil, in which
// case every call runs as the anonymous principal.
func NewGRPCServer(a string, l logging.Logger, resolver PrincipalResolver) *GRPCServer {
	return &GRPCServer{
		address:  a,
		health:   health.NewServer(),
		resolver: resolver,
		logger:   l.With("module", "grpc_server"),
	}
}

// Health exposes the status registry probes report into.
func (s *GRPCServer) Health() *health.Server {
	return s.health
}

func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.principalInterceptor))

	healthpb.RegisterHealthServer(srv, s.health)

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		s.health.Shutdown()
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", s.address)

	if err := srv.Serve(listen); err != nil {
		return err
	}

	return nil
}

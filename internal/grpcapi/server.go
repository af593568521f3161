package grpcapi

import (
	"fmt"
	"net"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Server hosts the availability service and the standard health service.
type Server struct {
	grpc   *grpc.Server
	health *health.Server
	logger *zerolog.Logger
}

func NewServer(svc Availability, apiKey string, logger *zerolog.Logger) *Server {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "grpc").Logger()

	gs := grpc.NewServer(grpc.ChainUnaryInterceptor(
		UnaryLoggingInterceptor(&l),
		UnaryAPIKeyInterceptor(apiKey),
	))
	RegisterAvailabilityServer(gs, NewAvailabilityServer(svc))

	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)

	return &Server{grpc: gs, health: hs, logger: &l}
}

// Serve blocks serving on lis.
func (s *Server) Serve(lis net.Listener) error {
	s.logger.Info().Str("addr", lis.Addr().String()).Msg("grpc server listening")
	return s.grpc.Serve(lis)
}

// ListenAndServe listens on port and serves.
func (s *Server) ListenAndServe(port int) error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}
	return s.Serve(lis)
}

// Stop marks the service not serving and drains in-flight calls.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}

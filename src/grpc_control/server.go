package grpc_control

import (
	"fmt"
	"net"
	"sync/atomic"

	"quant-observer/src/logger"
	"quant-observer/src/models"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health service name reported for the tick pipeline.
const ServiceName = "quant_observer.Pipeline"

// -----------------------------------------------------------------------------
// ControlServer exposes the standard gRPC health service and reflection so
// orchestrators can probe whether ticks are flowing.
// -----------------------------------------------------------------------------

type ControlServer struct {
	Config *models.MConfig
	Logger *logger.Logger

	server  *grpc.Server
	health  *health.Server
	serving atomic.Bool
}

// -----------------------------------------------------------------------------

func NewControlServer(cfg *models.MConfig, log *logger.Logger) *ControlServer {
	s := &ControlServer{
		Config: cfg,
		Logger: log,
		server: grpc.NewServer(),
		health: health.NewServer(),
	}

	healthpb.RegisterHealthServer(s.server, s.health)
	reflection.Register(s.server)

	// Process is up, pipeline not yet fed
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

// -----------------------------------------------------------------------------

// Start listens on the configured gRPC address and blocks until Stop.
func (s *ControlServer) Start() error {
	addr := fmt.Sprintf("%s:%d", s.Config.GrpcHost, s.Config.GrpcPort)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.Logger.Info("gRPC control server listening on %s", addr)
	return s.Serve(lis)
}

// Serve blocks serving on an existing listener.
func (s *ControlServer) Serve(lis net.Listener) error {
	return s.server.Serve(lis)
}

// -----------------------------------------------------------------------------

// SetServing flips the pipeline health status. Repeated calls with the same
// value are ignored.
func (s *ControlServer) SetServing(serving bool) {
	if s.serving.Swap(serving) == serving {
		return
	}
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(ServiceName, status)
	s.Logger.Info("Pipeline health -> %s", status)
}

func (s *ControlServer) Serving() bool {
	return s.serving.Load()
}

// -----------------------------------------------------------------------------

// Stop marks every service NOT_SERVING and drains in-flight calls.
func (s *ControlServer) Stop() {
	s.health.Shutdown()
	s.server.GracefulStop()
}

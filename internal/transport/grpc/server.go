package grpcx

import (
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// Server обслуживает gRPC: чтение комнат и health.
type Server struct {
	grpc   *grpc.Server
	health *health.Server
}

func NewServer(rooms RoomReader, callTimeout time.Duration) *Server {
	gs := grpc.NewServer(
		grpc.ChainUnaryInterceptor(UnaryServerInterceptor(callTimeout)),
		grpc.ChainStreamInterceptor(StreamServerInterceptor()),
	)
	gs.RegisterService(&roomsServiceDesc, &roomsServer{rooms: rooms})

	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(RoomsServiceName, healthpb.HealthCheckResponse_SERVING)

	reflection.Register(gs)

	return &Server{grpc: gs, health: hs}
}

func (s *Server) Serve(lis net.Listener) error {
	return s.grpc.Serve(lis)
}

// Shutdown переводит health в NOT_SERVING и дожидается текущих вызовов.
func (s *Server) Shutdown() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}

package grpcx

import (
	"context"
	"errors"

	"github.com/cwrk-planet/board-service/internal/domain"
	"github.com/cwrk-planet/board-service/pkg/errs"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// RoomsServiceName: имя сервиса только для чтения состояния комнат.
// Сообщения: well-known типы protobuf.
const RoomsServiceName = "board.v1.Rooms"

const (
	MethodListRooms = "/" + RoomsServiceName + "/ListRooms"
	MethodGetRoom   = "/" + RoomsServiceName + "/GetRoom"
)

type RoomReader interface {
	Rooms() []domain.RoomSummary
	Snapshot(roomCode string) (domain.RoomSnapshot, error)
}

type RoomsServer interface {
	ListRooms(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	GetRoom(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
}

var roomsServiceDesc = grpc.ServiceDesc{
	ServiceName: RoomsServiceName,
	HandlerType: (*RoomsServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListRooms", Handler: listRoomsHandler},
		{MethodName: "GetRoom", Handler: getRoomHandler},
	},
}

func listRoomsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RoomsServer).ListRooms(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodListRooms}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(RoomsServer).ListRooms(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func getRoomHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RoomsServer).GetRoom(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodGetRoom}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(RoomsServer).GetRoom(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

type roomsServer struct {
	rooms RoomReader
}

func (s *roomsServer) ListRooms(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	items := make([]any, 0)
	for _, r := range s.rooms.Rooms() {
		items = append(items, map[string]any{
			"code":    r.Code,
			"members": r.Members,
			"moves":   r.Moves,
		})
	}
	out, err := structpb.NewStruct(map[string]any{"items": items})
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func (s *roomsServer) GetRoom(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	snap, err := s.rooms.Snapshot(req.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}

	members := make([]any, 0, len(snap.Members))
	for _, m := range snap.Members {
		members = append(members, map[string]any{
			"id":    m.ID,
			"name":  m.Name,
			"moves": len(snap.Ledgers.Of(m.ID)),
		})
	}
	out, err := structpb.NewStruct(map[string]any{
		"code":     snap.Code,
		"members":  members,
		"moves":    len(snap.Moves()),
		"stranded": len(snap.Stranded),
	})
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func toStatus(err error) error {
	msg := domain.Reason(err)
	switch {
	case errors.Is(err, errs.ErrInvalidInput):
		return status.Error(codes.InvalidArgument, msg)
	case errors.Is(err, errs.ErrNotFound):
		return status.Error(codes.NotFound, msg)
	case errors.Is(err, errs.ErrConflict):
		return status.Error(codes.FailedPrecondition, msg)
	case errors.Is(err, errs.ErrUnavailable):
		return status.Error(codes.Unavailable, msg)
	default:
		return status.Error(codes.Internal, msg)
	}
}

// Package grpcapi serves availability queries over gRPC for front-desk and
// kiosk clients. Messages are google.protobuf.Struct values, so no generated
// code is needed.
package grpcapi

import (
	"context"
	"crypto/subtle"
	"errors"

	"giftwrap/internal/booking"
	"giftwrap/internal/lock"
	"giftwrap/internal/model"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	ServiceName = "giftwrap.v1.Availability"

	apiKeyMetadataKey    = "x-api-key"
	requestIDMetadataKey = "x-request-id"
)

// Availability is the read side of the booking core.
type Availability interface {
	AvailableSlots(ctx context.Context, date, workerID string) ([]string, error)
	IsDateBookable(ctx context.Context, date, workerID string) (bool, error)
	MaxItemsForSlot(ctx context.Context, q booking.MaxItemsQuery) (int, error)
}

// AvailabilityServer is the server API of giftwrap.v1.Availability.
type AvailabilityServer interface {
	AvailableSlots(context.Context, *structpb.Struct) (*structpb.Struct, error)
	IsDateBookable(context.Context, *structpb.Struct) (*structpb.Struct, error)
	MaxItemsForSlot(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type server struct {
	svc Availability
}

// NewAvailabilityServer adapts svc to the wire API.
func NewAvailabilityServer(svc Availability) AvailabilityServer {
	return &server{svc: svc}
}

func (s *server) AvailableSlots(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	date := field(in, "date")
	free, err := s.svc.AvailableSlots(ctx, date, field(in, "worker_id"))
	if err != nil {
		return nil, toStatus(err)
	}
	list := make([]interface{}, len(free))
	for i, f := range free {
		list[i] = f
	}
	return structpb.NewStruct(map[string]interface{}{"date": date, "slots": list})
}

func (s *server) IsDateBookable(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	date := field(in, "date")
	ok, err := s.svc.IsDateBookable(ctx, date, field(in, "worker_id"))
	if err != nil {
		return nil, toStatus(err)
	}
	return structpb.NewStruct(map[string]interface{}{"date": date, "bookable": ok})
}

func (s *server) MaxItemsForSlot(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	n, err := s.svc.MaxItemsForSlot(ctx, booking.MaxItemsQuery{
		Date:      field(in, "date"),
		Time:      field(in, "time"),
		ServiceID: field(in, "service_id"),
		WorkerID:  field(in, "worker_id"),
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return structpb.NewStruct(map[string]interface{}{"max_items": n})
}

func field(in *structpb.Struct, name string) string {
	if in == nil {
		return ""
	}
	v, ok := in.GetFields()[name]
	if !ok {
		return ""
	}
	return v.GetStringValue()
}

func toStatus(err error) error {
	var verr *booking.ValidationError
	switch {
	case errors.As(err, &verr):
		return status.Error(codes.InvalidArgument, verr.Error())
	case errors.Is(err, model.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, lock.ErrLockTimeout):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, "internal error")
	}
}

// RegisterAvailabilityServer attaches srv to s.
func RegisterAvailabilityServer(s grpc.ServiceRegistrar, srv AvailabilityServer) {
	s.RegisterService(&availabilityServiceDesc, srv)
}

var availabilityServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AvailabilityServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "AvailableSlots", Handler: unary("AvailableSlots", AvailabilityServer.AvailableSlots)},
		{MethodName: "IsDateBookable", Handler: unary("IsDateBookable", AvailabilityServer.IsDateBookable)},
		{MethodName: "MaxItemsForSlot", Handler: unary("MaxItemsForSlot", AvailabilityServer.MaxItemsForSlot)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "giftwrap/v1/availability.proto",
}

type method func(AvailabilityServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unary(name string, call method) grpc.MethodHandler {
	fullMethod := "/" + ServiceName + "/" + name
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(AvailabilityServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(AvailabilityServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// UnaryAPIKeyInterceptor rejects calls whose x-api-key metadata does not
// match key. Health checks are always allowed.
func UnaryAPIKeyInterceptor(key string) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if key == "" || info.FullMethod == "/grpc.health.v1.Health/Check" {
			return handler(ctx, req)
		}
		md, _ := metadata.FromIncomingContext(ctx)
		vals := md.Get(apiKeyMetadataKey)
		if len(vals) == 0 || subtle.ConstantTimeCompare([]byte(vals[0]), []byte(key)) != 1 {
			return nil, status.Error(codes.Unauthenticated, "invalid api key")
		}
		return handler(ctx, req)
	}
}

// UnaryLoggingInterceptor tags each call with a request id and logs failures.
func UnaryLoggingInterceptor(logger *zerolog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		id := ""
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if vals := md.Get(requestIDMetadataKey); len(vals) > 0 {
				id = vals[0]
			}
		}
		if id == "" {
			id = uuid.NewString()
		}
		_ = grpc.SetHeader(ctx, metadata.Pairs(requestIDMetadataKey, id))

		resp, err := handler(ctx, req)
		if err != nil {
			logger.Warn().Err(err).Str("request_id", id).Str("method", info.FullMethod).Msg("grpc call failed")
		}
		return resp, err
	}
}

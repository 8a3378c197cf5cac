package monitor

import (
	"context"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/oshokin/homee/internal/domain/home"
	"github.com/oshokin/homee/internal/logger"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "homee.v1.MonitorService"

// Full method names.
const (
	GetStatusMethod       = "/" + ServiceName + "/GetStatus"
	SetLightEnabledMethod = "/" + ServiceName + "/SetLightEnabled"
	ToggleLightMethod     = "/" + ServiceName + "/ToggleLight"
)

// ActorMetadataKey carries the caller identity (user@host) for the audit log.
const ActorMetadataKey = "x-homee-actor"

// ErrUnavailable is returned by a Service that cannot accept commands, e.g. while shutting down.
var ErrUnavailable = errors.New("service unavailable")

// Service abstracts the business operations the transport layer depends on.
type Service interface {
	Status(ctx context.Context) home.Status
	SetLightEnabled(ctx context.Context, enabled bool) (home.Status, error)
	ToggleLight(ctx context.Context) (home.Status, error)
}

// monitorServer is the handler contract checked by grpc.Server.RegisterService.
type monitorServer interface {
	GetStatus(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error)
	SetLightEnabled(ctx context.Context, req *wrapperspb.BoolValue) (*structpb.Struct, error)
	ToggleLight(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error)
}

// Server implements the MonitorService gRPC API.
type Server struct {
	// service provides the business logic.
	service Service
}

// NewServer wires the provided service implementation into a gRPC handler.
func NewServer(service Service) *Server {
	return &Server{
		service: service,
	}
}

// Register adds the service to a gRPC server.
func Register(registrar grpc.ServiceRegistrar, server *Server) {
	registrar.RegisterService(&serviceDesc, server)
}

// GetStatus returns the current status.
func (s *Server) GetStatus(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return toProtoStatus(s.service.Status(ctx))
}

// SetLightEnabled switches the light system on or off.
func (s *Server) SetLightEnabled(ctx context.Context, req *wrapperspb.BoolValue) (*structpb.Struct, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	ctx = withActor(ctx)
	logger.InfoKV(ctx, "Light system change requested", "enabled", req.GetValue())

	st, err := s.service.SetLightEnabled(ctx, req.GetValue())
	if err != nil {
		return nil, toStatusError(err)
	}

	return toProtoStatus(st)
}

// ToggleLight flips the light system.
func (s *Server) ToggleLight(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	ctx = withActor(ctx)
	logger.Info(ctx, "Light system toggle requested")

	st, err := s.service.ToggleLight(ctx)
	if err != nil {
		return nil, toStatusError(err)
	}

	return toProtoStatus(st)
}

// withActor attaches the caller identity from request metadata to the context logger.
func withActor(ctx context.Context) context.Context {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ctx
	}

	if actors := md.Get(ActorMetadataKey); len(actors) > 0 {
		return logger.WithKV(ctx, "actor", actors[0])
	}

	return ctx
}

// toProtoStatus converts the status into a protobuf Struct.
func toProtoStatus(st home.Status) (*structpb.Struct, error) {
	result, err := structpb.NewStruct(st.Map())
	if err != nil {
		return nil, status.Error(codes.Internal, "unable to encode status")
	}

	return result, nil
}

func toStatusError(err error) error {
	switch {
	case errors.Is(err, ErrUnavailable):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	default:
		return status.Error(codes.Internal, "unable to switch light system")
	}
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*monitorServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetStatus",
			Handler:    unaryHandler(GetStatusMethod, monitorServer.GetStatus),
		},
		{
			MethodName: "SetLightEnabled",
			Handler:    unaryHandler(SetLightEnabledMethod, monitorServer.SetLightEnabled),
		},
		{
			MethodName: "ToggleLight",
			Handler:    unaryHandler(ToggleLightMethod, monitorServer.ToggleLight),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "homee/v1/monitor.proto",
}

// unaryHandler adapts a typed method to grpc.MethodHandler the way generated code does.
func unaryHandler[Req any, PReq interface {
	*Req
	proto.Message
}](
	fullMethod string,
	call func(monitorServer, context.Context, PReq) (*structpb.Struct, error),
) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := PReq(new(Req))
		if err := dec(in); err != nil {
			return nil, err
		}

		if interceptor == nil {
			return call(srv.(monitorServer), ctx, in)
		}

		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}

		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(monitorServer), ctx, req.(PReq))
		}

		return interceptor(ctx, in, info, handler)
	}
}

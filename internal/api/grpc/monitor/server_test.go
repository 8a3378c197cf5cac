package monitor

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/oshokin/homee/internal/domain/home"
)

// fakeService implements Service for unit testing the transport.
type fakeService struct {
	status home.Status
	err    error
}

func (f *fakeService) Status(context.Context) home.Status { return f.status }

func (f *fakeService) SetLightEnabled(_ context.Context, enabled bool) (home.Status, error) {
	if f.err != nil {
		return home.Status{}, f.err
	}

	f.status.Motion.LightEnabled = enabled

	return f.status, nil
}

func (f *fakeService) ToggleLight(ctx context.Context) (home.Status, error) {
	return f.SetLightEnabled(ctx, !f.status.Motion.LightEnabled)
}

// dialBuffered serves svc over an in-memory listener and returns a client connection.
func dialBuffered(t *testing.T, svc Service, opts ...grpc.ServerOption) *grpc.ClientConn {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	server := grpc.NewServer(opts...)
	Register(server, NewServer(svc))

	go func() { _ = server.Serve(lis) }()

	t.Cleanup(server.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)

	t.Cleanup(func() { _ = conn.Close() })

	return conn
}

func runningStatus() home.Status {
	return home.Status{
		Motion: home.MotionStatus{
			Phase:        home.PhaseRunning,
			Baseline:     120,
			LightEnabled: true,
		},
		LastBadgeUID: "AABBCC",
	}
}

// TestServer_Roundtrip exercises every method through a real gRPC stack.
func TestServer_Roundtrip(t *testing.T) {
	t.Parallel()

	var intercepted []string

	interceptor := func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		intercepted = append(intercepted, info.FullMethod)

		return handler(ctx, req)
	}

	conn := dialBuffered(t, &fakeService{status: runningStatus()}, grpc.UnaryInterceptor(interceptor))
	ctx := context.Background()

	out := new(structpb.Struct)
	require.NoError(t, conn.Invoke(ctx, GetStatusMethod, new(emptypb.Empty), out))
	require.Equal(t, "running", out.GetFields()["phase"].GetStringValue())
	require.True(t, out.GetFields()["light_enabled"].GetBoolValue())
	require.Equal(t, "AABBCC", out.GetFields()["last_badge_uid"].GetStringValue())
	require.InDelta(t, 120.0, out.GetFields()["baseline_cm"].GetNumberValue(), 0)

	require.NoError(t, conn.Invoke(ctx, SetLightEnabledMethod, wrapperspb.Bool(false), out))
	require.False(t, out.GetFields()["light_enabled"].GetBoolValue())

	require.NoError(t, conn.Invoke(ctx, ToggleLightMethod, new(emptypb.Empty), out))
	require.True(t, out.GetFields()["light_enabled"].GetBoolValue())

	require.Equal(t, []string{GetStatusMethod, SetLightEnabledMethod, ToggleLightMethod}, intercepted)
}

// TestServer_Errors maps service errors onto gRPC codes.
func TestServer_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		code codes.Code
	}{
		{ErrUnavailable, codes.Unavailable},
		{errors.New("boom"), codes.Internal},
		{context.DeadlineExceeded, codes.DeadlineExceeded},
	}

	for _, tt := range tests {
		conn := dialBuffered(t, &fakeService{status: runningStatus(), err: tt.err})

		err := conn.Invoke(context.Background(), ToggleLightMethod, new(emptypb.Empty), new(structpb.Struct))
		require.Equal(t, tt.code, status.Code(err), tt.err)
	}
}

// TestServer_SetLightEnabled_Validation rejects a nil request at the handler level.
func TestServer_SetLightEnabled_Validation(t *testing.T) {
	t.Parallel()

	_, err := NewServer(&fakeService{}).SetLightEnabled(context.Background(), nil)
	require.Equal(t, codes.InvalidArgument, status.Code(err))
}

//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/oshokin/homee/internal/api/grpc/monitor"
	"github.com/oshokin/homee/internal/config"
	"github.com/oshokin/homee/internal/version"
)

// userAgentProgram names the client in the monitor's transport logs.
const userAgentProgram = "homee-ctl"

// Client calls the monitor control API.
type Client struct {
	// conn is the underlying gRPC connection to the monitor.
	conn grpc.ClientConnInterface
	// closer releases conn.
	closer func() error

	// callTimeout is the default timeout for individual RPC calls.
	callTimeout time.Duration
	// actor identifies the caller in the monitor's logs.
	actor string
}

// Option configures client behaviour.
type Option func(*Client)

// WithCallTimeout sets a default timeout for service calls.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

// WithActor sends actor with every call.
func WithActor(actor string) Option {
	return func(c *Client) {
		c.actor = actor
	}
}

// errAddressRequired is returned when a required address value is missing.
var errAddressRequired = errors.New("address must be provided")

// Dial establishes a gRPC connection to the monitor.
// Note: this uses insecure transport credentials; deploy on a trusted network
// or terminate TLS in a proxy until native TLS is added.
func Dial(_ context.Context, address string, opts ...Option) (*Client, error) {
	if address == "" {
		return nil, errAddressRequired
	}

	// Use the non-context NewClient API recommended by grpc-go
	// (DialContext is deprecated as of grpc-go v1.60+).
	conn, err := grpc.NewClient(address,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUserAgent(version.UserAgent(userAgentProgram)),
	)
	if err != nil {
		return nil, fmt.Errorf("dial monitor: %w", err)
	}

	return NewClient(conn, conn.Close, opts...), nil
}

// NewClient wraps an existing connection. closer may be nil.
func NewClient(conn grpc.ClientConnInterface, closer func() error, opts ...Option) *Client {
	client := &Client{
		conn:        conn,
		closer:      closer,
		callTimeout: config.DefaultTimeout,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// Close releases the underlying gRPC connection.
func (c *Client) Close() error {
	if c == nil || c.closer == nil {
		return nil
	}

	return c.closer()
}

// GetStatus retrieves the monitor status.
func (c *Client) GetStatus(ctx context.Context) (*structpb.Struct, error) {
	response, err := c.invoke(ctx, monitor.GetStatusMethod, new(emptypb.Empty))
	if err != nil {
		return nil, fmt.Errorf("get status: %w", err)
	}

	return response, nil
}

// SetLightEnabled switches the light system.
func (c *Client) SetLightEnabled(ctx context.Context, enabled bool) (*structpb.Struct, error) {
	response, err := c.invoke(ctx, monitor.SetLightEnabledMethod, wrapperspb.Bool(enabled))
	if err != nil {
		return nil, fmt.Errorf("set light enabled: %w", err)
	}

	return response, nil
}

// ToggleLight flips the light system.
func (c *Client) ToggleLight(ctx context.Context) (*structpb.Struct, error) {
	response, err := c.invoke(ctx, monitor.ToggleLightMethod, new(emptypb.Empty))
	if err != nil {
		return nil, fmt.Errorf("toggle light: %w", err)
	}

	return response, nil
}

func (c *Client) invoke(ctx context.Context, method string, request any) (*structpb.Struct, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	response := new(structpb.Struct)
	if err := c.conn.Invoke(callCtx, method, request, response); err != nil {
		return nil, err
	}

	return response, nil
}

// callContext returns a context with the client's call timeout if configured,
// otherwise a cancellable child context without a deadline. The actor, if
// any, travels as metadata.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.actor != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, monitor.ActorMetadataKey, c.actor)
	}

	if c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.callTimeout)
}

package client

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/homee/internal/config"
	"github.com/oshokin/homee/internal/logger"
	"github.com/oshokin/homee/internal/service/common"
	"github.com/oshokin/homee/internal/service/lightswitch"
)

// Options configures a homee-ctl invocation.
type Options struct {
	// ConfigPath to YAML settings file. Empty uses HOMEE_CONFIG or homee.yaml when present.
	ConfigPath string
	// ServerAddress overrides the control API address from config when specified.
	ServerAddress string
	// Light is a light-system command (on, off, toggle). Empty only reads the status.
	Light string
	// Watch repeats the status query at this interval until ctx is done. Zero queries once.
	Watch time.Duration
	// Output receives the responses. Defaults to stdout.
	Output io.Writer
}

// caller is the part of common.Client used here.
type caller interface {
	GetStatus(ctx context.Context) (*structpb.Struct, error)
	SetLightEnabled(ctx context.Context, enabled bool) (*structpb.Struct, error)
	ToggleLight(ctx context.Context) (*structpb.Struct, error)
}

var printer = protojson.MarshalOptions{
	Multiline: true,
	Indent:    "  ",
}

// Run connects to the monitor and performs the requested action.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "homee-ctl")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	serverAddress := cfg.GRPCAddr
	if opts.ServerAddress != "" {
		serverAddress = opts.ServerAddress
	}

	actor, err := common.DetectActor()
	if err != nil {
		return fmt.Errorf("detect actor: %w", err)
	}

	client, err := common.Dial(ctx, serverAddress, common.WithCallTimeout(cfg.Timeout), common.WithActor(actor))
	if err != nil {
		return fmt.Errorf("dial monitor: %w", err)
	}

	defer func() {
		_ = client.Close()
	}()

	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	logger.DebugKV(ctx, "Connected to monitor", "server_address", serverAddress, "actor", actor)

	if opts.Light != "" {
		return setLight(ctx, client, opts.Light, out)
	}

	if opts.Watch > 0 {
		return watch(ctx, client, opts.Watch, out)
	}

	return status(ctx, client, out)
}

// setLight applies a light-system command and prints the resulting status.
func setLight(ctx context.Context, c caller, light string, out io.Writer) error {
	cmd, err := lightswitch.ParseCommand(light)
	if err != nil {
		return err
	}

	var st *structpb.Struct

	switch cmd {
	case lightswitch.CommandOn:
		st, err = c.SetLightEnabled(ctx, true)
	case lightswitch.CommandOff:
		st, err = c.SetLightEnabled(ctx, false)
	case lightswitch.CommandToggle:
		st, err = c.ToggleLight(ctx)
	}

	if err != nil {
		return fmt.Errorf("light %s: %w", cmd, err)
	}

	logger.InfoKV(ctx, "Light system updated", "command", cmd.String(), "enabled", st.GetFields()["light_enabled"].GetBoolValue())

	return printStatus(out, st)
}

// status prints the current status once.
func status(ctx context.Context, c caller, out io.Writer) error {
	st, err := c.GetStatus(ctx)
	if err != nil {
		return fmt.Errorf("get status: %w", err)
	}

	return printStatus(out, st)
}

// watch prints the status every interval until ctx is done. Failed polls are
// logged and retried on the next tick.
func watch(ctx context.Context, c caller, interval time.Duration, out io.Writer) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := status(ctx, c, out); err != nil {
			logger.ErrorKV(ctx, "Status poll failed", "error", err)
		}

		select {
		case <-ctx.Done():
			logger.Info(ctx, "Context canceled, exiting")

			return nil
		case <-ticker.C:
		}
	}
}

func printStatus(out io.Writer, st *structpb.Struct) error {
	data, err := printer.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode status: %w", err)
	}

	if _, err = fmt.Fprintln(out, string(data)); err != nil {
		return fmt.Errorf("write status: %w", err)
	}

	return nil
}

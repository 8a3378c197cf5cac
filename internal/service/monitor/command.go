package monitor

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"google.golang.org/grpc"

	api "github.com/oshokin/homee/internal/api/grpc/monitor"
	"github.com/oshokin/homee/internal/api/http/dashboard"
	"github.com/oshokin/homee/internal/config"
	"github.com/oshokin/homee/internal/filter"
	"github.com/oshokin/homee/internal/hardware"
	"github.com/oshokin/homee/internal/logger"
	"github.com/oshokin/homee/internal/sensor"
	"github.com/oshokin/homee/internal/service/motion"
	"github.com/oshokin/homee/internal/version"
)

// Options controls the homee-monitor process.
type Options struct {
	// ConfigPath specifies the settings YAML file. Empty uses HOMEE_CONFIG or homee.yaml when present.
	ConfigPath string
	// Driver overrides the configured hardware driver (gpio or sim).
	Driver string
	// StateFile overrides the configured control state file.
	StateFile string
}

// Run starts the monitor and blocks until ctx is canceled or a loop fails.
func Run(ctx context.Context, opts *Options) error {
	cfg, err := loadSettings(opts)
	if err != nil {
		return err
	}

	ctx = logger.WithName(ctx, "homee-monitor")

	if err = preflight(ctx, cfg); err != nil {
		return err
	}

	hw, err := openRig(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open hardware: %w", err)
	}

	defer func() {
		if closeErr := hw.close(); closeErr != nil {
			logger.ErrorKV(ctx, "Failed to release hardware", "error", closeErr)
		}
	}()

	sys, err := newSystem(ctx, cfg, hw)
	if err != nil {
		return fmt.Errorf("initialise monitor: %w", err)
	}

	servers := []func(context.Context) error{
		func(ctx context.Context) error {
			return serveGRPC(logger.WithName(ctx, "grpc"), cfg.GRPCAddr, sys, cfg.Timeout)
		},
	}

	if cfg.HTTPAddr != "" {
		handler := dashboard.NewHandler(sys, sys.history, archiveOf(sys), sys.metrics.Registry())

		servers = append(servers, func(ctx context.Context) error {
			return dashboard.Serve(logger.WithName(ctx, "dashboard"), cfg.HTTPAddr, handler, cfg.Timeout)
		})
	}

	logger.InfoKV(ctx, "Monitor starting", append(version.Fields(),
		"driver", cfg.Hardware.Driver,
		"grpc_address", cfg.GRPCAddr,
		"http_address", cfg.HTTPAddr,
		"state_file", cfg.StateFile)...)

	if err = sys.Run(ctx, servers...); err != nil {
		return err
	}

	logger.Info(ctx, "Monitor stopped")

	return nil
}

// Calibrate measures the motion baseline once and returns it. No loop is started.
func Calibrate(ctx context.Context, opts *Options) (*filter.Calibration, error) {
	cfg, err := loadSettings(opts)
	if err != nil {
		return nil, err
	}

	ctx = logger.WithName(ctx, "homee-calibrate")

	if err = preflight(ctx, cfg); err != nil {
		return nil, err
	}

	hw, err := openRig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open hardware: %w", err)
	}

	defer func() {
		_ = hw.close()
	}()

	c := filter.Calibrator{
		Window:      cfg.Motion.CalibrationWindow,
		Count:       cfg.Motion.CalibrationCount,
		MaxAttempts: cfg.Motion.CalibrationAttempts,
		Interval:    cfg.Motion.CalibrationInterval,
	}

	sampler := sensor.NewSampler(hw.motion, sensor.Options{
		Name:          motion.Source,
		Timeout:       cfg.Sensor.Timeout,
		MaxRange:      cfg.Sensor.MaxRangeCM,
		DegradedAfter: cfg.Sensor.DegradedAfter,
	}, nil, nil)

	calibration, err := c.Run(ctx, sampler)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCalibrationFailed, err)
	}

	return calibration, nil
}

// loadSettings reads the configuration, applies overrides and configures logging.
func loadSettings(opts *Options) (*config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	if opts.Driver != "" {
		cfg.Hardware.Driver = opts.Driver
	}

	if opts.StateFile != "" {
		cfg.StateFile = opts.StateFile
	}

	if err = config.Validate(cfg); err != nil {
		return nil, err
	}

	if err = logger.Configure(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat}); err != nil {
		return nil, fmt.Errorf("configure logging: %w", err)
	}

	return cfg, nil
}

// preflight guards the GPIO rig against a second instance.
func preflight(ctx context.Context, cfg *config.Config) error {
	if cfg.Hardware.Driver != config.DriverGPIO {
		return nil
	}

	executable, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve executable: %w", err)
	}

	return hardware.Preflight(ctx, filepath.Base(executable), nil)
}

// archiveOf returns the CSV archive, keeping the dashboard interface nil when it is disabled.
func archiveOf(sys *System) dashboard.Archive {
	if sys.archive == nil {
		return nil
	}

	return sys.archive
}

// serveGRPC runs the control API until ctx is done. Shutdown waits for in-flight
// calls for at most shutdownTimeout.
func serveGRPC(ctx context.Context, address string, service api.Service, shutdownTimeout time.Duration) error {
	lc := net.ListenConfig{}

	lis, err := lc.Listen(ctx, "tcp", address)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", address, err)
	}

	grpcServer := grpc.NewServer()
	api.Register(grpcServer, api.NewServer(service))

	logger.InfoKV(ctx, "Control API listening", "listen_address", lis.Addr().String())

	done := make(chan struct{})

	go func() {
		defer close(done)

		<-ctx.Done()
		logger.Info(ctx, "Shutting down gRPC server")

		stopped := make(chan struct{})

		go func() {
			grpcServer.GracefulStop()
			close(stopped)
		}()

		select {
		case <-stopped:
		case <-time.After(shutdownTimeout):
			grpcServer.Stop()
		}
	}()

	if err = grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serve gRPC: %w", err)
	}

	<-done
	logger.Info(ctx, "GRPC server stopped")

	return nil
}

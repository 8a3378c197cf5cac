package monitor

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/oshokin/homee/internal/actuator"
	api "github.com/oshokin/homee/internal/api/grpc/monitor"
	"github.com/oshokin/homee/internal/config"
	"github.com/oshokin/homee/internal/domain/home"
	"github.com/oshokin/homee/internal/filter"
	"github.com/oshokin/homee/internal/logger"
	"github.com/oshokin/homee/internal/metrics"
	"github.com/oshokin/homee/internal/repository/events"
	"github.com/oshokin/homee/internal/repository/state"
	"github.com/oshokin/homee/internal/sensor"
	"github.com/oshokin/homee/internal/service/badge"
	"github.com/oshokin/homee/internal/service/intruder"
	"github.com/oshokin/homee/internal/service/lightswitch"
	"github.com/oshokin/homee/internal/service/motion"
)

// ErrCalibrationFailed is returned when the motion baseline could not be measured at startup.
var ErrCalibrationFailed = errors.New("motion sensor calibration failed")

// System owns every loop of a running monitor and answers status and light requests.
type System struct {
	cfg *config.Config

	metrics    *metrics.Manager
	arbiter    *actuator.Arbiter
	dispatcher *events.Dispatcher
	history    *events.History
	archive    *events.CSVWriter
	store      *state.Store

	motionSampler *sensor.Sampler
	machine       *motion.Machine
	intruder      *intruder.Loop
	badge         *badge.Loop
	light         *lightswitch.Switch

	hw *rig
}

// newSystem wires the loops to the hardware in hw. Nothing runs until Run is called,
// except the event dispatcher.
func newSystem(ctx context.Context, cfg *config.Config, hw *rig) (*System, error) {
	m := metrics.NewManager()

	writers := make([]events.Writer, 0, 3)

	history := events.NewHistory(cfg.Events.HistorySize)
	writers = append(writers, history)

	var archive *events.CSVWriter
	if cfg.Events.CSVPath != "" {
		archive = events.NewCSVWriter(cfg.Events.CSVPath)
		writers = append(writers, archive)
	}

	if cfg.Events.MQTTBroker != "" {
		publisher, err := events.DialMQTT(ctx, cfg.Events.MQTTBroker, cfg.Events.MQTTClientID,
			cfg.Events.MQTTTopic, cfg.Timeout)
		if err != nil {
			return nil, fmt.Errorf("connect event broker: %w", err)
		}

		writers = append(writers, publisher)

		logger.InfoKV(ctx, "Publishing events over MQTT",
			"broker", cfg.Events.MQTTBroker, "topic", cfg.Events.MQTTTopic)
	}

	dispatcher := events.NewDispatcher(ctx, cfg.Events.BufferSize, m, writers...)
	arbiter := actuator.NewArbiter(hw.driver, actuator.WithMetrics(m))
	store := state.Open(ctx, state.NewFileRepository(cfg.StateFile))
	saved := store.Get()

	sensorOptions := func(name string) sensor.Options {
		return sensor.Options{
			Name:          name,
			Timeout:       cfg.Sensor.Timeout,
			MaxRange:      cfg.Sensor.MaxRangeCM,
			DegradedAfter: cfg.Sensor.DegradedAfter,
		}
	}

	machine := motion.NewMachine(arbiter, dispatcher, m, motion.Options{
		Threshold:    cfg.Motion.ThresholdCM,
		Grace:        cfg.Motion.Grace,
		LightEnabled: saved.LightEnabled,
	})

	s := &System{
		cfg:           cfg,
		metrics:       m,
		arbiter:       arbiter,
		dispatcher:    dispatcher,
		history:       history,
		archive:       archive,
		store:         store,
		motionSampler: sensor.NewSampler(hw.motion, sensorOptions(motion.Source), dispatcher, m),
		machine:       machine,
		light:         lightswitch.New(machine, dispatcher, store),
		hw:            hw,
	}

	s.intruder = intruder.NewLoop(
		sensor.NewSampler(hw.intruder, sensorOptions(intruder.Source), dispatcher, m),
		arbiter, dispatcher, m,
		intruder.Options{
			BandMin:       cfg.Intruder.BandMinCM,
			BandMax:       cfg.Intruder.BandMaxCM,
			FlashDuration: cfg.Intruder.FlashDuration,
			FlashInterval: cfg.Intruder.FlashInterval,
			Interval:      cfg.Intruder.Interval,
		})

	if hw.badges != nil {
		s.badge = badge.NewLoop(hw.badges, arbiter, dispatcher, store, m, badge.Options{
			Pulse:        cfg.Badge.Pulse,
			RepeatWindow: cfg.Badge.RepeatWindow,
			LastUID:      saved.LastBadgeUID,
		})
	}

	return s, nil
}

// calibrate measures the motion baseline. On failure the machine is marked failed.
func (s *System) calibrate(ctx context.Context) (*filter.Calibration, error) {
	c := filter.Calibrator{
		Window:      s.cfg.Motion.CalibrationWindow,
		Count:       s.cfg.Motion.CalibrationCount,
		MaxAttempts: s.cfg.Motion.CalibrationAttempts,
		Interval:    s.cfg.Motion.CalibrationInterval,
	}

	logger.InfoKV(ctx, "Calibrating motion sensor", "samples", c.Count, "window", c.Window)

	calibration, err := c.Run(ctx, s.motionSampler)
	if err != nil {
		if ctx.Err() == nil {
			s.machine.Fail()
		}

		return nil, err
	}

	s.metrics.SetCalibration(calibration.Baseline, calibration.StdDev)

	logger.InfoKV(ctx, "Motion sensor calibrated",
		"baseline_cm", calibration.Baseline,
		"stddev_cm", calibration.StdDev,
		"attempts", calibration.Attempts)

	return calibration, nil
}

// Run starts every loop and the given servers, calibrates the motion sensor and
// blocks until ctx is done or a loop fails. It always leaves every output off and
// the event log flushed.
func (s *System) Run(ctx context.Context, servers ...func(context.Context) error) error {
	g, gctx := errgroup.WithContext(ctx)

	for _, serve := range servers {
		g.Go(func() error { return serve(gctx) })
	}

	g.Go(func() error {
		return s.intruder.Run(logger.WithName(gctx, intruder.Source))
	})

	g.Go(func() error {
		return s.light.Run(logger.WithName(gctx, lightswitch.Source), s.presses(gctx))
	})

	if s.badge != nil {
		g.Go(func() error {
			return s.badge.Run(logger.WithName(gctx, badge.Source))
		})
	}

	g.Go(func() error {
		mctx := logger.WithName(gctx, motion.Source)

		calibration, err := s.calibrate(mctx)
		if err != nil {
			if gctx.Err() != nil {
				return nil
			}

			return fmt.Errorf("%w: %w", ErrCalibrationFailed, err)
		}

		s.machine.Start(mctx, calibration.Baseline)

		lg, lctx := errgroup.WithContext(mctx)
		lg.Go(func() error {
			return s.machine.Run(lctx, s.motionSampler, filter.NewMedian(s.cfg.Motion.Window), s.cfg.Motion.Cadence)
		})
		lg.Go(func() error {
			return s.machine.Watch(lctx, s.cfg.Motion.WatchTick)
		})

		return lg.Wait()
	})

	err := g.Wait()

	s.shutdown(ctx)

	return err
}

// presses returns the button edges, or nil when the rig has no button.
func (s *System) presses(ctx context.Context) <-chan struct{} {
	if s.hw.presses == nil {
		return nil
	}

	return s.hw.presses(ctx)
}

// shutdown switches the light off through the machine, then every output, then
// flushes the events emitted on the way.
func (s *System) shutdown(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)

	logger.Info(ctx, "Shutting down")

	s.machine.Shutdown(ctx)
	s.arbiter.AllOff(ctx)

	closeCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	if err := s.dispatcher.Close(closeCtx); err != nil {
		logger.ErrorKV(ctx, "Event log flush failed", "error", err)
	}

	logger.Info(ctx, "All outputs off")
}

// Status implements the status surfaces.
func (s *System) Status(context.Context) home.Status {
	st := home.Status{
		Motion: s.machine.Snapshot(),
		Alarm:  s.intruder.Status(),
	}

	if s.badge != nil {
		st.LastBadgeUID = s.badge.LastUID()
	}

	return st
}

// SetLightEnabled switches the light system on or off.
func (s *System) SetLightEnabled(ctx context.Context, enabled bool) (home.Status, error) {
	cmd := lightswitch.CommandOff
	if enabled {
		cmd = lightswitch.CommandOn
	}

	return s.request(ctx, cmd)
}

// ToggleLight flips the light system.
func (s *System) ToggleLight(ctx context.Context) (home.Status, error) {
	return s.request(ctx, lightswitch.CommandToggle)
}

func (s *System) request(ctx context.Context, cmd lightswitch.Command) (home.Status, error) {
	if _, err := s.light.Request(ctx, cmd); err != nil {
		if errors.Is(err, lightswitch.ErrStopped) {
			return home.Status{}, api.ErrUnavailable
		}

		return home.Status{}, err
	}

	return s.Status(ctx), nil
}

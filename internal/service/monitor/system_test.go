package monitor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/homee/internal/actuator"
	api "github.com/oshokin/homee/internal/api/grpc/monitor"
	"github.com/oshokin/homee/internal/config"
	"github.com/oshokin/homee/internal/domain/home"
	"github.com/oshokin/homee/internal/filter"
	"github.com/oshokin/homee/internal/hardware/sim"
	"github.com/oshokin/homee/internal/repository/state"
)

// testRig is a simulated rig whose sensors the test drives.
type testRig struct {
	cfg      *config.Config
	devices  *sim.Devices
	motion   *sim.ScriptedRanger
	intruder *sim.ScriptedRanger
	rig      *rig
}

// newTestRig returns a fast-calibrating configuration over scripted sensors.
func newTestRig(t *testing.T, badges ...string) *testRig {
	t.Helper()

	dir := t.TempDir()

	cfg := config.Default()
	cfg.Hardware.Driver = config.DriverSim
	cfg.StateFile = filepath.Join(dir, "state.json")
	cfg.Events.CSVPath = filepath.Join(dir, "events.csv")
	cfg.Motion.CalibrationWindow = 3
	cfg.Motion.CalibrationCount = 3
	cfg.Motion.CalibrationAttempts = 10
	cfg.Motion.CalibrationInterval = 10 * time.Millisecond
	cfg.Motion.Window = 3
	require.NoError(t, config.Validate(cfg))

	tr := &testRig{
		cfg:      cfg,
		devices:  sim.NewDevices(t.Context()),
		motion:   sim.NewScriptedRanger(100),
		intruder: sim.NewScriptedRanger(150),
	}

	tr.rig = &rig{
		driver:   tr.devices,
		motion:   tr.motion,
		intruder: tr.intruder,
	}

	if len(badges) > 0 {
		tr.rig.badges = sim.NewBadgeReader(500*time.Millisecond, badges...)
	}

	return tr
}

func TestSystem_RunAndShutdown(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		tr := newTestRig(t, "aabbcc")

		sys, err := newSystem(t.Context(), tr.cfg, tr.rig)
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(t.Context())
		done := make(chan error, 1)

		go func() { done <- sys.Run(ctx) }()

		time.Sleep(time.Second)

		st := sys.Status(ctx)
		require.Equal(t, home.PhaseRunning, st.Motion.Phase)
		require.InDelta(t, 100.0, st.Motion.Baseline, 1e-9)
		require.Equal(t, home.MotionIdle, st.Motion.State)
		require.Equal(t, "AABBCC", st.LastBadgeUID)
		require.False(t, st.Alarm.Alerting())

		clearLED, _ := tr.devices.State(actuator.ClearLED)
		require.Equal(t, actuator.ValueOn, clearLED)

		tr.motion.Set(50)
		time.Sleep(2 * time.Second)

		st = sys.Status(ctx)
		require.Equal(t, home.MotionActive, st.Motion.State)
		require.True(t, st.Motion.LightOn)

		light, _ := tr.devices.State(actuator.RoomLight)
		require.Equal(t, actuator.ValueOn, light)

		st, err = sys.SetLightEnabled(ctx, false)
		require.NoError(t, err)
		require.False(t, st.Motion.LightEnabled)
		require.False(t, st.Motion.LightOn)

		cancel()
		require.NoError(t, <-done)

		require.Empty(t, tr.devices.States())
		require.Equal(t, home.PhaseStopped, sys.Status(t.Context()).Motion.Phase)

		_, err = sys.ToggleLight(t.Context())
		require.ErrorIs(t, err, api.ErrUnavailable)

		data, err := os.ReadFile(tr.cfg.Events.CSVPath)
		require.NoError(t, err)

		for _, kind := range []home.EventKind{
			home.EventBadgeIn,
			home.EventMotionStart,
			home.EventLightOn,
			home.EventLightSystemToggled,
			home.EventLightOff,
			home.EventMotionEnd,
		} {
			require.Contains(t, string(data), string(kind))
		}

		require.Len(t, sys.history.List(0), 6)

		saved := state.Open(t.Context(), state.NewFileRepository(tr.cfg.StateFile)).Get()
		require.False(t, saved.LightEnabled)
		require.Equal(t, "AABBCC", saved.LastBadgeUID)
	})
}

func TestSystem_RestoresControlState(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		tr := newTestRig(t)

		store := state.Open(t.Context(), state.NewFileRepository(tr.cfg.StateFile))
		require.NoError(t, store.Update(t.Context(), func(s *home.ControlState) {
			s.LightEnabled = false
		}))

		sys, err := newSystem(t.Context(), tr.cfg, tr.rig)
		require.NoError(t, err)
		require.Nil(t, sys.badge)

		ctx, cancel := context.WithCancel(t.Context())
		done := make(chan error, 1)

		go func() { done <- sys.Run(ctx) }()

		tr.motion.Set(100, 100, 100, 100, 100, 20)
		time.Sleep(3 * time.Second)

		st := sys.Status(ctx)
		require.Equal(t, home.MotionActive, st.Motion.State)
		require.False(t, st.Motion.LightEnabled)
		require.False(t, st.Motion.LightOn)
		require.Empty(t, st.LastBadgeUID)

		st, err = sys.ToggleLight(ctx)
		require.NoError(t, err)
		require.True(t, st.Motion.LightEnabled)

		cancel()
		require.NoError(t, <-done)
	})
}

func TestSystem_CalibrationFailure(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		tr := newTestRig(t)
		tr.motion.Set(-1)

		sys, err := newSystem(t.Context(), tr.cfg, tr.rig)
		require.NoError(t, err)

		err = sys.Run(t.Context())
		require.ErrorIs(t, err, ErrCalibrationFailed)
		require.ErrorIs(t, err, filter.ErrInsufficientSamples)

		require.Equal(t, home.PhaseCalibrationFailed, sys.Status(t.Context()).Motion.Phase)
		require.Empty(t, tr.devices.States())

		data, err := os.ReadFile(tr.cfg.Events.CSVPath)
		require.NoError(t, err)
		require.Contains(t, string(data), string(home.EventSensorDegraded))
	})
}

func TestSystem_ServerFailureStopsLoops(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		tr := newTestRig(t)

		sys, err := newSystem(t.Context(), tr.cfg, tr.rig)
		require.NoError(t, err)

		errBoom := errors.New("listener closed")

		err = sys.Run(t.Context(), func(context.Context) error {
			time.Sleep(2 * time.Second)

			return errBoom
		})
		require.ErrorIs(t, err, errBoom)
		require.Equal(t, home.PhaseStopped, sys.Status(t.Context()).Motion.Phase)
	})
}

func TestOpenRig(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Hardware.Driver = config.DriverSim
	require.NoError(t, config.Validate(cfg))

	r, err := openRig(t.Context(), cfg)
	require.NoError(t, err)
	require.NotNil(t, r.driver)
	require.NotNil(t, r.motion)
	require.NotNil(t, r.intruder)
	require.NotNil(t, r.badges)
	require.Nil(t, r.presses)
	require.NoError(t, r.close())

	cfg.Hardware.Driver = "bogus"

	_, err = openRig(t.Context(), cfg)
	require.Error(t, err)
}

func TestCalibrate_Simulated(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		cfg := config.Default()
		cfg.Hardware.Driver = config.DriverSim
		cfg.Motion.CalibrationInterval = 10 * time.Millisecond

		path := filepath.Join(t.TempDir(), "homee.yaml")
		require.NoError(t, config.Save(path, cfg))

		calibration, err := Calibrate(t.Context(), &Options{ConfigPath: path})
		require.NoError(t, err)
		require.InDelta(t, cfg.Hardware.Sim.MotionBaseCM, calibration.Baseline, cfg.Hardware.Sim.JitterCM)
		require.Less(t, calibration.StdDev, cfg.Hardware.Sim.JitterCM)
	})
}

func TestLoadSettings_Overrides(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "homee.yaml")
	require.NoError(t, config.Save(path, config.Default()))

	cfg, err := loadSettings(&Options{ConfigPath: path, Driver: config.DriverSim, StateFile: "other.json"})
	require.NoError(t, err)
	require.Equal(t, config.DriverSim, cfg.Hardware.Driver)
	require.Equal(t, "other.json", cfg.StateFile)

	_, err = loadSettings(&Options{ConfigPath: path, Driver: "bogus"})
	require.Error(t, err)
}

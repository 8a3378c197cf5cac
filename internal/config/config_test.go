package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestValidate checks defaults filling and consistency rules.
func TestValidate(t *testing.T) {
	t.Parallel()

	// Empty settings become the defaults.
	settings := new(Config)
	require.NoError(t, Validate(settings))
	require.Equal(t, ":50051", settings.GRPCAddr)
	require.Equal(t, 5*time.Second, settings.Motion.Grace)
	require.InDelta(t, 2.0, settings.Intruder.BandMinCM, 0)
	require.InDelta(t, 10.0, settings.Intruder.BandMaxCM, 0)
	require.Equal(t, DefaultSimBadges(), settings.Hardware.Sim.Badges)
	require.Empty(t, settings.HTTPAddr)

	require.ErrorIs(t, Validate(nil), errConfigIsNotSet)

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad grpc socket", func(c *Config) { c.GRPCAddr = "bad:address" }},
		{"bad http socket", func(c *Config) { c.HTTPAddr = "nope:nope" }},
		{"unknown driver", func(c *Config) { c.Hardware.Driver = "arduino" }},
		{"unknown log level", func(c *Config) { c.LogLevel = "verbose" }},
		{"unknown log format", func(c *Config) { c.LogFormat = "xml" }},
		{"count below window", func(c *Config) { c.Motion.CalibrationCount = 10 }},
		{"too few attempts", func(c *Config) { c.Motion.CalibrationAttempts = 60 }},
		{"empty band", func(c *Config) { c.Intruder.BandMinCM = 10 }},
		{"flash interval too long", func(c *Config) { c.Intruder.FlashInterval = time.Minute }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := Default()
			tt.mutate(cfg)
			require.ErrorIs(t, Validate(cfg), errInvalid)
		})
	}
}

// TestSaveLoadRoundtrip ensures settings are persisted and loaded back correctly.
func TestSaveLoadRoundtrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")

	settings := Default()
	settings.GRPCAddr = "127.0.0.1:50052"
	settings.Hardware.Driver = DriverSim
	settings.Motion.Grace = 7 * time.Second
	settings.Hardware.Sim.Badges = []string{"AABBCC"}

	require.NoError(t, Save(path, settings))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, settings.GRPCAddr, loaded.GRPCAddr)
	require.Equal(t, DriverSim, loaded.Hardware.Driver)
	require.Equal(t, 7*time.Second, loaded.Motion.Grace)
	require.Equal(t, []string{"AABBCC"}, loaded.Hardware.Sim.Badges)

	// File exists with restricted permissions.
	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(DefaultFilePermissions), info.Mode().Perm())

	require.ErrorIs(t, Save(path, nil), errConfigIsNotSet)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestEnvKey(t *testing.T) {
	t.Parallel()

	require.Equal(t, "motion.threshold_cm", envKey("HOMEE_MOTION__THRESHOLD_CM"))
	require.Equal(t, "log_level", envKey("HOMEE_LOG_LEVEL"))
	require.Equal(t, "hardware.sim.visit_cm", envKey("HOMEE_HARDWARE__SIM__VISIT_CM"))
}

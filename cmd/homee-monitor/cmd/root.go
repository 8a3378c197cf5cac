package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/homee/internal/service/monitor"
	"github.com/oshokin/homee/internal/version"
)

var (
	// options are shared by the daemon and the calibrate subcommand.
	options monitor.Options

	// rootCmd represents the base command for running the monitor daemon.
	rootCmd = &cobra.Command{
		Use:   "homee-monitor",
		Short: "Run the homee proximity and motion monitor.",
		Long: `Runs the homee monitor on a Raspberry Pi or in simulation.

The monitor calibrates the room's ultrasonic sensor, then switches the room light
on motion and off after a grace period, flashes the alert LED when something comes
within a few centimetres of the door sensor and tracks badge check-ins. Events go
to a CSV log, the dashboard and, when configured, an MQTT broker.

Settings are read from the YAML file, then HOMEE_ environment variables
(HOMEE_MOTION__THRESHOLD_CM=20 sets motion.threshold_cm).`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			return monitor.Run(ctx, &options)
		},
	}

	// calibrateCmd measures the baseline without starting the monitor.
	calibrateCmd = &cobra.Command{
		Use:   "calibrate",
		Short: "Measure the motion sensor baseline and exit.",
		Long: `Samples the motion sensor with the configured calibration settings and prints
the baseline distance and the spread of the filtered samples. Keep the room empty
while it runs.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			calibration, err := monitor.Calibrate(ctx, &options)
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "baseline: %.1f cm, mean: %.2f cm, stddev: %.2f cm, samples taken: %d\n",
				calibration.Baseline, calibration.Mean, calibration.StdDev, calibration.Attempts)

			return nil
		},
	}
)

// Execute runs the homee-monitor CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.PersistentFlags().StringVarP(&options.ConfigPath, "config", "c", "", "path to configuration file")
	rootCmd.PersistentFlags().StringVar(&options.Driver, "driver", "", "hardware driver override (gpio or sim)")
	rootCmd.Flags().StringVarP(&options.StateFile, "state-file", "s", "", "path to persist the control state")

	rootCmd.AddCommand(calibrateCmd)
}

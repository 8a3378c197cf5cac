package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/oshokin/homee/internal/service/client"
	"github.com/oshokin/homee/internal/version"
)

var (
	// cfgPath stores the configuration file path.
	cfgPath string
	// serverAddress overrides the configured control API address.
	serverAddress string
	// watchInterval repeats the status query when positive.
	watchInterval time.Duration

	// rootCmd is the base command; it only groups the subcommands.
	rootCmd = &cobra.Command{
		Use:   "homee-ctl",
		Short: "Control a running homee monitor.",
		Long: `Talks to the homee monitor's gRPC control API.

The server address comes from the grpc_addr setting unless --server is given.
Every request carries the calling user and host for the monitor's logs.`,
		SilenceUsage: true,
	}

	statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Print the monitor status.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			return client.Run(ctx, &client.Options{
				ConfigPath:    cfgPath,
				ServerAddress: serverAddress,
				Watch:         watchInterval,
				Output:        cmd.OutOrStdout(),
			})
		},
	}

	lightCmd = &cobra.Command{
		Use:       "light on|off|toggle",
		Short:     "Switch the light system on or off.",
		Long:      "Enables, disables or toggles the light system. Disabling switches the room light off at once.",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"on", "off", "toggle"},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			return client.Run(ctx, &client.Options{
				ConfigPath:    cfgPath,
				ServerAddress: serverAddress,
				Light:         args[0],
				Output:        cmd.OutOrStdout(),
			})
		},
	}
)

// Execute runs the homee-ctl CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to configuration file")
	rootCmd.PersistentFlags().StringVarP(&serverAddress, "server", "a", "", "control API address override")

	statusCmd.Flags().DurationVarP(&watchInterval, "watch", "w", 0, "poll the status at this interval")

	rootCmd.AddCommand(statusCmd, lightCmd)
}

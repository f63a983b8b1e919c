package main

import (
	"github.com/spf13/cobra"
)

// rootOptions holds the global flags.
type rootOptions struct {
	ConfigDir string
	Debug     bool
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "notification-service",
		Short:         "KickSpot order-event notification fan-out",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigDir, "config-dir", "", "config directory (default $CONFIG_DIR or ./config)")
	cmd.PersistentFlags().BoolVar(&opts.Debug, "debug", false, "enable debug logging")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newMigrateCommand(opts))
	return cmd
}

package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"kickspot/internal/config"
	"kickspot/pkg/logger"
)

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.ConfigDir)
			if err != nil {
				return err
			}
			log := logger.NewLogger(opts.Debug)
			defer log.Sync()

			s, err := openStorage(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer s.Close()

			log.Info("Migrations complete", zap.String("driver", cfg.DB.Driver))
			return nil
		},
	}
}

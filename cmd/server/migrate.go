package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/suPer8Hu/ai-chat-backend/internal/config"
	"github.com/suPer8Hu/ai-chat-backend/internal/db"
)

func newMigrateCmd(cfg config.Config, log *zap.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update database tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			gdb, err := db.Connect(cfg.DBDriver, cfg.DBDSN, log)
			if err != nil {
				return err
			}
			if err := db.Migrate(gdb); err != nil {
				return err
			}
			log.Info("migrations applied", zap.String("driver", cfg.DBDriver))
			return nil
		},
	}
}

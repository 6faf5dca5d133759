package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-admin/pkg/database"
)

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := bootstrap()
			if err != nil {
				return err
			}
			defer a.close()

			applied, err := database.Migrate(cmd.Context(), a.db, a.logger)
			if err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			a.logger.Info("migrations complete", zap.Strings("applied", applied))
			return nil
		},
	}
}

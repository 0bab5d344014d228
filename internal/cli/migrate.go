package cli

import (
	"github.com/spf13/cobra"
)

// NewMigrateCmd applies database migrations.
func NewMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()
			db, err := openDatabase(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			return db.Close()
		},
	}
}

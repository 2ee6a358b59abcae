package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/BerylCAtieno/travel-extract/internal/db"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	var down bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply (or with --down revert) the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}

			if down {
				err = db.RollbackMigrations(cfg.DatabasePath)
			} else {
				err = db.RunMigrations(cfg.DatabasePath)
			}
			if err != nil {
				return err
			}

			version, dirty, err := db.MigrationVersion(cfg.DatabasePath)
			if err != nil {
				return err
			}
			logger.Info("Migrations complete", "database", cfg.DatabasePath, "version", version, "dirty", dirty)
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", version)
			return nil
		},
	}

	cmd.Flags().BoolVar(&down, "down", false, "revert every migration")
	return cmd
}

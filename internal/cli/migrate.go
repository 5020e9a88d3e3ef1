package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	coreconfig "github.com/m3rciful/bingobot/core/config"
	coredatabase "github.com/m3rciful/bingobot/core/database"
	"github.com/m3rciful/bingobot/core/logger"
)

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "migrate",
		Short:         "Apply pending database migrations and exit",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := coreconfig.LoadDatabase(rootOpts.resolveConfigPath())
			if err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			if err := logger.InitLogger(cfg); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			defer logger.Shutdown()

			if err := coredatabase.RunMigrations(cfg.Database); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}

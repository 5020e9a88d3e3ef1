package cli

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	corecmd "github.com/m3rciful/bingobot/core/cmd"
	coreconfig "github.com/m3rciful/bingobot/core/config"
	"github.com/m3rciful/bingobot/internal/app"
)

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "run",
		Short:         "Poll Telegram and serve chats until interrupted",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return corecmd.Run(corecmd.Options{
				ConfigPath: rootOpts.resolveConfigPath(),
				RunApp:     runApp,
			})
		},
	}
}

func runApp(ctx context.Context, cfg *coreconfig.Config, db *sqlx.DB) error {
	a, err := app.New(app.Options{Config: cfg, DB: db})
	if err != nil {
		return err
	}
	return a.Run(ctx)
}

// Package cli defines the bingobot command tree.
package cli

import (
	"github.com/spf13/cobra"

	corecmd "github.com/m3rciful/bingobot/core/cmd"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	// ConfigPath overrides CONFIG_PATH; empty means env only.
	ConfigPath string
}

func (o *RootOptions) resolveConfigPath() string {
	return corecmd.ResolveConfigPath(corecmd.Options{ConfigPath: o.ConfigPath})
}

// NewRootCommand creates the root command for the bingobot CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "bingobot",
		Short: "Bingo Telegram bot",
		Long:  "A long-polling Telegram bot that registers players and walks them through deposits.",
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to the YAML config (default $CONFIG_PATH)")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewVersionCommand(opts))

	return cmd
}

package cmd

import (
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"ocmon/internal/config"
)

func newConfigCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the active configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Printf("# %s\n\n", config.ConfigPath())
			return toml.NewEncoder(cmd.OutOrStdout()).Encode(app.Config)
		},
	}
}

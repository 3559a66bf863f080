package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"ocmon/internal/cli"
)

func newAgentsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "agents",
		Short: "List known agents and their roles",
		RunE: func(_ *cobra.Command, _ []string) error {
			fmt.Println()
			fmt.Print(cli.AgentsTable(app.Registry.MainAgents(), app.Registry.SubAgents()))
			fmt.Printf("  Definitions directory: %s\n", app.Config.Paths.AgentsDir)
			return nil
		},
	}
}

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"ocmon/internal/cli"
)

func newWorkflowsCmd(app *App) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "workflows",
		Short: "List workflows (main sessions with their sub-agents)",
		RunE: func(_ *cobra.Command, _ []string) error {
			if limit <= 0 {
				limit = app.Config.Analytics.RecentSessionsLimit
			}
			sessions, err := app.Loader.Sessions(limit)
			if err != nil {
				return err
			}
			workflows := app.Grouper.Group(sessions)
			if len(workflows) == 0 {
				fmt.Println("\n  No workflows found.")
				return nil
			}

			fmt.Println()
			fmt.Print(cli.WorkflowsTable(workflows, app.Pricing()))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", 0, "Number of sessions to consider")
	return cmd
}

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"ocmon/internal/cli"
)

func newToolsCmd(app *App) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Tool usage statistics for recent sessions",
		RunE: func(_ *cobra.Command, _ []string) error {
			if limit <= 0 {
				limit = app.Config.Analytics.RecentSessionsLimit
			}
			sessions, err := app.Loader.Sessions(limit)
			if err != nil {
				return err
			}
			ids := make([]string, 0, len(sessions))
			for _, s := range sessions {
				ids = append(ids, s.ID)
			}

			stats, err := app.Loader.ToolUsage(ids)
			if err != nil {
				return err
			}
			if len(stats) == 0 {
				fmt.Println("\n  No tool usage recorded (requires the SQLite store).")
				return nil
			}

			fmt.Println()
			fmt.Print(cli.ToolUsageTable(stats))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", 0, "Number of sessions to consider")
	return cmd
}

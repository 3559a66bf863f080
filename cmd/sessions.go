package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"ocmon/internal/cli"
)

func newSessionsCmd(app *App) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List recent sessions",
		RunE: func(_ *cobra.Command, _ []string) error {
			if limit <= 0 {
				limit = app.Config.Analytics.RecentSessionsLimit
			}
			sessions, err := app.Loader.Sessions(limit)
			if err != nil {
				return err
			}
			if len(sessions) == 0 {
				fmt.Println("\n  No sessions found.")
				return nil
			}

			fmt.Println()
			fmt.Print(cli.SessionsTable(sessions, app.Pricing()))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", 0, "Number of sessions to show")
	return cmd
}

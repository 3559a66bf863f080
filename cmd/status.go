package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"ocmon/internal/cli"
)

func newStatusCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show data source availability and database statistics",
		RunE: func(_ *cobra.Command, _ []string) error {
			fmt.Println()
			fmt.Println(cli.RenderTitle("Data Sources"))
			fmt.Println()

			fmt.Printf("  SQLite:      %s (%s)\n",
				availability(app.Loader.SQLiteAvailable()), app.Loader.DatabasePath())
			fmt.Printf("  File store:  %s (%s)\n",
				availability(app.Loader.FilesAvailable()), app.Config.Paths.MessagesDir)

			stats, ok, err := app.Loader.DatabaseStats()
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}

			fmt.Println()
			fmt.Print(cli.RenderTable(cli.Table{
				Title:   "Database",
				Headers: []string{"Metric", "Value"},
				Rows: [][]string{
					{"Sessions", cli.FormatNumber(stats.Sessions)},
					{"Messages", cli.FormatNumber(stats.Messages)},
					{"Projects", cli.FormatNumber(stats.Projects)},
					{"Sub-agent sessions", cli.FormatNumber(stats.SubAgents)},
					{"File size", cli.FormatBytes(stats.FileSizeBytes)},
				},
			}))
			return nil
		},
	}
}

func availability(ok bool) string {
	if ok {
		return "available"
	}
	return "not found"
}

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"ocmon/internal/cli"
)

func newModelsCmd(app *App) *cobra.Command {
	var (
		limit       int
		showPricing bool
	)

	cmd := &cobra.Command{
		Use:   "models",
		Short: "Per-model usage breakdown",
		RunE: func(_ *cobra.Command, _ []string) error {
			if showPricing {
				fmt.Println()
				fmt.Print(cli.PricingTable(app.Pricing()))
				return nil
			}

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
			fmt.Print(cli.ModelBreakdownTable(sessions, app.Pricing()))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", 0, "Number of sessions to consider")
	cmd.Flags().BoolVar(&showPricing, "pricing", false, "Show the effective pricing table instead of usage")
	return cmd
}

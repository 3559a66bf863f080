package cmd

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"ocmon/internal/config"
)

func newSetupCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "First-time setup wizard",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg := app.Config

			dbPath := cfg.Paths.DatabaseFile
			refresh := strconv.Itoa(cfg.UI.LiveRefreshSeconds)
			remote := cfg.Models.RemoteFallback

			form := huh.NewForm(
				huh.NewGroup(
					huh.NewInput().
						Title("OpenCode database").
						Description("Path to opencode.db (leave as-is for the default)").
						Value(&dbPath),
					huh.NewSelect[string]().
						Title("Live refresh interval").
						Options(
							huh.NewOption("2 seconds", "2"),
							huh.NewOption("5 seconds (default)", "5"),
							huh.NewOption("10 seconds", "10"),
						).
						Value(&refresh),
					huh.NewConfirm().
						Title("Fetch pricing from models.dev?").
						Description("Fills in models missing from the bundled table").
						Value(&remote),
				),
			)
			if err := form.Run(); err != nil {
				return err
			}

			cfg.Paths.DatabaseFile = dbPath
			if secs, err := strconv.Atoi(refresh); err == nil && secs > 0 {
				cfg.UI.LiveRefreshSeconds = secs
			}
			cfg.Models.RemoteFallback = remote

			if err := config.Save(cfg); err != nil {
				return fmt.Errorf("saving config: %w", err)
			}

			fmt.Println()
			fmt.Printf("  Saved to %s\n", config.ConfigPath())
			fmt.Println("  Run `ocmon setup` anytime to reconfigure.")
			return nil
		},
	}
}

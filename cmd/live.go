package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"ocmon/internal/cli"
	"ocmon/internal/live"
	"ocmon/internal/tui"
)

func newLiveCmd(app *App) *cobra.Command {
	var fullscreen bool

	cmd := &cobra.Command{
		Use:   "live",
		Short: "Live-monitor the active workflow",
		Long: "Poll the data source and follow the most recently active workflow,\n" +
			"reporting workflow starts, ends, switches, and new sub-agents.",
		RunE: func(_ *cobra.Command, _ []string) error {
			monitor := live.NewMonitor(live.Options{
				Loader:       app.Loader,
				Grouper:      app.Grouper,
				Pricing:      app.Pricing(),
				Interval:     app.Config.RefreshInterval(),
				SessionLimit: app.Config.Analytics.RecentSessionsLimit,
				Render: func(res live.PollResult) string {
					return cli.RenderWorkflowDashboard(res.Displayed, res.Pricing, res.Now)
				},
			})

			if fullscreen {
				return tui.Run(monitor, app.Config.RefreshInterval())
			}

			ctx, stop := signal.NotifyContext(context.Background(),
				os.Interrupt, syscall.SIGTERM)
			defer stop()
			return monitor.Run(ctx)
		},
	}

	cmd.Flags().BoolVar(&fullscreen, "tui", false, "Full-screen dashboard instead of line output")
	return cmd
}

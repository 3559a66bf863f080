// Package cmd wires the ocmon command-line interface.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ocmon/internal/agent"
	"ocmon/internal/config"
	"ocmon/internal/model"
	"ocmon/internal/pricing"
	"ocmon/internal/source"
	"ocmon/internal/workflow"
)

// App carries the process-wide dependencies. It is constructed once in
// Execute and threaded through the command constructors; nothing in the
// program reaches for a global instance.
type App struct {
	Config   config.Config
	Loader   *source.Loader
	Registry *agent.Registry
	Grouper  *workflow.Grouper

	noRemote bool
	prices   pricing.Table // lazily assembled
}

// Pricing assembles the effective pricing table on first use.
func (a *App) Pricing() pricing.Table {
	if a.prices == nil {
		a.prices = a.Config.LoadPricing(a.noRemote)
	}
	return a.prices
}

// Execute is the main entry point called from main.go.
func Execute() {
	app := &App{}

	var (
		flagConfig   string
		flagDB       string
		flagMessages string
		flagSource   string
	)

	root := &cobra.Command{
		Use:   "ocmon",
		Short: "OpenCode usage monitor",
		Long:  "Monitor OpenCode sessions: tokens, costs, workflows, and live activity.",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(flagConfig)
			if err != nil {
				return err
			}
			app.Config = cfg

			dbPath := cfg.Paths.DatabaseFile
			if flagDB != "" {
				dbPath = flagDB
			}
			messagesDir := cfg.Paths.MessagesDir
			if flagMessages != "" {
				messagesDir = flagMessages
			}

			var force model.Source
			switch flagSource {
			case "":
			case "sqlite":
				force = model.SourceSQLite
			case "files":
				force = model.SourceFiles
			default:
				return fmt.Errorf("invalid --source %q (want sqlite or files)", flagSource)
			}

			app.Loader = source.NewLoader(dbPath, messagesDir, force)
			app.Registry = agent.NewRegistry(cfg.Paths.AgentsDir)
			app.Grouper = workflow.NewGrouper(app.Registry)
			return nil
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file (default ~/.config/ocmon/config.toml)")
	root.PersistentFlags().StringVar(&flagDB, "db", "", "SQLite database path override")
	root.PersistentFlags().StringVar(&flagMessages, "messages-dir", "", "Legacy file store path override")
	root.PersistentFlags().StringVar(&flagSource, "source", "", "Force data source: sqlite or files")
	root.PersistentFlags().BoolVar(&app.noRemote, "no-remote", false, "Disable remote pricing lookup")

	root.AddCommand(
		newSessionsCmd(app),
		newWorkflowsCmd(app),
		newLiveCmd(app),
		newModelsCmd(app),
		newToolsCmd(app),
		newAgentsCmd(app),
		newStatusCmd(app),
		newConfigCmd(app),
		newSetupCmd(app),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

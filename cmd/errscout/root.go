package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/errscout/pkg/errscout/catalog"
	"github.com/randalmurphal/errscout/pkg/errscout/config"
	"github.com/randalmurphal/errscout/pkg/errscout/observability"
)

// app holds the state shared by every subcommand. It is filled in by the
// root command's PersistentPreRunE.
type app struct {
	cfgFile  string
	logLevel string

	settings config.Settings
	logger   *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "errscout",
		Short: "Discover undocumented API error codes",
		Long: `errscout drives a planner against a REST API, recording every error
response it provokes. Errors the operation's documentation does not list
are flagged as undocumented, and the results are exported as TypeScript
types, per-service JSON catalogs and a Markdown report.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd)
		},
	}

	root.PersistentFlags().StringVarP(&a.cfgFile, "config", "c", "", "config file (YAML or JSON)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(
		newServicesCmd(a),
		newDescribeCmd(a),
		newRunCmd(a),
		newJournalCmd(a),
	)
	return root
}

func (a *app) load(cmd *cobra.Command) error {
	settings, err := config.Load(a.cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if a.logLevel != "" {
		settings.LogLevel = a.logLevel
	}
	a.settings = settings
	a.logger = observability.NewLogger(cmd.ErrOrStderr(), settings.LogFormat, observability.ParseLevel(settings.LogLevel))
	return nil
}

func (a *app) catalog() (*catalog.Catalog, error) {
	if a.settings.CatalogPath == "" {
		return catalog.Default(), nil
	}
	cat, err := catalog.FromFile(a.settings.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	return cat, nil
}

// Package cmd holds the keuangan-cli command tree.
package cmd

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"keuangan/internal/backend"
	"keuangan/internal/cli"
	"keuangan/internal/config"
	"keuangan/internal/ledger"
	applog "keuangan/internal/log"
)

// Overrides are flag values that take precedence over the environment.
type Overrides struct {
	Backend string
	DataDir string
}

// Opener loads the ledger the commands operate on. The returned func
// releases the backend.
type Opener func(ctx context.Context, o Overrides) (*ledger.Engine, func() error, error)

// OpenFromConfig builds the engine from the environment, like the server
// does, and loads it.
func OpenFromConfig(ctx context.Context, o Overrides) (*ledger.Engine, func() error, error) {
	cfg := config.Load()
	if o.Backend != "" {
		cfg.Backend = o.Backend
	}
	if o.DataDir != "" {
		cfg.DataDir = o.DataDir
	}
	// Commands never publish; the server owns change events.
	cfg.AMQPURL = ""
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	logger := cli.SetupLogger(cfg.LogLevel).WithComponent(applog.ComponentCLI)
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, nil, err
	}

	engine := ledger.New(res.Store, ledger.WithLogger(logger))
	if _, err := engine.Load(ctx); err != nil {
		_ = res.Cleanup()
		return nil, nil, err
	}
	return engine, res.Cleanup, nil
}

type app struct {
	open      Opener
	overrides Overrides
	noColor   bool

	engine  *ledger.Engine
	cleanup func() error
}

// NewRootCmd builds the command tree. open is called once before any
// subcommand runs.
func NewRootCmd(open Opener) *cobra.Command {
	a := &app{open: open}

	root := &cobra.Command{
		Use:           "keuangan-cli",
		Short:         "Record income and expenses from the terminal",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if a.noColor {
				color.NoColor = true
			}
			if !needsLedger(cmd) {
				return nil
			}
			engine, cleanup, err := a.open(cmd.Context(), a.overrides)
			if err != nil {
				return fmt.Errorf("open ledger: %w", err)
			}
			a.engine, a.cleanup = engine, cleanup
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.cleanup != nil {
				return a.cleanup()
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&a.overrides.Backend, "backend", "", "ledger backend (csv|sqlite|sheets|memory), overrides LEDGER_BACKEND")
	root.PersistentFlags().StringVar(&a.overrides.DataDir, "data-dir", "", "directory of the csv files, overrides LEDGER_DATA_DIR")
	root.PersistentFlags().BoolVar(&a.noColor, "no-color", false, "disable colored output")

	root.AddCommand(incomeCmd(a))
	root.AddCommand(expenseCmd(a))
	root.AddCommand(summaryCmd(a))
	root.AddCommand(seriesCmd(a))
	root.AddCommand(authCmd())
	return root
}

// needsLedger is false for help, shell completion and credential setup,
// which must work without a configured backend.
func needsLedger(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		switch c.Name() {
		case "help", "completion", "auth", cobra.ShellCompRequestCmd, cobra.ShellCompNoDescRequestCmd:
			return false
		}
	}
	return true
}

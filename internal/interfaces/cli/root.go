// Package cli implements compliancectl, the operational command line for the
// engine: migrations, manual sweeps, and risk recomputation.
package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ecocomply/compliance-engine/internal/config"
	"github.com/ecocomply/compliance-engine/internal/infrastructure/monitoring/logging"
)

// Build-time variables injected via ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// RootOptions holds the global flags shared by every subcommand.
type RootOptions struct {
	ConfigPath string
	LogLevel   string
	JSONOutput bool
}

// NewRootCommand builds the compliancectl command tree.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:     "compliancectl",
		Short:   "Operational CLI for the compliance engine",
		Long:    "compliancectl runs database migrations, manual deadline sweeps,\nand risk recomputation against a configured compliance engine deployment.",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildDate),

		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.ConfigPath, "config", "c", "", "config file path (default: environment variables only)")
	pf.StringVar(&opts.LogLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	pf.BoolVar(&opts.JSONOutput, "json", false, "emit results as JSON")

	cmd.AddCommand(
		newMigrateCommand(opts),
		newSweepCommand(opts),
		newRiskCommand(opts),
		newScheduleCommand(opts),
	)
	return cmd
}

// loadRuntime resolves configuration and builds the CLI logger.
func loadRuntime(opts *RootOptions) (*config.Config, logging.Logger, error) {
	var cfg *config.Config
	var err error
	if opts.ConfigPath != "" {
		cfg, err = config.Load(opts.ConfigPath)
	} else {
		cfg, err = config.LoadFromEnv()
	}
	if err != nil {
		return nil, nil, err
	}

	logCfg := cfg.Log
	logCfg.Level = opts.LogLevel
	logCfg.Format = "console"
	logger, err := logging.NewLogger(logCfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// printResult renders a command result honoring the --json flag.
func printResult(opts *RootOptions, v interface{}, text string) {
	if opts.JSONOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(v)
		return
	}
	fmt.Println(text)
}

// Execute runs the command tree and maps errors to the process exit code.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

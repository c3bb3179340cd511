// cmd/rentflow/main.go
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/altuslabsxyz/rentflow/internal/config"
	"github.com/altuslabsxyz/rentflow/internal/lifecycle"
	"github.com/altuslabsxyz/rentflow/internal/metrics"
	"github.com/altuslabsxyz/rentflow/internal/output"
	"github.com/altuslabsxyz/rentflow/internal/version"
	"github.com/altuslabsxyz/rentflow/pkg/network"
)

// rootFlags holds the persistent CLI overrides.
type rootFlags struct {
	configPath string
	dataDir    string
	logLevel   string
	network    string
	wallet     string
	historyURL string
	jsonOutput bool
	noColor    bool
	verbose    bool
}

// app carries state shared by every command once configuration is loaded.
type app struct {
	flags   rootFlags
	cfg     *config.Config
	out     *output.Logger
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{out: output.DefaultLogger}
	if err := newRootCmd(a).ExecuteContext(ctx); err != nil {
		a.out.PrintErrorWithSuggestion(err, lifecycle.ErrorWithSuggestion(err))
		stop()
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "rentflow",
		Short: "Contract transaction lifecycle client",
		Long: `rentflow builds, signs, submits and tracks smart-contract invocations,
recording every attempt in a transaction history store.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
	}

	defaults := config.DefaultConfig()
	f := rootCmd.PersistentFlags()
	f.StringVar(&a.flags.configPath, "config", "", "Config file path (default: ~/.rentflow/rentflow.toml)")
	f.StringVar(&a.flags.dataDir, "data-dir", "", fmt.Sprintf("Data directory (default: %s)", defaults.Client.DataDir))
	f.StringVar(&a.flags.logLevel, "log-level", "", fmt.Sprintf("Log level: debug, info, warn, error (default: %s)", defaults.Client.LogLevel))
	f.StringVar(&a.flags.network, "network", "", fmt.Sprintf("Network preset (default: %s)", defaults.Client.Network))
	f.StringVar(&a.flags.wallet, "wallet", "", "Source account public key")
	f.StringVar(&a.flags.historyURL, "history-url", "", "History API URL (default: open the local store)")
	f.BoolVar(&a.flags.jsonOutput, "json", false, "Output results as JSON")
	f.BoolVar(&a.flags.noColor, "no-color", false, "Disable colored output")
	f.BoolVarP(&a.flags.verbose, "verbose", "v", false, "Enable verbose output")

	rootCmd.AddCommand(newInvokeCmd(a))
	rootCmd.AddCommand(newStatusCmd(a))
	rootCmd.AddCommand(newHistoryCmd(a))
	rootCmd.AddCommand(newConfigCmd(a))
	rootCmd.AddCommand(version.NewCmd("rentflow", network.PresetNames()))

	return rootCmd
}

// load resolves configuration: defaults < file < env < flags.
func (a *app) load(cmd *cobra.Command) error {
	if a.out == nil {
		a.out = output.NewLoggerWithWriters(cmd.OutOrStdout(), cmd.ErrOrStderr())
	}
	a.out.SetJSONMode(a.flags.jsonOutput)
	a.out.SetNoColor(a.flags.noColor)
	a.out.SetVerbose(a.flags.verbose)

	dataDir := config.DefaultDataDir()
	if a.flags.dataDir != "" {
		dataDir = a.flags.dataDir
	}

	loader := config.NewLoader(dataDir, a.flags.configPath)
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	applyFlagOverrides(cmd, &a.flags, cfg)

	if err := config.Validate(cfg); err != nil {
		return err
	}

	a.cfg = cfg
	a.metrics = metrics.New()
	a.logger = newLogger(a.out.ErrWriter(), cfg.Client.LogLevel)
	return nil
}

// applyFlagOverrides applies CLI flags to config (highest priority).
func applyFlagOverrides(cmd *cobra.Command, flags *rootFlags, cfg *config.Config) {
	if cmd.Flags().Changed("data-dir") {
		cfg.Client.DataDir = flags.dataDir
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Client.LogLevel = flags.logLevel
	}
	if flags.verbose {
		cfg.Client.LogLevel = "debug"
	}
	if cmd.Flags().Changed("network") {
		cfg.Client.Network = flags.network
	}
	if cmd.Flags().Changed("wallet") {
		cfg.Client.Wallet = flags.wallet
	}
	if cmd.Flags().Changed("history-url") {
		cfg.History.URL = flags.historyURL
	}
}

// newLogger creates the structured logger used by library code.
func newLogger(w io.Writer, logLevel string) *slog.Logger {
	level := slog.LevelInfo
	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

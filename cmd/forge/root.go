package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/forgebuild/forge/internal/config"
)

var (
	flagWorkspaceDir string
	flagWorkers      int
	flagLogLevel     string
	flagLogFormat    string
	flagEventsFile   string
	flagSSEAddr      string
)

var rootCmd = &cobra.Command{
	Use:   "forge",
	Short: "Polyglot JVM/Python build system",
	Long: `forge builds, tests, and packages a workspace of JVM and Python
projects: manifest ingestion, task graph construction, a parallel
scheduler, and a content-addressed local/remote cache.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command against a signal-cancellable context.
func Execute() error {
	ctx := signalContext()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagWorkspaceDir, "workspace", "C", ".", "workspace root directory")
	rootCmd.PersistentFlags().IntVar(&flagWorkers, "workers", 0, "scheduler concurrency (0 = number of CPUs)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "override configured log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&flagLogFormat, "log-format", "", "override configured log format (console, json)")
	rootCmd.PersistentFlags().StringVar(&flagEventsFile, "events-file", "", "write build lifecycle events to this JSONL file (truncated first)")
	rootCmd.PersistentFlags().StringVar(&flagSSEAddr, "events-addr", "", "serve build lifecycle events over SSE at this address, e.g. :4170")

	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(testCmd)
	rootCmd.AddCommand(packageCmd)
	rootCmd.AddCommand(runTaskCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(historyCmd)
}

// loadConfig resolves the layered config with this invocation's CLI flags
// as the final override (§6 precedence: defaults -> file -> env -> CLI).
func loadConfig() (*config.Config, error) {
	override := &config.Override{}
	if flagWorkers > 0 {
		override.Workers = &flagWorkers
	}
	if flagLogLevel != "" {
		override.LogLevel = &flagLogLevel
	}
	cfg, err := config.Load(override)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	if flagLogFormat != "" {
		cfg.LogFormat = flagLogFormat
	}
	return cfg, nil
}

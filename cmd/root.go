package cmd

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	cfgpkg "github.com/KaramelBytes/edaloom-cli/internal/config"
	"github.com/KaramelBytes/edaloom-cli/internal/logging"
)

var (
	// Global flags
	cfgFile string
	debug   bool
	// Ingest and emit flags (override config if set)
	flagLimit  int
	flagOutDir string

	// Loaded configuration and logger
	cfg    *cfgpkg.Global
	logger *zap.Logger
)

var (
	okMark   = color.New(color.FgGreen).Sprint("✓")
	warnMark = color.New(color.FgYellow).Sprint("⚠")
	errMark  = color.New(color.FgRed).Sprint("✗")
)

var rootCmd = &cobra.Command{
	Use:   "edaloom",
	Short: "edaloom: profile, clean, analyze and chart tabular datasets",
	Long: `edaloom runs the exploratory data analysis pipeline over CSV, TSV and XLSX files:
ingest a bounded sample, profile it, clean it (duplicates, missing values,
outliers), analyze it (correlation, clustering, monthly activity) and emit a
cleaned file plus PNG charts.`,
	SilenceUsage: true,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// Execute is the entry point called by main.main()
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errMark, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	// Initialize configuration before executing commands
	cobra.OnInitialize(loadConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.edaloom/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().IntVar(&flagLimit, "limit", 0, "rows to load per file (overrides config; negative reads all)")
	rootCmd.PersistentFlags().StringVar(&flagOutDir, "out-dir", "", "chart output directory (overrides config)")
}

func loadConfig() {
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		// Non-fatal: fall back to built-in defaults
		fmt.Fprintf(os.Stderr, "%s Warning: failed to load config: %v\n", warnMark, err)
		c = cfgpkg.Default()
	}
	cfg = c

	// Apply CLI overrides if provided
	f := rootCmd.PersistentFlags()
	if f.Changed("limit") && flagLimit != 0 {
		cfg.RowLimit = flagLimit
	}
	if f.Changed("out-dir") && flagOutDir != "" {
		cfg.OutputDir = flagOutDir
	}

	l, err := logging.New(cfg.LogLevel, cfg.LogFormat, debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s Warning: %v\n", warnMark, err)
		l, _ = logging.New("info", "console", debug)
	}
	logger = l
}

// settings returns the loaded configuration, loading it if a command runs
// without the root initializer.
func settings() *cfgpkg.Global {
	if cfg == nil {
		loadConfig()
	}
	return cfg
}

func zlog() *zap.Logger { return logging.OrNop(logger) }

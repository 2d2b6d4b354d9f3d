package main

import (
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"igleads/pkg/config"
	"igleads/pkg/logger"
	"igleads/pkg/ui"
)

var (
	// Version information
	version   = "0.3.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	noColor    bool
	quiet      bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "igleads",
	Short: "Discover cellphone retailers and repair shops on Instagram",
	Long: `igleads crawls the Instagram follow graph outward from a few seed accounts
and keeps the ones that look like cellphone retailers, resellers, distributors
or repair shops in Latin America.

For every relevant profile it records:
  - the business type, inferred from the bio
  - a WhatsApp number or group link, when the profile shows one
  - the country, from the number's calling code or the bio

Leads are written as CSV, JSON lines or SQLite as they are found, and a
Markdown report summarizes each run.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor {
			os.Setenv("NO_COLOR", "1")
		}
		if quiet && !cmd.Flags().Changed("log-level") {
			logLevel = "error"
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		ui.NewPrinter(os.Stderr).Error("Error", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is $XDG_CONFIG_HOME/igleads/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress progress output and all logs except errors")

	rootCmd.SetVersionTemplate(`igleads {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// printer returns the status printer for a command, or one that discards
// everything in quiet mode
func printer(cmd *cobra.Command) *ui.Printer {
	if quiet {
		return ui.NewPrinter(io.Discard)
	}
	return ui.NewPrinter(cmd.OutOrStdout())
}

// loadConfig loads the configuration and initializes the global logger
func loadConfig(flags map[string]interface{}) (*config.Config, logger.Logger, error) {
	if flags == nil {
		flags = make(map[string]interface{})
	}
	if quiet || rootCmd.PersistentFlags().Changed("log-level") {
		flags["log-level"] = logLevel
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return nil, nil, err
	}
	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, logger.GetLogger(), nil
}
